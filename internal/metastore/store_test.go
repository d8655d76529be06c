package metastore

import (
	"testing"

	"glint/internal/diagram"
	"glint/internal/identity"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}

	meta := diagram.NewMetadata()
	meta.SetPosition("n1", diagram.Point{X: 10, Y: 20})
	meta.SetSize("n1", diagram.Size{Width: 120, Height: 60})
	meta.Routes["e1"] = []diagram.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}
	meta.Collapsed["n1"] = true
	entries := []identity.LayoutEntry{{ID: "n1", Fingerprint: "#entity:A"}}

	const uri = "file:///workspace/model.glm"
	if err := s.Save(uri, meta, entries); err != nil {
		t.Fatalf("Save: %v", err)
	}

	payload, err := s.Load(uri)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if payload == nil {
		t.Fatalf("payload missing")
	}

	restored := diagram.NewMetadata()
	gotEntries := payload.Restore(restored)
	if p, ok := restored.Position("n1"); !ok || p != (diagram.Point{X: 10, Y: 20}) {
		t.Errorf("position not restored: %v %v", p, ok)
	}
	if sz, ok := restored.Size("n1"); !ok || sz != (diagram.Size{Width: 120, Height: 60}) {
		t.Errorf("size not restored: %v %v", sz, ok)
	}
	if len(restored.Routes["e1"]) != 2 {
		t.Errorf("route not restored: %v", restored.Routes["e1"])
	}
	if !restored.Collapsed["n1"] {
		t.Errorf("collapsed state not restored")
	}
	if len(gotEntries) != 1 || gotEntries[0] != entries[0] {
		t.Errorf("identity entries not restored: %v", gotEntries)
	}
}

func TestLoad_Missing(t *testing.T) {
	s, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	payload, err := s.Load("file:///never/saved.glm")
	if err != nil {
		t.Fatalf("missing payload must not error: %v", err)
	}
	if payload != nil {
		t.Errorf("expected nil payload for unknown URI")
	}
}

func TestDelete(t *testing.T) {
	s, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	const uri = "file:///workspace/model.glm"
	if err := s.Save(uri, diagram.NewMetadata(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(uri); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	payload, err := s.Load(uri)
	if err != nil || payload != nil {
		t.Errorf("payload survived delete: %v %v", payload, err)
	}
	// Deleting again is not an error.
	if err := s.Delete(uri); err != nil {
		t.Errorf("double delete: %v", err)
	}
}
