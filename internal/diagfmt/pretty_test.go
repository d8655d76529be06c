package diagfmt

import (
	"strings"
	"testing"

	"glint/internal/diag"
	"glint/internal/diagram"
)

func sampleBag() *diag.Bag {
	bag := diag.NewBag(10)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.ValDanglingEndpoint,
		Message:  "edge \"e1\" references missing target \"gone\"",
		Element:  "e1",
	})
	bag.Add(diag.Diagnostic{
		Severity: diag.SevWarning,
		Code:     diag.ValUnconstrainedEdgeType,
		Message:  "edge type \"edge:uses\" has no connection rule; every pairing is allowed",
		Element:  "e2",
	})
	return bag
}

func TestPretty(t *testing.T) {
	var sb strings.Builder
	Pretty(&sb, "file:///m.glm", sampleBag(), PrettyOpts{})
	out := sb.String()
	for _, want := range []string{"file:///m.glm", "error GL1002", "warning GL2001", "1 error(s), 1 warning(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrettyClean(t *testing.T) {
	var sb strings.Builder
	Pretty(&sb, "file:///m.glm", diag.NewBag(10), PrettyOpts{})
	if !strings.Contains(sb.String(), "clean") {
		t.Fatalf("clean bag output = %q", sb.String())
	}
}

func TestPrettyMax(t *testing.T) {
	var sb strings.Builder
	Pretty(&sb, "file:///m.glm", sampleBag(), PrettyOpts{Max: 1})
	out := sb.String()
	if strings.Contains(out, "GL2001") {
		t.Fatalf("Max=1 should drop the warning:\n%s", out)
	}
}

func TestBuildDiagnosticsOutput(t *testing.T) {
	out := BuildDiagnosticsOutput("file:///m.glm", sampleBag(), JSONOpts{})
	if out.Count != 2 || out.Errors != 1 {
		t.Fatalf("count = %d errors = %d, want 2/1", out.Count, out.Errors)
	}
	// Bag sorts errors first.
	if out.Diagnostics[0].Code != "GL1002" || out.Diagnostics[0].Severity != "error" {
		t.Fatalf("first diagnostic = %+v", out.Diagnostics[0])
	}
	if out.Diagnostics[1].Element != "e2" {
		t.Fatalf("second element = %q", out.Diagnostics[1].Element)
	}
}

func TestSnapshot(t *testing.T) {
	snap := &diagram.Snapshot{
		URI:      "file:///m.glm",
		Revision: 3,
		Nodes: []*diagram.Node{
			{ID: "b", Type: "node:entity", Name: "Order", Position: diagram.Point{X: 160, Y: 20}, Size: diagram.Size{Width: 120, Height: 60}},
			{ID: "a", Type: "node:entity", Name: "Customer", Position: diagram.Point{X: 20, Y: 20}, Size: diagram.Size{Width: 120, Height: 60}},
		},
		Edges: []*diagram.Edge{
			{ID: "e", Type: "edge:association", Kind: diagram.EdgeReference, Source: "b", Target: "a"},
		},
	}
	var sb strings.Builder
	Snapshot(&sb, snap, false)
	out := sb.String()
	if !strings.Contains(out, "revision 3") || !strings.Contains(out, "2 node(s), 1 edge(s)") {
		t.Fatalf("header wrong:\n%s", out)
	}
	if !strings.Contains(out, "Order -> Customer (edge:association)") {
		t.Fatalf("edge line missing:\n%s", out)
	}
	// Nodes sort by name, so Customer prints before Order.
	if strings.Index(out, "Customer") > strings.Index(out, "Order -> ") {
		t.Fatalf("node ordering wrong:\n%s", out)
	}
}
