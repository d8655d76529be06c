package descriptor

import "testing"

func TestDemoDescriptor(t *testing.T) {
	d := Demo()
	if d.Language != "demo" {
		t.Fatalf("language = %q", d.Language)
	}
	mapping, ok := d.NodeMapping("entity")
	if !ok || mapping.DiagramType != "node:entity" {
		t.Fatalf("entity mapping = %+v, ok=%v", mapping, ok)
	}
	if len(mapping.Ports) != 2 {
		t.Fatalf("entity ports = %d, want 2", len(mapping.Ports))
	}
	if typ, _ := d.EdgeType("target"); typ != DefaultEdgeType {
		t.Fatalf("target edge type = %q", typ)
	}
	if !d.SupportsNodeType("property") {
		t.Fatal("property should be mapped")
	}
}
