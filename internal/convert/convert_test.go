package convert

import (
	"testing"

	"glint/internal/ast"
	"glint/internal/descriptor"
	"glint/internal/diagram"
	"glint/internal/identity"
	"glint/internal/layout"
)

const testDescriptor = `
language = "demo"

[nodes.entity]
diagram_type = "node:entity"
shape = "rectangle"
width = 120
height = 60

[[nodes.entity.ports]]
id = "in"
side = "left"
offset = 0.5

[edges.target]
diagram_type = "edge:association"
`

func testContext(t *testing.T, text string) *Context {
	t.Helper()
	d, err := descriptor.Load(testDescriptor)
	if err != nil {
		t.Fatalf("descriptor.Load: %v", err)
	}
	root, err := ast.ParseModel(text)
	if err != nil {
		t.Fatalf("ParseModel: %v", err)
	}
	registry := identity.NewRegistry()
	registry.Reconcile(root)
	return &Context{
		URI:        "file:///test.glm",
		Root:       root,
		Descriptor: d,
		Registry:   registry,
		Metadata:   diagram.NewMetadata(),
		Engine:     layout.NewEngine(layout.Options{}),
	}
}

const abModel = `entity A {
}
entity B {
    target -> A
}
`

func TestConvert_ReferenceScenario(t *testing.T) {
	ctx := testContext(t, abModel)
	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if len(snap.Nodes) != 2 {
		t.Fatalf("got %d diagram nodes, want 2", len(snap.Nodes))
	}
	var a, b *diagram.Node
	for _, n := range snap.Nodes {
		switch n.Name {
		case "A":
			a = n
		case "B":
			b = n
		}
	}
	if a == nil || b == nil {
		t.Fatalf("entity nodes missing: A=%v B=%v", a, b)
	}

	// The reference sits inside an unaccepted "relation" wrapper node;
	// the converter must descend through it and attribute the edge to B.
	var refEdges []*diagram.Edge
	for _, e := range snap.Edges {
		if e.Kind == diagram.EdgeReference {
			refEdges = append(refEdges, e)
		}
	}
	if len(refEdges) < 1 {
		t.Fatalf("expected at least one reference edge")
	}
	edge := refEdges[0]
	if edge.Source != b.ID || edge.Target != a.ID {
		t.Errorf("edge endpoints = %s -> %s, want B -> A", edge.Source, edge.Target)
	}
	if edge.Type != "edge:association" {
		t.Errorf("edge typed %q, want descriptor mapping for field target", edge.Type)
	}

	if snap.Revision != 1 {
		t.Errorf("revision = %d, want 1", snap.Revision)
	}
}

func TestConvert_ReferentialIntegrity(t *testing.T) {
	ctx := testContext(t, `entity A {
    to -> B
    gone -> Missing
}
entity B {
    back -> A
}
`)
	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for _, e := range snap.Edges {
		if snap.Node(e.Source) == nil {
			t.Errorf("edge %s has dangling source %s", e.ID, e.Source)
		}
		if snap.Node(e.Target) == nil {
			t.Errorf("edge %s has dangling target %s", e.ID, e.Target)
		}
	}
}

func TestConvert_UnmappedFieldGetsDefaultEdgeType(t *testing.T) {
	ctx := testContext(t, `entity A {
}
entity B {
    other -> A
}
`)
	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	found := false
	for _, e := range snap.Edges {
		if e.Kind == diagram.EdgeReference {
			found = true
			if e.Type != descriptor.DefaultEdgeType {
				t.Errorf("unmapped field edge typed %q, want %q", e.Type, descriptor.DefaultEdgeType)
			}
		}
	}
	if !found {
		t.Fatalf("reference edge missing")
	}
}

// relationDescriptor additionally maps the relation wrapper type so
// nested relations become their own accepted nodes.
const relationDescriptor = testDescriptor + `
[nodes.relation]
diagram_type = "node:relation"
width = 80
height = 20
`

func TestConvert_ContainmentEdges(t *testing.T) {
	ctx := testContext(t, `entity A {
    link -> A
}
`)
	d, err := descriptor.Load(relationDescriptor)
	if err != nil {
		t.Fatalf("descriptor.Load: %v", err)
	}
	ctx.Descriptor = d
	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	// "link" is a relation node nested in A: it must have a
	// containment edge to A, its nearest accepted ancestor.
	var link, a *diagram.Node
	for _, n := range snap.Nodes {
		switch n.Name {
		case "link":
			link = n
		case "A":
			a = n
		}
	}
	if link == nil || a == nil {
		t.Fatalf("nodes missing: link=%v a=%v", link, a)
	}
	foundContainment := false
	for _, e := range snap.Edges {
		if e.Kind == diagram.EdgeContainment && e.Source == link.ID && e.Target == a.ID {
			foundContainment = true
		}
	}
	if !foundContainment {
		t.Errorf("containment edge from nested node to ancestor missing")
	}
}

func TestConvert_SkipsUnnamedAndUnmapped(t *testing.T) {
	ctx := testContext(t, `entity A {
    name: string
}
`)
	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	// The root "model" node is unnamed and must not appear, but its
	// mapped descendants must still be found.
	for _, n := range snap.Nodes {
		if n.Name == "" {
			t.Errorf("unnamed node converted: %+v", n)
		}
	}
	foundEntity := false
	for _, n := range snap.Nodes {
		if n.Name == "A" {
			foundEntity = true
		}
	}
	if !foundEntity {
		t.Errorf("mapped descendant of the unnamed root was not converted")
	}
	// "property" is not declared by the descriptor. The substring
	// heuristic recognizes the type name, but heuristics only backfill
	// visuals; they never grant acceptance.
	for _, n := range snap.Nodes {
		if n.Name == "name" {
			t.Errorf("undeclared property type converted: %+v", n)
		}
	}
	if len(snap.Nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(snap.Nodes))
	}
	if len(snap.Edges) != 0 {
		t.Errorf("edges = %d, want 0", len(snap.Edges))
	}
}

func TestConvert_DeclaredTypeBackfillsVisuals(t *testing.T) {
	d, err := descriptor.Load(`
language = "demo"

[nodes.entity]
diagram_type = "node:entity"
width = 120
height = 60

[nodes.property]
`)
	if err != nil {
		t.Fatalf("descriptor.Load: %v", err)
	}
	root, err := ast.ParseModel("entity A {\n    name: string\n}\n")
	if err != nil {
		t.Fatalf("ParseModel: %v", err)
	}
	registry := identity.NewRegistry()
	registry.Reconcile(root)
	snap, err := Convert(&Context{
		URI:        "file:///test.glm",
		Root:       root,
		Descriptor: d,
		Registry:   registry,
		Metadata:   diagram.NewMetadata(),
		Engine:     layout.NewEngine(layout.Options{}),
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var prop *diagram.Node
	for _, n := range snap.Nodes {
		if n.Name == "name" {
			prop = n
		}
	}
	if prop == nil {
		t.Fatalf("declared property type was not converted")
	}
	if prop.Type != "node:field" || prop.Shape != "label" {
		t.Errorf("heuristic visuals not backfilled: %+v", prop)
	}
}

func TestConvert_MetadataPositionWins(t *testing.T) {
	ctx := testContext(t, "entity A {\n    at 10,20\n}\n")
	var aID diagram.ElementID
	ast.Walk(ctx.Root, func(n *ast.Node) bool {
		if n.Name == "A" {
			aID, _ = ctx.Registry.UUID(n)
		}
		return true
	})
	ctx.Metadata.SetPosition(aID, diagram.Point{X: 500, Y: 600})

	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	a := snap.Node(aID)
	if a == nil {
		t.Fatalf("node A missing")
	}
	if a.Position != (diagram.Point{X: 500, Y: 600}) {
		t.Errorf("stored metadata position must beat embedded AST position, got %v", a.Position)
	}
}

func TestConvert_EmbeddedPositionFallback(t *testing.T) {
	ctx := testContext(t, "entity A {\n    at 10,20\n}\n")
	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var a *diagram.Node
	for _, n := range snap.Nodes {
		if n.Name == "A" {
			a = n
		}
	}
	if a.Position != (diagram.Point{X: 10, Y: 20}) {
		t.Errorf("embedded position not honored: %v", a.Position)
	}
}

func TestConvert_Ports(t *testing.T) {
	ctx := testContext(t, "entity A {\n}\n")
	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var a *diagram.Node
	for _, n := range snap.Nodes {
		if n.Name == "A" {
			a = n
		}
	}
	if len(a.Ports) != 1 {
		t.Fatalf("got %d ports, want 1", len(a.Ports))
	}
	p := a.Ports[0]
	if p.Side != diagram.SideLeft || p.Dir != diagram.DirInput {
		t.Errorf("port side/direction wrong: %+v", p)
	}
	// left side, offset 0.5, node 120x60, r=4: (-4, 26)
	if p.Position != (diagram.Point{X: -4, Y: 26}) {
		t.Errorf("port position = %v", p.Position)
	}
}

func TestConvert_DegradedModeWithoutRegistry(t *testing.T) {
	ctx := testContext(t, abModel)
	ctx.Registry = nil

	snap, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert must not fail without a registry: %v", err)
	}
	if len(snap.Nodes) == 0 {
		t.Fatalf("no nodes in degraded mode")
	}
	seen := make(map[diagram.ElementID]bool)
	for _, n := range snap.Nodes {
		if n.ID == "" {
			t.Errorf("degraded mode must still mint IDs")
		}
		if seen[n.ID] {
			t.Errorf("duplicate ID %s", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestConvert_StableAcrossReparse(t *testing.T) {
	d, err := descriptor.Load(testDescriptor)
	if err != nil {
		t.Fatalf("descriptor.Load: %v", err)
	}
	registry := identity.NewRegistry()
	meta := diagram.NewMetadata()

	convertText := func(text string, rev int64) *diagram.Snapshot {
		root, err := ast.ParseModel(text)
		if err != nil {
			t.Fatalf("ParseModel: %v", err)
		}
		registry.Reconcile(root)
		snap, err := Convert(&Context{
			Root:       root,
			Descriptor: d,
			Registry:   registry,
			Metadata:   meta,
			Revision:   rev,
		})
		if err != nil {
			t.Fatalf("Convert: %v", err)
		}
		return snap
	}

	first := convertText(abModel, 0)
	second := convertText(abModel, first.Revision)

	ids := func(s *diagram.Snapshot) map[string]diagram.ElementID {
		out := make(map[string]diagram.ElementID)
		for _, n := range s.Nodes {
			out[n.Name] = n.ID
		}
		return out
	}
	firstIDs, secondIDs := ids(first), ids(second)
	for name, id := range firstIDs {
		if secondIDs[name] != id {
			t.Errorf("node %q changed ID across reparse: %s -> %s", name, id, secondIDs[name])
		}
	}
	if second.Revision != first.Revision+1 {
		t.Errorf("revision not incremented: %d -> %d", first.Revision, second.Revision)
	}
	// Positions assigned on the first conversion carry forward.
	for _, n := range second.Nodes {
		firstNode := first.Node(n.ID)
		if firstNode != nil && firstNode.Position != n.Position {
			t.Errorf("node %q moved across reparse: %v -> %v", n.Name, firstNode.Position, n.Position)
		}
	}
}

func TestConvert_RoutingPointsRestored(t *testing.T) {
	ctx := testContext(t, abModel)
	first, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var refEdge *diagram.Edge
	for _, e := range first.Edges {
		if e.Kind == diagram.EdgeReference {
			refEdge = e
		}
	}
	if refEdge == nil {
		t.Fatalf("no reference edge")
	}
	ctx.Metadata.Routes[refEdge.ID] = []diagram.Point{{X: 1, Y: 2}}

	ctx.Revision = first.Revision
	second, err := Convert(ctx)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	again := second.Edge(refEdge.ID)
	if again == nil {
		t.Fatalf("edge ID not stable across conversions")
	}
	if len(again.RoutingPoints) != 1 || again.RoutingPoints[0] != (diagram.Point{X: 1, Y: 2}) {
		t.Errorf("stored routing points not restored: %v", again.RoutingPoints)
	}
}
