package layout

import (
	"testing"

	"glint/internal/diagram"
)

func node(id string, w, h float64) *diagram.Node {
	return &diagram.Node{ID: diagram.ElementID(id), Size: diagram.Size{Width: w, Height: h}}
}

func containment(id, child, parent string) *diagram.Edge {
	return &diagram.Edge{
		ID:     diagram.ElementID(id),
		Kind:   diagram.EdgeContainment,
		Source: diagram.ElementID(child),
		Target: diagram.ElementID(parent),
	}
}

func TestGrid(t *testing.T) {
	snap := &diagram.Snapshot{Nodes: []*diagram.Node{
		node("a", 100, 40), node("b", 100, 40), node("c", 100, 40),
		node("d", 100, 40), node("e", 100, 40),
	}}
	e := NewEngine(Options{})
	if err := e.Apply("grid", snap); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// 5 nodes pack into ceil(sqrt(5)) = 3 columns.
	if snap.Nodes[3].Position.Y == snap.Nodes[0].Position.Y {
		t.Errorf("4th node should start a second row")
	}
	if snap.Nodes[0].Position.Y != snap.Nodes[2].Position.Y {
		t.Errorf("first three nodes share the first row")
	}
	seen := make(map[diagram.Point]bool)
	for _, n := range snap.Nodes {
		if seen[n.Position] {
			t.Errorf("two nodes share cell %v", n.Position)
		}
		seen[n.Position] = true
	}
}

func TestTree_SiblingSubtreesDoNotOverlap(t *testing.T) {
	// root with two children, each child with two leaves
	snap := &diagram.Snapshot{
		Nodes: []*diagram.Node{
			node("root", 80, 40),
			node("l", 80, 40), node("r", 80, 40),
			node("l1", 80, 40), node("l2", 80, 40),
			node("r1", 80, 40), node("r2", 80, 40),
		},
		Edges: []*diagram.Edge{
			containment("e1", "l", "root"),
			containment("e2", "r", "root"),
			containment("e3", "l1", "l"),
			containment("e4", "l2", "l"),
			containment("e5", "r1", "r"),
			containment("e6", "r2", "r"),
		},
	}
	e := NewEngine(Options{})
	if err := e.Apply("tree", snap); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	xRange := func(ids ...string) (float64, float64) {
		minX, maxX := 1e18, -1e18
		for _, id := range ids {
			n := snap.Node(diagram.ElementID(id))
			if n.Position.X < minX {
				minX = n.Position.X
			}
			if n.Position.X+n.Size.Width > maxX {
				maxX = n.Position.X + n.Size.Width
			}
		}
		return minX, maxX
	}

	_, leftMax := xRange("l", "l1", "l2")
	rightMin, _ := xRange("r", "r1", "r2")
	if leftMax > rightMin {
		t.Errorf("sibling subtree X-ranges overlap: left ends at %v, right starts at %v", leftMax, rightMin)
	}

	root := snap.Node("root")
	left := snap.Node("l")
	right := snap.Node("r")
	if root.Position.Y >= left.Position.Y {
		t.Errorf("parent must sit above its children")
	}
	rootCenter := root.Position.X + root.Size.Width/2
	spanMin := left.Position.X
	spanMax := right.Position.X + right.Size.Width
	if rootCenter < spanMin || rootCenter > spanMax {
		t.Errorf("parent center %v outside children span [%v, %v]", rootCenter, spanMin, spanMax)
	}
}

func TestTree_CyclicContainmentTerminates(t *testing.T) {
	snap := &diagram.Snapshot{
		Nodes: []*diagram.Node{node("a", 50, 30), node("b", 50, 30), node("c", 50, 30)},
		Edges: []*diagram.Edge{
			containment("e1", "a", "b"),
			containment("e2", "b", "c"),
			containment("e3", "c", "a"), // closes the cycle
		},
	}
	e := NewEngine(Options{})
	if err := e.Apply("tree", snap); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// All three must end up placed somewhere sensible.
	for _, n := range snap.Nodes {
		if n.Position.X < 0 || n.Position.Y < 0 {
			t.Errorf("node %s at negative position %v", n.ID, n.Position)
		}
	}
}

func TestTree_DisconnectedNodesBelowForest(t *testing.T) {
	snap := &diagram.Snapshot{
		Nodes: []*diagram.Node{node("root", 80, 40), node("child", 80, 40), node("island", 80, 40)},
		Edges: []*diagram.Edge{containment("e1", "child", "root")},
	}
	e := NewEngine(Options{})
	if err := e.Apply("layered", snap); err != nil { // layered is the tree alias
		t.Fatalf("Apply: %v", err)
	}
	island := snap.Node("island")
	child := snap.Node("child")
	if island.Position.Y <= child.Position.Y {
		t.Errorf("disconnected node must land below the forest: island %v, deepest %v", island.Position.Y, child.Position.Y)
	}
}

func TestForce_NonNegativeAndSeparated(t *testing.T) {
	snap := &diagram.Snapshot{
		Nodes: []*diagram.Node{node("a", 60, 40), node("b", 60, 40), node("c", 60, 40)},
		Edges: []*diagram.Edge{
			{ID: "e1", Kind: diagram.EdgeReference, Source: "a", Target: "b"},
		},
	}
	e := NewEngine(Options{ForceIterations: 50})
	if err := e.Apply("force", snap); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, n := range snap.Nodes {
		if n.Position.X < 0 || n.Position.Y < 0 {
			t.Errorf("node %s at negative position %v", n.ID, n.Position)
		}
	}
	a, b := snap.Node("a").Position, snap.Node("b").Position
	if a == b {
		t.Errorf("distinct nodes collapsed to one point")
	}
}

func TestApply_UnknownAlgorithm(t *testing.T) {
	snap := &diagram.Snapshot{Nodes: []*diagram.Node{node("a", 10, 10)}}
	if err := NewEngine(Options{}).Apply("magnetic", snap); err == nil {
		t.Errorf("unknown algorithm must error")
	}
}

func TestBounds(t *testing.T) {
	snap := &diagram.Snapshot{Nodes: []*diagram.Node{
		{ID: "a", Position: diagram.Point{X: 10, Y: 10}, Size: diagram.Size{Width: 100, Height: 50}},
		{ID: "b", Position: diagram.Point{X: 200, Y: 120}, Size: diagram.Size{Width: 40, Height: 40}},
	}}
	e := NewEngine(Options{Margin: 20})
	got := e.Bounds(snap)
	want := diagram.Size{Width: 260, Height: 180}
	if got != want {
		t.Errorf("Bounds() = %+v, want %+v", got, want)
	}
}

func TestRoute_StraightLine(t *testing.T) {
	src := &diagram.Node{Position: diagram.Point{X: 0, Y: 0}, Size: diagram.Size{Width: 100, Height: 40}}
	dst := &diagram.Node{Position: diagram.Point{X: 200, Y: 100}, Size: diagram.Size{Width: 50, Height: 20}}
	route := Route(src, dst)
	if len(route) != 2 {
		t.Fatalf("route has %d points, want 2", len(route))
	}
	if route[0] != (diagram.Point{X: 50, Y: 20}) || route[1] != (diagram.Point{X: 225, Y: 110}) {
		t.Errorf("route = %v", route)
	}
}
