package layout

import (
	"math"
	"sort"

	"glint/internal/diagram"
)

type treeNode struct {
	node     *diagram.Node
	children []*treeNode
	width    float64 // subtree extent including gaps
	depth    int
}

// tree lays the snapshot out as a forest: parents centered over their
// children, sibling subtrees packed left to right, cyclic back-edges
// severed before placement, and fully disconnected nodes parked in a
// row below the forest.
func (e *Engine) tree(snap *diagram.Snapshot) {
	parentOf := make(map[diagram.ElementID]diagram.ElementID)
	connected := make(map[diagram.ElementID]bool)

	for _, edge := range snap.Edges {
		// Containment edges point child→ancestor; reference edges
		// point source→target and read as parent→child here.
		var parent, child diagram.ElementID
		if edge.Kind == diagram.EdgeContainment {
			parent, child = edge.Target, edge.Source
		} else {
			parent, child = edge.Source, edge.Target
		}
		if snap.Node(parent) == nil || snap.Node(child) == nil || parent == child {
			continue
		}
		connected[parent] = true
		connected[child] = true
		if _, claimed := parentOf[child]; !claimed {
			parentOf[child] = parent
		}
	}

	severCycles(parentOf)

	// Build the forest; deterministic ordering by node appearance.
	byID := make(map[diagram.ElementID]*treeNode, len(snap.Nodes))
	for _, n := range snap.Nodes {
		byID[n.ID] = &treeNode{node: n}
	}
	var roots []*treeNode
	var loose []*diagram.Node
	for _, n := range snap.Nodes {
		tn := byID[n.ID]
		if pid, ok := parentOf[n.ID]; ok {
			byID[pid].children = append(byID[pid].children, tn)
		} else if connected[n.ID] {
			roots = append(roots, tn)
		} else {
			loose = append(loose, n)
		}
	}
	for _, tn := range byID {
		sort.Slice(tn.children, func(i, j int) bool {
			return tn.children[i].node.ID < tn.children[j].node.ID
		})
	}

	levelHeights := make(map[int]float64)
	for _, root := range roots {
		measure(root, 0, e.opts.HSpacing, levelHeights)
	}

	levelY := make(map[int]float64)
	y := e.opts.Margin
	for depth := 0; ; depth++ {
		h, ok := levelHeights[depth]
		if !ok {
			break
		}
		levelY[depth] = y
		y += h + e.opts.VSpacing
	}

	x := e.opts.Margin
	for _, root := range roots {
		place(root, x, e.opts.HSpacing, levelY)
		x += root.width + e.opts.HSpacing
	}

	// Disconnected nodes go in a row below everything placed so far.
	lx := e.opts.Margin
	for _, n := range loose {
		n.Position = diagram.Point{X: lx, Y: y}
		lx += n.Size.Width + e.opts.HSpacing
	}
}

// severCycles walks parent chains and cuts the link that closes a
// cycle, so placement always terminates.
func severCycles(parentOf map[diagram.ElementID]diagram.ElementID) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[diagram.ElementID]int)

	ids := make([]diagram.ElementID, 0, len(parentOf))
	for id := range parentOf {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, start := range ids {
		if state[start] != unvisited {
			continue
		}
		id := start
		var chain []diagram.ElementID
		for {
			state[id] = visiting
			chain = append(chain, id)
			parent, ok := parentOf[id]
			if !ok {
				break
			}
			if state[parent] == visiting {
				// Back-edge: detach the child from the cycle.
				delete(parentOf, id)
				break
			}
			if state[parent] == done {
				break
			}
			id = parent
		}
		for _, v := range chain {
			state[v] = done
		}
	}
}

// measure computes subtree widths bottom-up and records the tallest
// node per depth level.
func measure(tn *treeNode, depth int, gap float64, levelHeights map[int]float64) {
	tn.depth = depth
	levelHeights[depth] = math.Max(levelHeights[depth], tn.node.Size.Height)
	if len(tn.children) == 0 {
		tn.width = tn.node.Size.Width
		return
	}
	var total float64
	for i, child := range tn.children {
		measure(child, depth+1, gap, levelHeights)
		if i > 0 {
			total += gap
		}
		total += child.width
	}
	tn.width = math.Max(total, tn.node.Size.Width)
}

// place assigns positions depth-first: children fill [x, x+width) and
// the parent is centered over that range.
func place(tn *treeNode, x, gap float64, levelY map[int]float64) {
	tn.node.Position = diagram.Point{
		X: x + (tn.width-tn.node.Size.Width)/2,
		Y: levelY[tn.depth],
	}
	if len(tn.children) == 0 {
		return
	}
	var childrenWidth float64
	for i, child := range tn.children {
		if i > 0 {
			childrenWidth += gap
		}
		childrenWidth += child.width
	}
	childX := x + (tn.width-childrenWidth)/2
	for _, child := range tn.children {
		place(child, childX, gap, levelY)
		childX += child.width + gap
	}
}
