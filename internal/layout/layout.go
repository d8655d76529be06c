// Package layout computes positions for diagram nodes that have none.
// Algorithms are selected by name; user-placed positions always win and
// are never moved by the converter, only by an explicit applyLayout.
package layout

import (
	"fmt"
	"math"

	"glint/internal/diagram"
)

// Options tune every algorithm. Zero values fall back to defaults.
type Options struct {
	HSpacing        float64
	VSpacing        float64
	Margin          float64
	ForceIterations int
}

func DefaultOptions() Options {
	return Options{
		HSpacing:        40,
		VSpacing:        60,
		Margin:          20,
		ForceIterations: 80,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.HSpacing <= 0 {
		o.HSpacing = def.HSpacing
	}
	if o.VSpacing <= 0 {
		o.VSpacing = def.VSpacing
	}
	if o.Margin <= 0 {
		o.Margin = def.Margin
	}
	if o.ForceIterations <= 0 {
		o.ForceIterations = def.ForceIterations
	}
	return o
}

// Engine runs layout algorithms over snapshots.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.normalized()}
}

// Apply positions every node of the snapshot with the named algorithm:
// "grid", "tree", "layered" (an alias of tree) or "force".
func (e *Engine) Apply(algorithm string, snap *diagram.Snapshot) error {
	if snap == nil || len(snap.Nodes) == 0 {
		return nil
	}
	switch algorithm {
	case "grid":
		e.grid(snap.Nodes)
	case "tree", "layered":
		e.tree(snap)
	case "force", "force-directed":
		e.force(snap)
	default:
		return fmt.Errorf("unknown layout algorithm %q", algorithm)
	}
	return nil
}

// PlaceDefaults grid-packs only the given nodes, used by the converter
// for nodes that have neither stored nor embedded positions.
func (e *Engine) PlaceDefaults(nodes []*diagram.Node) {
	e.grid(nodes)
}

// grid packs nodes row-major into ceil(sqrt(n)) columns with uniform
// cells sized by the largest node.
func (e *Engine) grid(nodes []*diagram.Node) {
	n := len(nodes)
	if n == 0 {
		return
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))

	var cellW, cellH float64
	for _, node := range nodes {
		cellW = math.Max(cellW, node.Size.Width)
		cellH = math.Max(cellH, node.Size.Height)
	}
	cellW += e.opts.HSpacing
	cellH += e.opts.VSpacing

	for i, node := range nodes {
		row := i / cols
		col := i % cols
		node.Position = diagram.Point{
			X: e.opts.Margin + float64(col)*cellW,
			Y: e.opts.Margin + float64(row)*cellH,
		}
	}
}

// Bounds returns the extent of the laid-out snapshot plus a fixed
// margin on every side.
func (e *Engine) Bounds(snap *diagram.Snapshot) diagram.Size {
	if snap == nil || len(snap.Nodes) == 0 {
		return diagram.Size{}
	}
	var maxX, maxY float64
	for _, n := range snap.Nodes {
		maxX = math.Max(maxX, n.Position.X+n.Size.Width)
		maxY = math.Max(maxY, n.Position.Y+n.Size.Height)
	}
	return diagram.Size{Width: maxX + e.opts.Margin, Height: maxY + e.opts.Margin}
}

// Route returns the straight-line route between two node centers.
// There is no obstacle avoidance; clients wanting orthogonal routing
// store their own routing points.
func Route(source, target *diagram.Node) []diagram.Point {
	if source == nil || target == nil {
		return nil
	}
	return []diagram.Point{center(source), center(target)}
}

func center(n *diagram.Node) diagram.Point {
	return diagram.Point{
		X: n.Position.X + n.Size.Width/2,
		Y: n.Position.Y + n.Size.Height/2,
	}
}
