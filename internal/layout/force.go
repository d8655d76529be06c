package layout

import (
	"math"

	"glint/internal/diagram"
)

// force runs a fixed-iteration force simulation: pairwise repulsion
// inversely proportional to distance, edge-wise attraction proportional
// to distance, and linearly decaying damping. The result is translated
// so every node lands at non-negative coordinates.
func (e *Engine) force(snap *diagram.Snapshot) {
	nodes := snap.Nodes
	n := len(nodes)
	if n == 0 {
		return
	}
	if n == 1 {
		nodes[0].Position = diagram.Point{X: e.opts.Margin, Y: e.opts.Margin}
		return
	}

	// Deterministic seeding on a circle; the simulation needs distinct
	// starting points, not randomness.
	radius := float64(n) * (e.opts.HSpacing + e.opts.VSpacing) / 4
	pos := make([]diagram.Point, n)
	for i := range nodes {
		angle := 2 * math.Pi * float64(i) / float64(n)
		pos[i] = diagram.Point{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
	}

	index := make(map[diagram.ElementID]int, n)
	for i, node := range nodes {
		index[node.ID] = i
	}

	repulsion := (e.opts.HSpacing + e.opts.VSpacing) * 50
	attraction := 0.02

	iterations := e.opts.ForceIterations
	disp := make([]diagram.Point, n)
	for iter := 0; iter < iterations; iter++ {
		for i := range disp {
			disp[i] = diagram.Point{}
		}

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx := pos[i].X - pos[j].X
				dy := pos[i].Y - pos[j].Y
				dist := math.Hypot(dx, dy)
				if dist < 1 {
					dist = 1
					dx, dy = 1, 0
				}
				f := repulsion / dist
				ux, uy := dx/dist, dy/dist
				disp[i].X += ux * f
				disp[i].Y += uy * f
				disp[j].X -= ux * f
				disp[j].Y -= uy * f
			}
		}

		for _, edge := range snap.Edges {
			si, ok1 := index[edge.Source]
			ti, ok2 := index[edge.Target]
			if !ok1 || !ok2 || si == ti {
				continue
			}
			dx := pos[ti].X - pos[si].X
			dy := pos[ti].Y - pos[si].Y
			dist := math.Hypot(dx, dy)
			if dist < 1 {
				continue
			}
			f := attraction * dist
			ux, uy := dx/dist, dy/dist
			disp[si].X += ux * f
			disp[si].Y += uy * f
			disp[ti].X -= ux * f
			disp[ti].Y -= uy * f
		}

		damping := 1 - float64(iter)/float64(iterations)
		for i := range pos {
			pos[i].X += disp[i].X * damping * 0.05
			pos[i].Y += disp[i].Y * damping * 0.05
		}
	}

	// Translate into the positive quadrant.
	minX, minY := math.Inf(1), math.Inf(1)
	for i := range pos {
		minX = math.Min(minX, pos[i].X)
		minY = math.Min(minY, pos[i].Y)
	}
	for i, node := range nodes {
		node.Position = diagram.Point{
			X: pos[i].X - minX + e.opts.Margin,
			Y: pos[i].Y - minY + e.opts.Margin,
		}
	}
}
