package diagfmt

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"glint/internal/diagram"
)

// Snapshot prints a converted model in a compact textual form: nodes
// with their geometry, then edges. Output order is by name and ID so
// repeated runs over the same model diff cleanly.
func Snapshot(w io.Writer, snap *diagram.Snapshot, useColor bool) {
	fmt.Fprintf(w, "%s (revision %d): %d node(s), %d edge(s)\n",
		snap.URI, snap.Revision, len(snap.Nodes), len(snap.Edges))

	nodes := append([]*diagram.Node(nil), snap.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ID < nodes[j].ID
	})

	nameWidth, typeWidth := 0, 0
	for _, n := range nodes {
		if width := runewidth.StringWidth(n.Name); width > nameWidth {
			nameWidth = width
		}
		if width := runewidth.StringWidth(n.Type); width > typeWidth {
			typeWidth = width
		}
	}

	heading := color.New(color.Bold)
	for _, n := range nodes {
		name := runewidth.FillRight(n.Name, nameWidth)
		if useColor {
			name = heading.Sprint(name)
		}
		fmt.Fprintf(w, "  %s %s at (%.0f,%.0f) %gx%g",
			name, runewidth.FillRight(n.Type, typeWidth),
			n.Position.X, n.Position.Y, n.Size.Width, n.Size.Height)
		if len(n.Ports) > 0 {
			fmt.Fprintf(w, " ports=%d", len(n.Ports))
		}
		fmt.Fprintln(w)
	}

	edges := append([]*diagram.Edge(nil), snap.Edges...)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	byID := make(map[diagram.ElementID]string, len(snap.Nodes))
	for _, n := range snap.Nodes {
		byID[n.ID] = n.Name
	}
	label := func(id diagram.ElementID) string {
		if name := byID[id]; name != "" {
			return name
		}
		return string(id)
	}
	for _, e := range edges {
		arrow := "->"
		if e.Kind == diagram.EdgeContainment {
			arrow = "in"
		}
		fmt.Fprintf(w, "  %s %s %s (%s)\n", label(e.Source), arrow, label(e.Target), e.Type)
	}
}
