package session

import (
	"sort"
	"time"

	"go.lsp.dev/uri"

	"glint/internal/diagram"
)

// ChangeType classifies one element-level difference between two
// snapshot revisions.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change is one element-level difference.
type Change struct {
	Type        ChangeType        `json:"type"`
	Element     diagram.ElementID `json:"element"`
	ElementType string            `json:"elementType,omitempty"`
	Property    string            `json:"property,omitempty"`
	OldValue    any               `json:"oldValue,omitempty"`
	NewValue    any               `json:"newValue,omitempty"`
}

// ChangeEvent notifies subscribers that a document's diagram advanced
// to a new revision.
type ChangeEvent struct {
	URI       uri.URI           `json:"uri"`
	Revision  int64             `json:"revision"`
	Timestamp time.Time         `json:"timestamp"`
	Changes   []Change          `json:"changes"`
	Snapshot  *diagram.Snapshot `json:"snapshot,omitempty"`
}

// diffSnapshots computes element-level changes from before to after. A nil
// before snapshot reports everything as added. Output is ordered by
// element ID within each change class so events diff cleanly in logs.
func diffSnapshots(before, after *diagram.Snapshot) []Change {
	var changes []Change

	oldNodes := map[diagram.ElementID]*diagram.Node{}
	oldEdges := map[diagram.ElementID]*diagram.Edge{}
	if before != nil {
		for _, n := range before.Nodes {
			oldNodes[n.ID] = n
		}
		for _, e := range before.Edges {
			oldEdges[e.ID] = e
		}
	}

	newNodes := map[diagram.ElementID]bool{}
	for _, n := range after.Nodes {
		newNodes[n.ID] = true
		prev, ok := oldNodes[n.ID]
		if !ok {
			changes = append(changes, Change{Type: ChangeAdded, Element: n.ID, ElementType: n.Type})
			continue
		}
		changes = append(changes, diffNode(prev, n)...)
	}
	newEdges := map[diagram.ElementID]bool{}
	for _, e := range after.Edges {
		newEdges[e.ID] = true
		prev, ok := oldEdges[e.ID]
		if !ok {
			changes = append(changes, Change{Type: ChangeAdded, Element: e.ID, ElementType: e.Type})
			continue
		}
		if prev.Source != e.Source {
			changes = append(changes, Change{
				Type: ChangeModified, Element: e.ID, ElementType: e.Type,
				Property: "source", OldValue: prev.Source, NewValue: e.Source,
			})
		}
		if prev.Target != e.Target {
			changes = append(changes, Change{
				Type: ChangeModified, Element: e.ID, ElementType: e.Type,
				Property: "target", OldValue: prev.Target, NewValue: e.Target,
			})
		}
	}

	for id, n := range oldNodes {
		if !newNodes[id] {
			changes = append(changes, Change{Type: ChangeRemoved, Element: id, ElementType: n.Type})
		}
	}
	for id, e := range oldEdges {
		if !newEdges[id] {
			changes = append(changes, Change{Type: ChangeRemoved, Element: id, ElementType: e.Type})
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Type != changes[j].Type {
			return changes[i].Type < changes[j].Type
		}
		if changes[i].Element != changes[j].Element {
			return changes[i].Element < changes[j].Element
		}
		return changes[i].Property < changes[j].Property
	})
	return changes
}

func diffNode(prev, cur *diagram.Node) []Change {
	var changes []Change
	mod := func(property string, oldVal, newVal any) {
		changes = append(changes, Change{
			Type: ChangeModified, Element: cur.ID, ElementType: cur.Type,
			Property: property, OldValue: oldVal, NewValue: newVal,
		})
	}
	if prev.Name != cur.Name {
		mod("name", prev.Name, cur.Name)
	}
	if prev.Type != cur.Type {
		mod("type", prev.Type, cur.Type)
	}
	if prev.Position != cur.Position {
		mod("position", prev.Position, cur.Position)
	}
	if prev.Size != cur.Size {
		mod("size", prev.Size, cur.Size)
	}
	if prev.Collapsed != cur.Collapsed {
		mod("collapsed", prev.Collapsed, cur.Collapsed)
	}
	return changes
}
