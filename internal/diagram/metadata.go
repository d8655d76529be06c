package diagram

import "glint/internal/source"

// Metadata is the long-lived per-document layout state. It is keyed by
// element ID rather than AST reference so it survives wholesale AST
// replacement on reparse; it is discarded only when the document
// closes.
type Metadata struct {
	Positions    map[ElementID]Point
	Sizes        map[ElementID]Size
	Routes       map[ElementID][]Point
	Collapsed    map[ElementID]bool
	SourceRanges map[ElementID]source.Span
}

func NewMetadata() *Metadata {
	return &Metadata{
		Positions:    make(map[ElementID]Point),
		Sizes:        make(map[ElementID]Size),
		Routes:       make(map[ElementID][]Point),
		Collapsed:    make(map[ElementID]bool),
		SourceRanges: make(map[ElementID]source.Span),
	}
}

// Position returns the stored position for id.
func (m *Metadata) Position(id ElementID) (Point, bool) {
	p, ok := m.Positions[id]
	return p, ok
}

// SetPosition stores a user-placed position.
func (m *Metadata) SetPosition(id ElementID, p Point) {
	m.Positions[id] = p
}

// Size returns the stored size for id.
func (m *Metadata) Size(id ElementID) (Size, bool) {
	s, ok := m.Sizes[id]
	return s, ok
}

// SetSize stores a user-chosen size.
func (m *Metadata) SetSize(id ElementID, s Size) {
	m.Sizes[id] = s
}

// ClearRoute drops stored routing points for an edge; reconnecting an
// edge invalidates them.
func (m *Metadata) ClearRoute(id ElementID) {
	delete(m.Routes, id)
}

// Forget drops every piece of metadata held for id.
func (m *Metadata) Forget(id ElementID) {
	delete(m.Positions, id)
	delete(m.Sizes, id)
	delete(m.Routes, id)
	delete(m.Collapsed, id)
	delete(m.SourceRanges, id)
}

// IDs returns the set of element IDs any metadata is held for.
func (m *Metadata) IDs() map[ElementID]struct{} {
	out := make(map[ElementID]struct{})
	for id := range m.Positions {
		out[id] = struct{}{}
	}
	for id := range m.Sizes {
		out[id] = struct{}{}
	}
	for id := range m.Routes {
		out[id] = struct{}{}
	}
	for id := range m.Collapsed {
		out[id] = struct{}{}
	}
	for id := range m.SourceRanges {
		out[id] = struct{}{}
	}
	return out
}
