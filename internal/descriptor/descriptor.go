// Package descriptor holds the per-language configuration that maps
// AST node types onto diagram vocabulary: node mappings, edge mappings,
// port lists, connection rules and default visuals. Descriptors are
// declarative assets consumed by the converter and the operation
// handlers; glint never derives them from a grammar.
package descriptor

import (
	"strings"

	"glint/internal/diagram"
)

// Wildcard matches any value in a connection rule field.
const Wildcard = "*"

// DefaultEdgeType is used for reference edges whose originating field
// has no entry in the descriptor's edge table.
const DefaultEdgeType = "edge:reference"

// Descriptor is one language's complete mapping table.
type Descriptor struct {
	Language string
	Nodes    map[string]NodeMapping
	Edges    map[string]EdgeMapping
	Rules    []Rule
}

// NodeMapping maps one AST node type to its diagram representation.
type NodeMapping struct {
	DiagramType string
	Shape       string
	CSSClasses  []string
	Default     diagram.Size
	NameBase    string
	Ports       []PortSpec
}

// PortSpec declares one port on every node of a mapped type.
type PortSpec struct {
	ID     string
	Side   diagram.Side
	Offset float64
	Style  string
}

// EdgeMapping maps an AST field name to an edge type.
type EdgeMapping struct {
	DiagramType     string
	AllowDuplicates bool
}

// Rule is one declarative connection constraint. Empty type fields and
// the explicit "*" both act as wildcards; empty port fields match any
// port and no port at all.
type Rule struct {
	EdgeType   string
	SourceType string
	SourcePort string
	TargetType string
	TargetPort string
	AllowSelf  bool
}

// NodeMapping resolves the mapping for an AST node type. Only types
// declared in the node table are mapped; undeclared types never become
// diagram nodes. The substring heuristics fill in visual fields a
// declaration leaves blank.
func (d *Descriptor) NodeMapping(astType string) (NodeMapping, bool) {
	if d == nil {
		return NodeMapping{}, false
	}
	m, ok := d.Nodes[astType]
	if !ok {
		return NodeMapping{}, false
	}
	if h, ok := HeuristicNodeMapping(astType); ok {
		if m.DiagramType == "" {
			m.DiagramType = h.DiagramType
		}
		if m.Shape == "" {
			m.Shape = h.Shape
		}
		if len(m.CSSClasses) == 0 {
			m.CSSClasses = h.CSSClasses
		}
		if m.Default.Width <= 0 || m.Default.Height <= 0 {
			m.Default = h.Default
		}
		if m.NameBase == "" {
			m.NameBase = h.NameBase
		}
	}
	return m, true
}

// EdgeType resolves the edge type for a reference originating from the
// named AST field, defaulting to DefaultEdgeType when unmapped.
func (d *Descriptor) EdgeType(field string) (string, EdgeMapping) {
	if d != nil {
		if m, ok := d.Edges[field]; ok {
			return m.DiagramType, m
		}
	}
	return DefaultEdgeType, EdgeMapping{DiagramType: DefaultEdgeType}
}

// SupportsNodeType reports whether createNode may instantiate astType.
func (d *Descriptor) SupportsNodeType(astType string) bool {
	_, ok := d.NodeMapping(astType)
	return ok
}

// SupportsEdgeType reports whether edgeType appears anywhere in the
// edge table or is the built-in default.
func (d *Descriptor) SupportsEdgeType(edgeType string) bool {
	if edgeType == DefaultEdgeType {
		return true
	}
	if d == nil {
		return false
	}
	for _, m := range d.Edges {
		if m.DiagramType == edgeType {
			return true
		}
	}
	return false
}

// EdgeAllowsDuplicates reports whether any edge mapping of the given
// type permits several same-type edges between the same endpoints.
func (d *Descriptor) EdgeAllowsDuplicates(edgeType string) bool {
	if d == nil {
		return false
	}
	for _, m := range d.Edges {
		if m.DiagramType == edgeType && m.AllowDuplicates {
			return true
		}
	}
	return false
}

// HeuristicNodeMapping guesses visual defaults from the AST type name
// alone. Types containing "entity" or "class" render entity-like,
// types containing "property" or "attribute" render field-like.
// Anything else has no guess. Acceptance is never heuristic; this only
// backfills visuals for declared types.
func HeuristicNodeMapping(astType string) (NodeMapping, bool) {
	lower := strings.ToLower(astType)
	switch {
	case strings.Contains(lower, "entity"), strings.Contains(lower, "class"):
		return NodeMapping{
			DiagramType: "node:entity",
			Shape:       "rectangle",
			CSSClasses:  []string{"entity"},
			Default:     diagram.Size{Width: 120, Height: 60},
			NameBase:    "Entity",
		}, true
	case strings.Contains(lower, "property"), strings.Contains(lower, "attribute"):
		return NodeMapping{
			DiagramType: "node:field",
			Shape:       "label",
			CSSClasses:  []string{"field"},
			Default:     diagram.Size{Width: 100, Height: 20},
			NameBase:    "Field",
		}, true
	default:
		return NodeMapping{}, false
	}
}
