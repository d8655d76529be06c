// Package ast defines the node shape glint consumes from the external
// parser. Nodes are immutable after a parse: every reparse produces a
// fresh tree and the old one is discarded wholesale, so nothing in this
// package mutates a node in place.
package ast

import (
	"sort"

	"glint/internal/source"
)

// Node is one node of a parsed document. Type is the grammar's tag for
// the construct; Name is empty for unnamed nodes. Fields holds the
// type-specific payload: scalars, references, child nodes, or lists of
// either.
type Node struct {
	Type   string
	Name   string
	Span   source.Span
	Parent *Node
	Fields map[string]any
}

// Ref is a cross-reference value inside a node field: the raw token as
// written in the source plus the resolved target, nil while unresolved.
type Ref struct {
	RawText string
	Target  *Node
}

// Field returns the named field value, nil if absent.
func (n *Node) Field(name string) any {
	if n == nil || n.Fields == nil {
		return nil
	}
	return n.Fields[name]
}

// Children collects every child node reachable through the fields.
// Field names are visited in sorted order so traversal is deterministic
// across runs, which keeps derived element ordering stable.
func (n *Node) Children() []*Node {
	if n == nil || len(n.Fields) == 0 {
		return nil
	}
	var out []*Node
	for _, name := range n.FieldNames() {
		switch val := n.Fields[name].(type) {
		case *Node:
			out = append(out, val)
		case []*Node:
			out = append(out, val...)
		}
	}
	return out
}

// FieldNames returns the node's field names in sorted order.
func (n *Node) FieldNames() []string {
	if n == nil || len(n.Fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(n.Fields))
	for name := range n.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Walk visits n and every descendant depth-first. The visit function
// returns false to prune the subtree below the current node.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, child := range n.Children() {
		Walk(child, visit)
	}
}

// AttachParents fixes up Parent links across the whole tree. Parsers
// that build trees bottom-up call this once on the finished root.
func AttachParents(root *Node) {
	Walk(root, func(n *Node) bool {
		for _, child := range n.Children() {
			child.Parent = n
		}
		return true
	})
}
