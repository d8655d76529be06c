// Package testkit holds structural checks shared by parser and
// converter tests.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"glint/internal/ast"
)

// CheckSpanInvariants runs a minimal set of span invariants on a parsed
// model tree:
// 1) the root span covers the whole source text
// 2) every named node has a non-empty span within the text bounds
// 3) every child span is contained in some ancestor's span or the root
func CheckSpanInvariants(root *ast.Node, text string) error {
	if root == nil {
		return fmt.Errorf("nil root")
	}
	length, err := safecast.Conv[uint32](len(text))
	if err != nil {
		return fmt.Errorf("text length overflow: %w", err)
	}
	if root.Span.Start != 0 || root.Span.End != length {
		return fmt.Errorf("root span %v does not cover text of length %d", root.Span, length)
	}

	var walkErr error
	ast.Walk(root, func(n *ast.Node) bool {
		if walkErr != nil {
			return false
		}
		if n == root {
			return true
		}
		sp := n.Span
		if n.Name != "" && sp.Empty() {
			return failf(&walkErr, "named node %s %q has an empty span", n.Type, n.Name)
		}
		if sp.End > length {
			return failf(&walkErr, "node %s %q span %v beyond text end %d", n.Type, n.Name, sp, length)
		}
		if sp.Start > sp.End {
			return failf(&walkErr, "node %s %q has inverted span %v", n.Type, n.Name, sp)
		}
		if p := n.Parent; p != nil && p != root {
			if sp.Start < p.Span.Start || sp.End > p.Span.End {
				return failf(&walkErr, "node %s %q span %v outside parent span %v", n.Type, n.Name, sp, p.Span)
			}
		}
		return true
	})
	return walkErr
}

func failf(dst *error, format string, args ...any) bool {
	*dst = fmt.Errorf(format, args...)
	return false
}
