// Package convert derives diagram snapshots from parsed ASTs. A
// conversion never mutates the AST and regenerates every diagram
// element from scratch; continuity across conversions comes from the
// identity registry (stable IDs) and the metadata store (positions,
// sizes, collapsed state).
package convert

import (
	"fmt"

	"github.com/google/uuid"

	"glint/internal/ast"
	"glint/internal/descriptor"
	"glint/internal/diagram"
	"glint/internal/identity"
	"glint/internal/layout"
)

// ContainmentEdgeType tags edges derived from AST parent/child nesting.
const ContainmentEdgeType = "edge:containment"

// portRadius is half the rendered port diameter used for port anchor
// geometry.
const portRadius = 4.0

// Context carries everything one conversion needs. Registry may be nil
// or never reconciled; the converter then mints unstable IDs, a
// degraded mode, not a failure.
type Context struct {
	URI        string
	Root       *ast.Node
	Descriptor *descriptor.Descriptor
	Schema     ast.Schema
	Registry   *identity.Registry
	Metadata   *diagram.Metadata
	Engine     *layout.Engine
	Revision   int64
}

// Convert runs the two conversion passes and returns a fresh snapshot
// with an incremented revision.
func Convert(ctx *Context) (*diagram.Snapshot, error) {
	if ctx == nil || ctx.Root == nil {
		return nil, fmt.Errorf("convert: nil context or root")
	}
	meta := ctx.Metadata
	if meta == nil {
		meta = diagram.NewMetadata()
	}
	engine := ctx.Engine
	if engine == nil {
		engine = layout.NewEngine(layout.DefaultOptions())
	}

	snap := &diagram.Snapshot{
		URI:      ctx.URI,
		Revision: ctx.Revision + 1,
	}

	c := &converter{
		ctx:      ctx,
		meta:     meta,
		engine:   engine,
		snap:     snap,
		accepted: make(map[*ast.Node]*diagram.Node),
		edgeIDs:  make(map[diagram.ElementID]int),
	}
	c.collectNodes(ctx.Root)
	if len(c.unplaced) > 0 {
		engine.PlaceDefaults(c.unplaced)
		// Defaults become sticky so unrelated edits don't reshuffle
		// the board.
		for _, n := range c.unplaced {
			meta.SetPosition(n.ID, n.Position)
		}
	}
	c.collectEdges(ctx.Root)
	return snap, nil
}

type converter struct {
	ctx      *Context
	meta     *diagram.Metadata
	engine   *layout.Engine
	snap     *diagram.Snapshot
	accepted map[*ast.Node]*diagram.Node
	unplaced []*diagram.Node
	edgeIDs  map[diagram.ElementID]int
}

// collectNodes is pass one: depth-first, a node becomes a diagram node
// only when it is named and the descriptor declares a mapping for its
// type. Unaccepted nodes are still traversed for mapped descendants.
func (c *converter) collectNodes(root *ast.Node) {
	ast.Walk(root, func(n *ast.Node) bool {
		mapping, mapped := c.ctx.Descriptor.NodeMapping(n.Type)
		if n.Name == "" || !mapped {
			return true
		}
		id := c.elementID(n)

		size, ok := c.meta.Size(id)
		if !ok {
			size = mapping.Default
			if size.Width <= 0 || size.Height <= 0 {
				size = diagram.Size{Width: 100, Height: 50}
			}
		}

		node := &diagram.Node{
			ID:         id,
			Type:       mapping.DiagramType,
			Name:       n.Name,
			Size:       size,
			Shape:      mapping.Shape,
			CSSClasses: mapping.CSSClasses,
			Collapsed:  c.meta.Collapsed[id],
			Labels:     []string{n.Name},
		}
		for _, spec := range mapping.Ports {
			node.Ports = append(node.Ports, diagram.Port{
				ID:       spec.ID,
				Side:     spec.Side,
				Offset:   spec.Offset,
				Style:    spec.Style,
				Position: diagram.PortPosition(size, spec.Side, spec.Offset, portRadius),
				Dir:      spec.Side.Direction(),
			})
		}

		if pos, ok := c.meta.Position(id); ok {
			node.Position = pos
		} else if pos, ok := embeddedPosition(n); ok {
			node.Position = pos
		} else {
			c.unplaced = append(c.unplaced, node)
		}

		c.meta.SourceRanges[id] = n.Span
		c.accepted[n] = node
		c.snap.Nodes = append(c.snap.Nodes, node)
		return true
	})
}

// collectEdges is pass two: containment edges to the nearest accepted
// ancestor plus reference edges found by scanning fields, descending
// through unaccepted wrapper nodes.
func (c *converter) collectEdges(root *ast.Node) {
	ast.Walk(root, func(n *ast.Node) bool {
		node, ok := c.accepted[n]
		if !ok {
			return true
		}
		if anc := c.nearestAcceptedAncestor(n); anc != nil {
			c.addEdge(&diagram.Edge{
				Type:   ContainmentEdgeType,
				Kind:   diagram.EdgeContainment,
				Source: node.ID,
				Target: anc.ID,
			})
		}
		visited := map[*ast.Node]struct{}{n: {}}
		c.scanRefs(n, node, visited)
		return true
	})
}

// scanRefs collects reference edges from every non-special field of
// origin's subtree that is not itself an accepted node. The visited
// set keeps grammar-introduced wrapper cycles from recursing forever.
func (c *converter) scanRefs(n *ast.Node, origin *diagram.Node, visited map[*ast.Node]struct{}) {
	for _, field := range n.FieldNames() {
		value := n.Fields[field]
		switch ast.ClassifyField(c.ctx.Schema, n.Type, field, value) {
		case ast.FieldReference:
			for _, ref := range refsIn(value) {
				c.emitReference(origin, field, ref)
			}
		case ast.FieldChild:
			for _, child := range childrenIn(value) {
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				if _, accepted := c.accepted[child]; accepted {
					// Accepted children emit their own edges.
					continue
				}
				c.scanRefs(child, origin, visited)
			}
		}
	}
}

func (c *converter) emitReference(origin *diagram.Node, field string, ref *ast.Ref) {
	if ref == nil || ref.Target == nil {
		return
	}
	target, ok := c.accepted[ref.Target]
	if !ok {
		return
	}
	edgeType, _ := c.ctx.Descriptor.EdgeType(field)
	c.addEdge(&diagram.Edge{
		Type:   edgeType,
		Kind:   diagram.EdgeReference,
		Source: origin.ID,
		Target: target.ID,
	})
}

// addEdge assigns a deterministic edge ID and restores any stored
// routing points before appending.
func (c *converter) addEdge(e *diagram.Edge) {
	base := diagram.ElementID(fmt.Sprintf("%s|%s|%s", e.Type, e.Source, e.Target))
	occ := c.edgeIDs[base]
	c.edgeIDs[base] = occ + 1
	if occ == 0 {
		e.ID = base
	} else {
		e.ID = diagram.ElementID(fmt.Sprintf("%s|%d", base, occ))
	}
	if route, ok := c.meta.Routes[e.ID]; ok {
		e.RoutingPoints = append([]diagram.Point(nil), route...)
	}
	c.snap.Edges = append(c.snap.Edges, e)
}

func (c *converter) nearestAcceptedAncestor(n *ast.Node) *diagram.Node {
	for anc := n.Parent; anc != nil; anc = anc.Parent {
		if node, ok := c.accepted[anc]; ok {
			return node
		}
	}
	return nil
}

// elementID resolves the stable ID through the registry, minting an
// unstable one when the registry was never reconciled.
func (c *converter) elementID(n *ast.Node) diagram.ElementID {
	if c.ctx.Registry != nil {
		if id, ok := c.ctx.Registry.UUID(n); ok {
			return id
		}
	}
	return diagram.ElementID(uuid.NewString())
}

func embeddedPosition(n *ast.Node) (diagram.Point, bool) {
	x, okX := asFloat(n.Field("x"))
	y, okY := asFloat(n.Field("y"))
	if !okX || !okY {
		return diagram.Point{}, false
	}
	return diagram.Point{X: x, Y: y}, true
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

func refsIn(value any) []*ast.Ref {
	switch v := value.(type) {
	case *ast.Ref:
		return []*ast.Ref{v}
	case []*ast.Ref:
		return v
	case []any:
		var out []*ast.Ref
		for _, item := range v {
			if ref, ok := item.(*ast.Ref); ok {
				out = append(out, ref)
			}
		}
		return out
	default:
		return nil
	}
}

func childrenIn(value any) []*ast.Node {
	switch v := value.(type) {
	case *ast.Node:
		return []*ast.Node{v}
	case []*ast.Node:
		return v
	case []any:
		var out []*ast.Node
		for _, item := range v {
			if child, ok := item.(*ast.Node); ok {
				out = append(out, child)
			}
		}
		return out
	default:
		return nil
	}
}
