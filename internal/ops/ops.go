// Package ops implements the five diagram operations: create-node,
// create-edge, reconnect-edge, delete-element and change-bounds. Each
// verb validates first and mutates second; a failed validation or a
// failed materialization leaves the snapshot untouched.
package ops

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"glint/internal/descriptor"
	"glint/internal/diagram"
	"glint/internal/rules"
	"glint/internal/textedit"
)

var (
	ErrUnsupportedType = errors.New("type not supported by the language descriptor")
	ErrMissingElement  = errors.New("element does not exist in the current snapshot")
	ErrRuleViolation   = errors.New("connection rules reject the endpoints")
	ErrSelfConnection  = errors.New("self-connection not allowed by any rule")
	ErrDuplicateEdge   = errors.New("duplicate edge between the same endpoints")
	ErrUnknownPort     = errors.New("endpoint has no such port")
	ErrNoNewEndpoint   = errors.New("reconnect needs at least one new endpoint")
)

// Materializer is the external collaborator that turns an accepted
// diagram operation into concrete source-text edits. A materializer
// error aborts the whole operation with no partial mutation.
type Materializer interface {
	CreateNode(astType, name string, args map[string]string) ([]textedit.Edit, error)
	CreateEdge(edgeType string, source, target diagram.ElementID, args map[string]string) ([]textedit.Edit, error)
}

// Result reports one executed operation: the text edits to queue for
// the source document, the element the operation touched, and an undo
// closure reversing the in-memory mutation only; text-level undo
// belongs to the host.
type Result struct {
	Element  diagram.ElementID
	Revision int64
	Edits    []textedit.Edit
	Undo     func()
}

// Handler executes operations against one document's current snapshot
// and metadata. The session layer serializes calls per document.
type Handler struct {
	desc      *descriptor.Descriptor
	validator *rules.Validator
	snap      *diagram.Snapshot
	meta      *diagram.Metadata
	mat       Materializer
}

func NewHandler(desc *descriptor.Descriptor, snap *diagram.Snapshot, meta *diagram.Metadata, mat Materializer) *Handler {
	return &Handler{
		desc:      desc,
		validator: rules.NewValidator(desc),
		snap:      snap,
		meta:      meta,
		mat:       mat,
	}
}

// CreateNodeRequest asks for a fresh node materialized into the text.
type CreateNodeRequest struct {
	Type      string
	Location  diagram.Point
	Container diagram.ElementID
	BaseName  string
	Args      map[string]string
}

// CanCreateNode validates the request without mutating anything.
func (h *Handler) CanCreateNode(req CreateNodeRequest) error {
	if !h.desc.SupportsNodeType(req.Type) {
		return fmt.Errorf("createNode %q: %w", req.Type, ErrUnsupportedType)
	}
	if req.Container != "" && h.snap.Node(req.Container) == nil {
		return fmt.Errorf("createNode container %q: %w", req.Container, ErrMissingElement)
	}
	return nil
}

// CreateNode builds the node client-side, asks the materializer for
// the corresponding text edit, and only then mutates the snapshot.
func (h *Handler) CreateNode(req CreateNodeRequest) (*Result, error) {
	if err := h.CanCreateNode(req); err != nil {
		return nil, err
	}
	mapping, _ := h.desc.NodeMapping(req.Type)
	name := h.uniqueName(firstNonEmpty(req.BaseName, mapping.NameBase, "Element"))

	edits, err := h.mat.CreateNode(req.Type, name, req.Args)
	if err != nil {
		return nil, fmt.Errorf("materializer rejected createNode: %w", err)
	}

	size := mapping.Default
	if size.Width <= 0 || size.Height <= 0 {
		size = diagram.Size{Width: 100, Height: 50}
	}
	node := &diagram.Node{
		ID:         diagram.ElementID(uuid.NewString()),
		Type:       mapping.DiagramType,
		Name:       name,
		Position:   req.Location,
		Size:       size,
		Shape:      mapping.Shape,
		CSSClasses: mapping.CSSClasses,
		Labels:     []string{name},
	}
	for _, spec := range mapping.Ports {
		node.Ports = append(node.Ports, diagram.Port{
			ID:       spec.ID,
			Side:     spec.Side,
			Offset:   spec.Offset,
			Style:    spec.Style,
			Position: diagram.PortPosition(size, spec.Side, spec.Offset, 4),
			Dir:      spec.Side.Direction(),
		})
	}

	h.snap.Nodes = append(h.snap.Nodes, node)
	h.meta.SetPosition(node.ID, req.Location)
	h.snap.Revision++

	id := node.ID
	return &Result{
		Element:  id,
		Revision: h.snap.Revision,
		Edits:    edits,
		Undo: func() {
			h.snap.RemoveNode(id)
			h.meta.Forget(id)
			h.snap.Revision++
		},
	}, nil
}

// CreateEdgeRequest asks for a connection between existing elements.
type CreateEdgeRequest struct {
	Type       string
	Source     diagram.ElementID
	Target     diagram.ElementID
	SourcePort string
	TargetPort string
	Args       map[string]string
}

// CanCreateEdge validates endpoints, ports, connection rules,
// self-connection allowance and duplicate policy.
func (h *Handler) CanCreateEdge(req CreateEdgeRequest) error {
	if !h.desc.SupportsEdgeType(req.Type) {
		return fmt.Errorf("createEdge %q: %w", req.Type, ErrUnsupportedType)
	}
	src := h.snap.Node(req.Source)
	if src == nil {
		return fmt.Errorf("createEdge source %q: %w", req.Source, ErrMissingElement)
	}
	tgt := h.snap.Node(req.Target)
	if tgt == nil {
		return fmt.Errorf("createEdge target %q: %w", req.Target, ErrMissingElement)
	}
	if req.SourcePort != "" && !hasPort(src, req.SourcePort) {
		return fmt.Errorf("source port %q: %w", req.SourcePort, ErrUnknownPort)
	}
	if req.TargetPort != "" && !hasPort(tgt, req.TargetPort) {
		return fmt.Errorf("target port %q: %w", req.TargetPort, ErrUnknownPort)
	}

	self := req.Source == req.Target
	ok := h.validator.IsValid(rules.Endpoints{
		EdgeType:   req.Type,
		SourceType: src.Type,
		SourcePort: req.SourcePort,
		TargetType: tgt.Type,
		TargetPort: req.TargetPort,
		Self:       self,
	})
	if !ok {
		if self {
			return fmt.Errorf("%s -> %s: %w", req.Source, req.Target, ErrSelfConnection)
		}
		return fmt.Errorf("%s -> %s: %w", req.Source, req.Target, ErrRuleViolation)
	}

	if !h.desc.EdgeAllowsDuplicates(req.Type) {
		for _, e := range h.snap.Edges {
			if e.Type == req.Type && e.Source == req.Source && e.Target == req.Target {
				return fmt.Errorf("%s -> %s (%s): %w", req.Source, req.Target, req.Type, ErrDuplicateEdge)
			}
		}
	}
	return nil
}

// CreateEdge appends the edge and requests the materialized text edit
// for the underlying AST reference.
func (h *Handler) CreateEdge(req CreateEdgeRequest) (*Result, error) {
	if err := h.CanCreateEdge(req); err != nil {
		return nil, err
	}
	edits, err := h.mat.CreateEdge(req.Type, req.Source, req.Target, req.Args)
	if err != nil {
		return nil, fmt.Errorf("materializer rejected createEdge: %w", err)
	}

	edge := &diagram.Edge{
		ID:         diagram.ElementID(uuid.NewString()),
		Type:       req.Type,
		Kind:       diagram.EdgeReference,
		Source:     req.Source,
		Target:     req.Target,
		SourcePort: req.SourcePort,
		TargetPort: req.TargetPort,
	}
	h.snap.Edges = append(h.snap.Edges, edge)
	h.snap.Revision++

	id := edge.ID
	return &Result{
		Element:  id,
		Revision: h.snap.Revision,
		Edits:    edits,
		Undo: func() {
			h.snap.RemoveEdge(id)
			h.snap.Revision++
		},
	}, nil
}

// ReconnectRequest moves one or both endpoints of an existing edge.
type ReconnectRequest struct {
	Edge      diagram.ElementID
	NewSource diagram.ElementID
	NewTarget diagram.ElementID
}

// CanReconnect validates the request against the rules the resulting
// pair must still satisfy.
func (h *Handler) CanReconnect(req ReconnectRequest) error {
	if req.NewSource == "" && req.NewTarget == "" {
		return ErrNoNewEndpoint
	}
	edge := h.snap.Edge(req.Edge)
	if edge == nil {
		return fmt.Errorf("reconnect %q: %w", req.Edge, ErrMissingElement)
	}
	source, target := edge.Source, edge.Target
	if req.NewSource != "" {
		source = req.NewSource
	}
	if req.NewTarget != "" {
		target = req.NewTarget
	}
	src := h.snap.Node(source)
	if src == nil {
		return fmt.Errorf("reconnect source %q: %w", source, ErrMissingElement)
	}
	tgt := h.snap.Node(target)
	if tgt == nil {
		return fmt.Errorf("reconnect target %q: %w", target, ErrMissingElement)
	}
	if edge.SourcePort != "" && !hasPort(src, edge.SourcePort) {
		return fmt.Errorf("source port %q: %w", edge.SourcePort, ErrUnknownPort)
	}
	if edge.TargetPort != "" && !hasPort(tgt, edge.TargetPort) {
		return fmt.Errorf("target port %q: %w", edge.TargetPort, ErrUnknownPort)
	}
	self := source == target
	ok := h.validator.IsValid(rules.Endpoints{
		EdgeType:   edge.Type,
		SourceType: src.Type,
		SourcePort: edge.SourcePort,
		TargetType: tgt.Type,
		TargetPort: edge.TargetPort,
		Self:       self,
	})
	if !ok {
		if self {
			return fmt.Errorf("reconnect %q: %w", req.Edge, ErrSelfConnection)
		}
		return fmt.Errorf("reconnect %q: %w", req.Edge, ErrRuleViolation)
	}
	return nil
}

// Reconnect swaps the endpoints and clears stored routing points,
// which are meaningless after the move.
func (h *Handler) Reconnect(req ReconnectRequest) (*Result, error) {
	if err := h.CanReconnect(req); err != nil {
		return nil, err
	}
	edge := h.snap.Edge(req.Edge)
	prev := *edge
	prevRoute := append([]diagram.Point(nil), h.meta.Routes[edge.ID]...)

	if req.NewSource != "" {
		edge.Source = req.NewSource
	}
	if req.NewTarget != "" {
		edge.Target = req.NewTarget
	}
	edge.RoutingPoints = nil
	h.meta.ClearRoute(edge.ID)
	h.snap.Revision++

	return &Result{
		Element:  edge.ID,
		Revision: h.snap.Revision,
		Undo: func() {
			*edge = prev
			if len(prevRoute) > 0 {
				h.meta.Routes[edge.ID] = prevRoute
			}
			h.snap.Revision++
		},
	}, nil
}

// Delete removes a node or an edge together with its metadata. Purely
// a local diagram mutation: no rule checks and no text edits.
func (h *Handler) Delete(id diagram.ElementID) (*Result, error) {
	if node := h.snap.Node(id); node != nil {
		before := h.snap.Clone()
		h.snap.RemoveNode(id)
		h.meta.Forget(id)
		h.snap.Revision++
		return &Result{
			Element:  id,
			Revision: h.snap.Revision,
			Undo: func() {
				h.snap.Nodes = before.Nodes
				h.snap.Edges = before.Edges
				h.snap.Revision++
			},
		}, nil
	}
	if edge := h.snap.Edge(id); edge != nil {
		kept := *edge
		h.snap.RemoveEdge(id)
		h.meta.Forget(id)
		h.snap.Revision++
		return &Result{
			Element:  id,
			Revision: h.snap.Revision,
			Undo: func() {
				restored := kept
				h.snap.Edges = append(h.snap.Edges, &restored)
				h.snap.Revision++
			},
		}, nil
	}
	return nil, fmt.Errorf("delete %q: %w", id, ErrMissingElement)
}

// ChangeBounds updates a node's stored position and size. No rule
// checks apply.
func (h *Handler) ChangeBounds(id diagram.ElementID, pos diagram.Point, size diagram.Size) (*Result, error) {
	node := h.snap.Node(id)
	if node == nil {
		return nil, fmt.Errorf("changeBounds %q: %w", id, ErrMissingElement)
	}
	prevPos, prevSize := node.Position, node.Size
	node.Position = pos
	if size.Width > 0 && size.Height > 0 {
		node.Size = size
		h.meta.SetSize(id, size)
	}
	h.meta.SetPosition(id, pos)
	h.snap.Revision++

	return &Result{
		Element:  id,
		Revision: h.snap.Revision,
		Undo: func() {
			node.Position = prevPos
			node.Size = prevSize
			h.meta.SetPosition(id, prevPos)
			h.meta.SetSize(id, prevSize)
			h.snap.Revision++
		},
	}, nil
}

// uniqueName appends the first free numeric suffix to base: Foo, Foo1,
// Foo2, ...
func (h *Handler) uniqueName(base string) string {
	taken := make(map[string]bool, len(h.snap.Nodes))
	for _, n := range h.snap.Nodes {
		taken[n.Name] = true
	}
	if !taken[base] {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func hasPort(n *diagram.Node, id string) bool {
	for _, p := range n.Ports {
		if p.ID == id {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
