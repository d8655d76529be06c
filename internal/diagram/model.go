// Package diagram holds the graphical snapshot model derived from an
// AST: nodes, edges, ports, and the long-lived per-document metadata
// that survives reparses.
package diagram

// ElementID is the stable opaque identifier tying an AST node to its
// diagram representation across reparses.
type ElementID string

// Point is a 2D coordinate in diagram space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a node extent in diagram space.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Side is the node boundary a port sits on.
type Side uint8

const (
	SideTop Side = iota
	SideBottom
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideTop:
		return "top"
	case SideBottom:
		return "bottom"
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "unknown"
	}
}

// ParseSide maps a descriptor side name to a Side.
func ParseSide(name string) (Side, bool) {
	switch name {
	case "top":
		return SideTop, true
	case "bottom":
		return SideBottom, true
	case "left":
		return SideLeft, true
	case "right":
		return SideRight, true
	default:
		return SideTop, false
	}
}

// Direction of data flow implied by a port's side.
type Direction uint8

const (
	DirInput Direction = iota
	DirOutput
)

func (d Direction) String() string {
	if d == DirOutput {
		return "output"
	}
	return "input"
}

// Direction returns the flow direction implied by the side alone:
// top and left are inputs, bottom and right are outputs.
func (s Side) Direction() Direction {
	switch s {
	case SideBottom, SideRight:
		return DirOutput
	default:
		return DirInput
	}
}

// Port is an attachment point on a node boundary. Offset is the
// fraction of the side's length, in [0, 1].
type Port struct {
	ID       string    `json:"id"`
	Side     Side      `json:"side"`
	Offset   float64   `json:"offset"`
	Style    string    `json:"style,omitempty"`
	Position Point     `json:"position"`
	Dir      Direction `json:"direction"`
}

// PortPosition computes a port's anchor relative to the owning node's
// origin for a node of the given size, a boundary side, an offset
// fraction f, and half the port diameter r.
func PortPosition(size Size, side Side, f, r float64) Point {
	switch side {
	case SideTop:
		return Point{X: size.Width*f - r, Y: -r}
	case SideBottom:
		return Point{X: size.Width*f - r, Y: size.Height - r}
	case SideLeft:
		return Point{X: -r, Y: size.Height*f - r}
	case SideRight:
		return Point{X: size.Width - r, Y: size.Height*f - r}
	default:
		return Point{}
	}
}

// Node is one diagram node in a snapshot. Snapshots are regenerated on
// every conversion; position and size are copied forward from metadata.
type Node struct {
	ID         ElementID `json:"id"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Position   Point     `json:"position"`
	Size       Size      `json:"size"`
	Shape      string    `json:"shape,omitempty"`
	CSSClasses []string  `json:"cssClasses,omitempty"`
	Collapsed  bool      `json:"collapsed,omitempty"`
	Ports      []Port    `json:"ports,omitempty"`
	Labels     []string  `json:"labels,omitempty"`
}

// EdgeKind separates AST parent/child containment edges from
// cross-reference edges.
type EdgeKind uint8

const (
	EdgeContainment EdgeKind = iota
	EdgeReference
)

func (k EdgeKind) String() string {
	if k == EdgeContainment {
		return "containment"
	}
	return "reference"
}

// Edge connects two nodes, optionally through named ports.
type Edge struct {
	ID            ElementID `json:"id"`
	Type          string    `json:"type"`
	Kind          EdgeKind  `json:"kind"`
	Source        ElementID `json:"source"`
	Target        ElementID `json:"target"`
	SourcePort    string    `json:"sourcePort,omitempty"`
	TargetPort    string    `json:"targetPort,omitempty"`
	RoutingPoints []Point   `json:"routingPoints,omitempty"`
}

// Snapshot is one complete derived diagram. Revision increases
// monotonically per document across conversions and mutations.
type Snapshot struct {
	URI      string  `json:"uri,omitempty"`
	Revision int64   `json:"revision"`
	Nodes    []*Node `json:"nodes"`
	Edges    []*Edge `json:"edges"`
}

// Node finds a node by ID, nil if absent.
func (s *Snapshot) Node(id ElementID) *Node {
	if s == nil {
		return nil
	}
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Edge finds an edge by ID, nil if absent.
func (s *Snapshot) Edge(id ElementID) *Edge {
	if s == nil {
		return nil
	}
	for _, e := range s.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// HasElement reports whether id names a node or an edge in the snapshot.
func (s *Snapshot) HasElement(id ElementID) bool {
	return s.Node(id) != nil || s.Edge(id) != nil
}

// RemoveNode deletes the node and every edge touching it. It reports
// whether anything was removed.
func (s *Snapshot) RemoveNode(id ElementID) bool {
	idx := -1
	for i, n := range s.Nodes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.Nodes = append(s.Nodes[:idx], s.Nodes[idx+1:]...)
	kept := s.Edges[:0]
	for _, e := range s.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	s.Edges = kept
	return true
}

// RemoveEdge deletes an edge by ID and reports whether it existed.
func (s *Snapshot) RemoveEdge(id ElementID) bool {
	for i, e := range s.Edges {
		if e.ID == id {
			s.Edges = append(s.Edges[:i], s.Edges[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy; operation handlers snapshot state for undo.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{URI: s.URI, Revision: s.Revision}
	out.Nodes = make([]*Node, len(s.Nodes))
	for i, n := range s.Nodes {
		copied := *n
		copied.Ports = append([]Port(nil), n.Ports...)
		copied.CSSClasses = append([]string(nil), n.CSSClasses...)
		copied.Labels = append([]string(nil), n.Labels...)
		out.Nodes[i] = &copied
	}
	out.Edges = make([]*Edge, len(s.Edges))
	for i, e := range s.Edges {
		copied := *e
		copied.RoutingPoints = append([]Point(nil), e.RoutingPoints...)
		out.Edges[i] = &copied
	}
	return out
}
