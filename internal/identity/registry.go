// Package identity assigns stable element IDs to AST nodes across
// reparses. The parser replaces the whole tree on every edit, so a
// "same-looking" node is a brand-new object each time; the registry
// bridges that gap with fingerprints.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"glint/internal/ast"
	"glint/internal/diagram"
)

// LayoutEntry is one ID↔fingerprint pair exported for client-side
// persistence across reloads.
type LayoutEntry struct {
	ID          diagram.ElementID `json:"id" msgpack:"id"`
	Fingerprint string            `json:"fingerprint" msgpack:"fingerprint"`
}

// Registry maps AST nodes of the current tree to stable element IDs.
// Reconcile must run after every reparse; until the first call, every
// lookup misses and callers mint unstable IDs as a degraded mode.
type Registry struct {
	byFingerprint map[string]diagram.ElementID
	byNode        map[*ast.Node]diagram.ElementID
}

func NewRegistry() *Registry {
	return &Registry{
		byFingerprint: make(map[string]diagram.ElementID),
		byNode:        make(map[*ast.Node]diagram.ElementID),
	}
}

// Reconcile rebuilds the node→ID map from a fresh tree: fingerprints
// that existed before keep their ID, new fingerprints mint a fresh
// globally-unique ID, and entries whose fingerprint vanished are
// pruned. The registry never assigns one ID to two live nodes; a
// fingerprint collision within one tree gets an occurrence suffix.
func (r *Registry) Reconcile(root *ast.Node) {
	nextFPs := make(map[string]diagram.ElementID)
	nextNodes := make(map[*ast.Node]diagram.ElementID)
	seen := make(map[string]int)

	ast.Walk(root, func(n *ast.Node) bool {
		fp := Fingerprint(n)
		if occ := seen[fp]; occ > 0 {
			fp = fmt.Sprintf("%s~%d", fp, occ)
		}
		seen[Fingerprint(n)]++

		id, ok := r.byFingerprint[fp]
		if !ok {
			id = diagram.ElementID(uuid.NewString())
		}
		nextFPs[fp] = id
		nextNodes[n] = id
		return true
	})

	r.byFingerprint = nextFPs
	r.byNode = nextNodes
}

// UUID returns the element ID for a node of the last reconciled tree.
func (r *Registry) UUID(n *ast.Node) (diagram.ElementID, bool) {
	id, ok := r.byNode[n]
	return id, ok
}

// Export serializes the current ID↔fingerprint pairs so a client can
// persist identity across reloads. Order is unspecified.
func (r *Registry) Export() []LayoutEntry {
	out := make([]LayoutEntry, 0, len(r.byFingerprint))
	for fp, id := range r.byFingerprint {
		out = append(out, LayoutEntry{ID: id, Fingerprint: fp})
	}
	return out
}

// Import seeds the fingerprint map from persisted layout data, before
// the first Reconcile of a reopened document. Entries for fingerprints
// already present are ignored.
func (r *Registry) Import(entries []LayoutEntry) {
	for _, e := range entries {
		if e.Fingerprint == "" || e.ID == "" {
			continue
		}
		if _, ok := r.byFingerprint[e.Fingerprint]; !ok {
			r.byFingerprint[e.Fingerprint] = e.ID
		}
	}
}

// Expect pre-binds a fingerprint to an ID before the next Reconcile.
// Elements created through diagram operations keep the ID the
// operation handed out once the materialized text reparses.
func (r *Registry) Expect(fingerprint string, id diagram.ElementID) {
	if fingerprint == "" || id == "" {
		return
	}
	r.byFingerprint[fingerprint] = id
}

// SyntheticFingerprint derives the fingerprint a named node will have
// once it is parsed, from the named container chain down to it.
func SyntheticFingerprint(containers []string, nodeType, name string) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(containers, "/"))
	sb.WriteByte('#')
	sb.WriteString(nodeType)
	sb.WriteByte(':')
	sb.WriteString(name)
	return sb.String()
}

// Fingerprint derives the identity key of a node: its type, the chain
// of named ancestors, and its own name, or the source offset when the
// node is unnamed. The offset fallback can misassign identity when
// siblings are renamed and reordered in the same edit; a richer key
// would change reconciliation semantics, so the simple one stands.
func Fingerprint(n *ast.Node) string {
	var chain []string
	for anc := n.Parent; anc != nil; anc = anc.Parent {
		if anc.Name != "" {
			chain = append(chain, anc.Name)
		}
	}
	// ancestors were collected innermost-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(chain, "/"))
	sb.WriteByte('#')
	sb.WriteString(n.Type)
	sb.WriteByte(':')
	if n.Name != "" {
		sb.WriteString(n.Name)
	} else {
		fmt.Fprintf(&sb, "@%d", n.Span.Start)
	}
	return sb.String()
}
