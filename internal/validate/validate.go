// Package validate checks a converted snapshot against its descriptor
// and layout metadata. It catches the silent failure modes of the
// pipeline: edges whose endpoints vanished, element IDs minted twice,
// edge types no connection rule constrains, malformed port data, and
// metadata keyed by elements that no longer exist.
package validate

import (
	"fmt"

	"glint/internal/descriptor"
	"glint/internal/diag"
	"glint/internal/diagram"
	"glint/internal/rules"
)

// Snapshot lints snap against desc and meta, appending findings to bag.
// meta may be nil when no layout metadata is available.
func Snapshot(bag *diag.Bag, snap *diagram.Snapshot, desc *descriptor.Descriptor, meta *diagram.Metadata) {
	if snap == nil {
		return
	}
	checkDuplicateIDs(bag, snap)
	checkEdges(bag, snap, desc)
	checkNodeTypes(bag, snap, desc)
	checkPorts(bag, snap)
	if meta != nil {
		checkMetadata(bag, snap, meta)
	}
}

func checkDuplicateIDs(bag *diag.Bag, snap *diagram.Snapshot) {
	seen := make(map[diagram.ElementID]bool, len(snap.Nodes)+len(snap.Edges))
	report := func(id diagram.ElementID) {
		if !seen[id] {
			seen[id] = true
			return
		}
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.ValDuplicateElementID,
			Message:  fmt.Sprintf("element id %q assigned more than once", id),
			Element:  id,
		})
	}
	for _, n := range snap.Nodes {
		report(n.ID)
	}
	for _, e := range snap.Edges {
		report(e.ID)
	}
}

func checkEdges(bag *diag.Bag, snap *diagram.Snapshot, desc *descriptor.Descriptor) {
	validator := rules.NewValidator(desc)
	warned := make(map[string]bool)
	for _, e := range snap.Edges {
		if snap.Node(e.Source) == nil {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.ValDanglingEndpoint,
				Message:  fmt.Sprintf("edge %q references missing source %q", e.ID, e.Source),
				Element:  e.ID,
			})
		}
		if snap.Node(e.Target) == nil {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.ValDanglingEndpoint,
				Message:  fmt.Sprintf("edge %q references missing target %q", e.ID, e.Target),
				Element:  e.ID,
			})
		}
		// Containment edges are structural, not rule-governed.
		if e.Type == "" || e.Kind == diagram.EdgeContainment {
			continue
		}
		if !validator.Constrains(e.Type) && !warned[e.Type] {
			warned[e.Type] = true
			bag.Add(diag.Diagnostic{
				Severity: diag.SevWarning,
				Code:     diag.ValUnconstrainedEdgeType,
				Message:  fmt.Sprintf("edge type %q has no connection rule; every pairing is allowed", e.Type),
				Element:  e.ID,
			})
		}
	}
}

// checkNodeTypes warns about diagram node types the descriptor never
// produces. They usually mean the snapshot and the descriptor come from
// different language versions.
func checkNodeTypes(bag *diag.Bag, snap *diagram.Snapshot, desc *descriptor.Descriptor) {
	if desc == nil {
		return
	}
	known := map[string]bool{"node:entity": true, "node:field": true}
	for _, m := range desc.Nodes {
		known[m.DiagramType] = true
	}
	warned := make(map[string]bool)
	for _, n := range snap.Nodes {
		if known[n.Type] || warned[n.Type] {
			continue
		}
		warned[n.Type] = true
		bag.Add(diag.Diagnostic{
			Severity: diag.SevWarning,
			Code:     diag.ValUnmappedNodeType,
			Message:  fmt.Sprintf("node type %q is not produced by the %s descriptor", n.Type, desc.Language),
			Element:  n.ID,
		})
	}
}

func checkPorts(bag *diag.Bag, snap *diagram.Snapshot) {
	for _, n := range snap.Nodes {
		for j := range n.Ports {
			p := &n.Ports[j]
			if p.Side > diagram.SideRight {
				bag.Add(diag.Diagnostic{
					Severity: diag.SevError,
					Code:     diag.ValBadPortOffset,
					Message:  fmt.Sprintf("node %q port %q: unknown side %d", n.ID, p.ID, p.Side),
					Element:  n.ID,
				})
				continue
			}
			if p.Offset < 0 || p.Offset > 1 {
				bag.Add(diag.Diagnostic{
					Severity: diag.SevError,
					Code:     diag.ValBadPortOffset,
					Message:  fmt.Sprintf("node %q port %q: offset %.2f outside [0,1]", n.ID, p.ID, p.Offset),
					Element:  n.ID,
				})
			}
		}
	}
}

func checkMetadata(bag *diag.Bag, snap *diagram.Snapshot, meta *diagram.Metadata) {
	for id := range meta.IDs() {
		if snap.HasElement(id) {
			continue
		}
		bag.Add(diag.Diagnostic{
			Severity: diag.SevInfo,
			Code:     diag.ValStaleMetadata,
			Message:  fmt.Sprintf("layout metadata for %q has no matching element", id),
			Element:  id,
		})
	}
}
