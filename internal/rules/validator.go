// Package rules evaluates declarative connection constraints for edge
// creation and reconnection.
package rules

import "glint/internal/descriptor"

// Endpoints carries everything a rule can look at for one candidate
// connection.
type Endpoints struct {
	EdgeType   string
	SourceType string
	SourcePort string
	TargetType string
	TargetPort string
	// Self is true when source and target are the same element.
	Self bool
}

// Validator answers whether a candidate connection is legal under the
// descriptor's rule list.
type Validator struct {
	rules []descriptor.Rule
}

func NewValidator(d *descriptor.Descriptor) *Validator {
	if d == nil {
		return &Validator{}
	}
	return &Validator{rules: d.Rules}
}

// IsValid reports whether at least one rule matches the candidate in
// full and, for self-connections, that rule allows them. When no rule
// mentions the candidate's edge type at all the connection is allowed;
// restricting a new edge type is the rule author's job, and the
// validate pass flags unconstrained edge types instead of rejecting
// them here.
func (v *Validator) IsValid(ep Endpoints) bool {
	constrained := false
	for _, r := range v.rules {
		if !wildcardEq(r.EdgeType, ep.EdgeType) {
			continue
		}
		constrained = true
		if !wildcardEq(r.SourceType, ep.SourceType) {
			continue
		}
		if !wildcardEq(r.TargetType, ep.TargetType) {
			continue
		}
		if !portMatches(r.SourcePort, ep.SourcePort) {
			continue
		}
		if !portMatches(r.TargetPort, ep.TargetPort) {
			continue
		}
		if ep.Self && !r.AllowSelf {
			continue
		}
		return true
	}
	if !constrained {
		// Permissive default: self-connections still need an explicit
		// allowance from some rule, which no rule gave.
		return !ep.Self
	}
	return false
}

// Constrains reports whether any rule mentions the given edge type,
// either directly or through a wildcard.
func (v *Validator) Constrains(edgeType string) bool {
	for _, r := range v.rules {
		if wildcardEq(r.EdgeType, edgeType) {
			return true
		}
	}
	return false
}

func wildcardEq(rule, actual string) bool {
	return rule == "" || rule == descriptor.Wildcard || rule == actual
}

// An absent rule port matches any port and no port at all.
func portMatches(rule, actual string) bool {
	return rule == "" || rule == descriptor.Wildcard || rule == actual
}
