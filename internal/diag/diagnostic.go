package diag

import (
	"glint/internal/diagram"
	"glint/internal/source"
)

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Code is a compact stable identifier for one class of finding.
type Code uint16

const (
	UnknownCode Code = 0

	// Snapshot integrity
	ValDuplicateElementID Code = 1001
	ValDanglingEndpoint   Code = 1002
	ValBadPortOffset      Code = 1003

	// Descriptor and rule hygiene
	ValUnconstrainedEdgeType Code = 2001
	ValUnmappedNodeType      Code = 2002

	// Metadata hygiene
	ValStaleMetadata Code = 3001
)

func (c Code) String() string {
	switch c {
	case ValDuplicateElementID:
		return "GL1001"
	case ValDanglingEndpoint:
		return "GL1002"
	case ValBadPortOffset:
		return "GL1003"
	case ValUnconstrainedEdgeType:
		return "GL2001"
	case ValUnmappedNodeType:
		return "GL2002"
	case ValStaleMetadata:
		return "GL3001"
	default:
		return "GL0000"
	}
}

// Diagnostic is one validate-pass finding.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Element  diagram.ElementID
	Span     source.Span
}
