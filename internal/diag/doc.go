// Package diag defines the diagnostic model produced by the diagram
// validate pass.
//
// Diagnostic is the central record: a Severity, a stable Code, a short
// message, the element ID the finding is about, and an optional source
// span when one is known. The Bag aggregates diagnostics with a cap so
// a degenerate model cannot flood the client.
//
// Package diag performs no formatting or IO. Rendering lives in
// internal/diagfmt; producing diagnostics lives in internal/validate.
package diag
