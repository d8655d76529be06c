// Package diagfmt renders validation diagnostics and diagram snapshots
// for the CLI: a colored human-readable form and machine-readable JSON.
package diagfmt

// PrettyOpts configures pretty-printing.
type PrettyOpts struct {
	Color bool
	// Max caps the number of printed diagnostics, 0 means no cap.
	Max int
}

// JSONOpts configures JSON output.
type JSONOpts struct {
	Max    int
	Indent bool
}
