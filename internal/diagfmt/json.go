package diagfmt

import (
	"encoding/json"
	"io"

	"glint/internal/diag"
)

// DiagnosticJSON is the wire form of one diagnostic.
type DiagnosticJSON struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Element  string `json:"element,omitempty"`
	Start    uint32 `json:"start_byte,omitempty"`
	End      uint32 `json:"end_byte,omitempty"`
}

// DiagnosticsOutput is the root of the JSON report.
type DiagnosticsOutput struct {
	URI         string           `json:"uri"`
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Errors      int              `json:"errors"`
}

// BuildDiagnosticsOutput converts a bag into the JSON report structure
// without serializing it.
func BuildDiagnosticsOutput(uri string, bag *diag.Bag, opts JSONOpts) DiagnosticsOutput {
	items := bag.Items()
	if opts.Max > 0 && opts.Max < len(items) {
		items = items[:opts.Max]
	}
	out := DiagnosticsOutput{
		URI:         uri,
		Diagnostics: make([]DiagnosticJSON, 0, len(items)),
	}
	for i := range items {
		d := &items[i]
		if d.Severity >= diag.SevError {
			out.Errors++
		}
		out.Diagnostics = append(out.Diagnostics, DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code.String(),
			Message:  d.Message,
			Element:  string(d.Element),
			Start:    d.Span.Start,
			End:      d.Span.End,
		})
	}
	out.Count = len(out.Diagnostics)
	return out
}

// JSON writes the bag as a JSON report.
func JSON(w io.Writer, uri string, bag *diag.Bag, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(BuildDiagnosticsOutput(uri, bag, opts))
}
