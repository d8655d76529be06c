package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"glint/internal/diag"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan)
	dimColor  = color.New(color.Faint)
)

// Pretty prints bag's diagnostics for uri, one per line:
//
//	<SEV> <CODE> <element>  <message>
//
// followed by a severity tally. Columns are aligned on display width so
// wide element IDs don't shear the message column.
func Pretty(w io.Writer, uri string, bag *diag.Bag, opts PrettyOpts) {
	items := bag.Items()
	if opts.Max > 0 && opts.Max < len(items) {
		items = items[:opts.Max]
	}
	if len(items) == 0 {
		fmt.Fprintf(w, "%s: clean\n", uri)
		return
	}

	fmt.Fprintf(w, "%s:\n", uri)
	elemWidth := 0
	for i := range items {
		if width := runewidth.StringWidth(string(items[i].Element)); width > elemWidth {
			elemWidth = width
		}
	}

	var errs, warns, infos int
	for i := range items {
		d := &items[i]
		sev := d.Severity.String()
		switch d.Severity {
		case diag.SevError:
			errs++
			if opts.Color {
				sev = errColor.Sprint(sev)
			}
		case diag.SevWarning:
			warns++
			if opts.Color {
				sev = warnColor.Sprint(sev)
			}
		default:
			infos++
			if opts.Color {
				sev = infoColor.Sprint(sev)
			}
		}
		elem := runewidth.FillRight(string(d.Element), elemWidth)
		if opts.Color {
			elem = dimColor.Sprint(elem)
		}
		fmt.Fprintf(w, "  %s %s %s  %s\n", sev, d.Code, elem, d.Message)
	}
	fmt.Fprintf(w, "%d error(s), %d warning(s), %d info\n", errs, warns, infos)
}
