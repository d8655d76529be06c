package server

import (
	"strings"
	"unicode/utf8"
)

// applyChanges folds incremental didChange events into the current
// document text. A change without a range replaces the whole document.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := clamp(offsetForPosition(text, change.Range.Start), len(text))
		end := clamp(offsetForPosition(text, change.Range.End), len(text))
		if end < start {
			end = start
		}
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

func clamp(off, max int) int {
	if off > max {
		return max
	}
	return off
}

// offsetForPosition maps an LSP line/character position to a byte
// offset. Characters count UTF-16 code units, per the protocol.
func offsetForPosition(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	start := lineStart(text, pos.Line)
	if start < 0 {
		return len(text)
	}
	return start + columnOffset(text[start:], pos.Character)
}

// lineStart returns the byte offset where the given zero-based line
// begins, or -1 when the text has fewer lines.
func lineStart(text string, line int) int {
	off := 0
	for ; line > 0; line-- {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return -1
		}
		off += nl + 1
	}
	return off
}

// columnOffset walks one line counting UTF-16 units until the target
// column is reached, returning the byte offset within the line.
func columnOffset(line string, col int) int {
	i := 0
	for units := 0; i < len(line) && line[i] != '\n' && units < col; {
		r, size := utf8.DecodeRuneInString(line[i:])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > col {
			break
		}
		units += need
		i += size
	}
	return i
}
