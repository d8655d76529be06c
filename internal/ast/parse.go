package ast

import (
	"fmt"
	"strconv"
	"strings"

	"glint/internal/source"
)

// ParseFunc is the contract the sync layers expect from a parser: text
// in, fresh tree out. Production grammars plug in through this type;
// ParseModel below is the bundled demo grammar used by the CLI and the
// test suites.
type ParseFunc func(text string) (*Node, error)

// ParseModel parses the demo modeling grammar:
//
//	entity Customer {
//	    at 120,80
//	    name: string
//	    orders -> Order
//	}
//
// Top-level blocks declare typed named nodes ("entity Foo {"), "k: v"
// lines declare scalar-typed properties, "k -> Target" lines declare
// cross-references, and "at x,y" embeds an explicit position. The
// grammar exists so the pipeline can run end to end without the real
// parser collaborator; it is not a production language.
func ParseModel(text string) (*Node, error) {
	root := &Node{
		Type:   "model",
		Span:   source.Span{Start: 0, End: uint32(len(text))},
		Fields: map[string]any{"elements": []*Node{}},
	}
	named := make(map[string]*Node)
	var pending []*Ref

	var current *Node
	offset := 0
	for lineNo, rawLine := range strings.Split(text, "\n") {
		lineStart := offset
		offset += len(rawLine) + 1
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		span := lineSpan(lineStart, rawLine)

		switch {
		case strings.HasSuffix(line, "{"):
			if current != nil {
				return nil, fmt.Errorf("line %d: nested blocks are not supported", lineNo+1)
			}
			head := strings.Fields(strings.TrimSpace(strings.TrimSuffix(line, "{")))
			if len(head) != 2 {
				return nil, fmt.Errorf("line %d: expected \"<type> <name> {\"", lineNo+1)
			}
			current = &Node{
				Type:   head[0],
				Name:   head[1],
				Span:   span,
				Fields: map[string]any{"members": []*Node{}},
			}
			if prev, ok := named[current.Name]; ok && prev != nil {
				return nil, fmt.Errorf("line %d: duplicate declaration %q", lineNo+1, current.Name)
			}
			named[current.Name] = current

		case line == "}":
			if current == nil {
				return nil, fmt.Errorf("line %d: unmatched }", lineNo+1)
			}
			current.Span = current.Span.Cover(span)
			root.Fields["elements"] = append(root.Fields["elements"].([]*Node), current)
			current = nil

		case current != nil && strings.HasPrefix(line, "at "):
			x, y, err := parsePosition(strings.TrimPrefix(line, "at "))
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", lineNo+1, err)
			}
			current.Fields["x"] = x
			current.Fields["y"] = y

		case current != nil && strings.Contains(line, "->"):
			parts := strings.SplitN(line, "->", 2)
			name := strings.TrimSpace(parts[0])
			target := strings.TrimSpace(parts[1])
			if name == "" || target == "" {
				return nil, fmt.Errorf("line %d: expected \"<name> -> <target>\"", lineNo+1)
			}
			ref := &Ref{RawText: target}
			pending = append(pending, ref)
			member := &Node{
				Type:   "relation",
				Name:   name,
				Span:   span,
				Fields: map[string]any{"target": ref},
			}
			current.Fields["members"] = append(current.Fields["members"].([]*Node), member)

		case current != nil && strings.Contains(line, ":"):
			parts := strings.SplitN(line, ":", 2)
			name := strings.TrimSpace(parts[0])
			typ := strings.TrimSpace(parts[1])
			if name == "" {
				return nil, fmt.Errorf("line %d: property without a name", lineNo+1)
			}
			member := &Node{
				Type:   "property",
				Name:   name,
				Span:   span,
				Fields: map[string]any{"type": typ},
			}
			current.Fields["members"] = append(current.Fields["members"].([]*Node), member)

		default:
			return nil, fmt.Errorf("line %d: cannot parse %q", lineNo+1, line)
		}
	}
	if current != nil {
		return nil, fmt.Errorf("unterminated block %q", current.Name)
	}

	// References resolve by declared name; unresolved refs keep their
	// raw text and a nil target.
	for _, ref := range pending {
		if target, ok := named[ref.RawText]; ok {
			ref.Target = target
		}
	}
	AttachParents(root)
	return root, nil
}

func lineSpan(start int, rawLine string) source.Span {
	trimmedStart := start + (len(rawLine) - len(strings.TrimLeft(rawLine, " \t")))
	end := start + len(strings.TrimRight(rawLine, " \t\r"))
	if end < trimmedStart {
		end = trimmedStart
	}
	return source.Span{Start: uint32(trimmedStart), End: uint32(end)}
}

func parsePosition(s string) (float64, float64, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"at <x>,<y>\"")
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad x coordinate: %v", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad y coordinate: %v", err)
	}
	return x, y, nil
}
