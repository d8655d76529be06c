package session

import (
	"fmt"
	"sort"
	"strings"

	"fortio.org/safecast"

	"glint/internal/diagram"
	"glint/internal/textedit"
)

// materializer turns accepted diagram operations into edits against
// the demo grammar. It is rebuilt per operation from the document's
// current text so edit offsets are always computed against the version
// the batch will be validated with.
type materializer struct {
	text string
	snap *diagram.Snapshot
	meta *diagram.Metadata
}

func newMaterializer(text string, snap *diagram.Snapshot, meta *diagram.Metadata) *materializer {
	return &materializer{text: text, snap: snap, meta: meta}
}

// CreateNode appends a fresh block at the end of the document.
func (m *materializer) CreateNode(astType, name string, args map[string]string) ([]textedit.Edit, error) {
	var sb strings.Builder
	if len(m.text) > 0 && !strings.HasSuffix(m.text, "\n") {
		sb.WriteString("\n")
	}
	if len(strings.TrimSpace(m.text)) > 0 {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "%s %s {\n", astType, name)
	for _, key := range sortedKeys(args) {
		fmt.Fprintf(&sb, "\t%s: %s\n", key, args[key])
	}
	sb.WriteString("}\n")
	at := len(m.text)
	return []textedit.Edit{{Range: textedit.Range{Start: at, End: at}, NewText: sb.String()}}, nil
}

// CreateEdge inserts a reference line before the closing brace of the
// source element's block.
func (m *materializer) CreateEdge(edgeType string, source, target diagram.ElementID, args map[string]string) ([]textedit.Edit, error) {
	srcNode := m.snap.Node(source)
	tgtNode := m.snap.Node(target)
	if srcNode == nil || tgtNode == nil {
		return nil, fmt.Errorf("materialize %s: endpoint not in snapshot", edgeType)
	}
	span, ok := m.meta.SourceRanges[source]
	if !ok {
		return nil, fmt.Errorf("materialize %s: no source range for %q", edgeType, source)
	}
	start, err := safecast.Conv[int](span.Start)
	if err != nil {
		return nil, err
	}
	end, err := safecast.Conv[int](span.End)
	if err != nil {
		return nil, err
	}
	if end > len(m.text) {
		return nil, fmt.Errorf("materialize %s: source range beyond document end", edgeType)
	}
	brace := strings.LastIndex(m.text[start:end], "}")
	if brace < 0 {
		return nil, fmt.Errorf("materialize %s: block of %q has no closing brace", edgeType, srcNode.Name)
	}
	at := start + brace

	field := args["name"]
	if field == "" {
		field = strings.ToLower(tgtNode.Name)
	}
	line := fmt.Sprintf("\t%s -> %s\n", field, tgtNode.Name)
	return []textedit.Edit{{Range: textedit.Range{Start: at, End: at}, NewText: line}}, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
