package session

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
	"go.lsp.dev/uri"

	"glint/internal/ast"
	"glint/internal/diagram"
	"glint/internal/identity"
	"glint/internal/ops"
	"glint/internal/textedit"
)

// UpdateProperty mutates a single element property. Diagram-local
// properties (collapsed) change the snapshot directly; source-backed
// properties (name) materialize a text edit and flow back through the
// normal reconversion loop.
func (m *Manager) UpdateProperty(docURI uri.URI, id diagram.ElementID, property string, value any) (res *ops.Result, err error) {
	err = m.withDoc(docURI, func(d *document) error {
		node := d.snapshot.Node(id)
		if node == nil {
			return fmt.Errorf("updateProperty %q: %w", id, ops.ErrMissingElement)
		}
		switch property {
		case "collapsed":
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("updateProperty collapsed: want bool, got %T", value)
			}
			prev := node.Collapsed
			node.Collapsed = b
			d.meta.Collapsed[id] = b
			d.snapshot.Revision++
			res = &ops.Result{
				Element:  id,
				Revision: d.snapshot.Revision,
				Undo: func() {
					node.Collapsed = prev
					d.meta.Collapsed[id] = prev
					d.snapshot.Revision++
				},
			}
			m.finishOpLocked(d, res)
			return nil
		case "name":
			newName, ok := value.(string)
			if !ok {
				return fmt.Errorf("updateProperty name: want string, got %T", value)
			}
			newName = strings.TrimSpace(newName)
			if newName == "" || strings.ContainsAny(newName, " \t\n{}") {
				return fmt.Errorf("updateProperty name: %q is not a valid name", newName)
			}
			edit, err := renameEdit(d, id, node.Name, newName)
			if err != nil {
				return err
			}
			// Rebind the element's identity to the renamed
			// fingerprint before the edited text reparses.
			m.expectRenamed(d, id, newName)
			prev := node.Name
			node.Name = newName
			d.snapshot.Revision++
			res = &ops.Result{
				Element:  id,
				Revision: d.snapshot.Revision,
				Edits:    []textedit.Edit{edit},
				Undo: func() {
					node.Name = prev
					d.snapshot.Revision++
				},
			}
			m.finishOpLocked(d, res)
			return nil
		default:
			return fmt.Errorf("updateProperty: property %q is not editable", property)
		}
	})
	if err == nil {
		m.queueEdits(docURI, res)
	}
	return res, err
}

// renameEdit produces the edit replacing the element's name inside its
// recorded source range.
func renameEdit(d *document, id diagram.ElementID, oldName, newName string) (textedit.Edit, error) {
	span, ok := d.meta.SourceRanges[id]
	if !ok {
		return textedit.Edit{}, fmt.Errorf("rename %q: element has no source range", id)
	}
	start, err := safecast.Conv[int](span.Start)
	if err != nil {
		return textedit.Edit{}, err
	}
	end, err := safecast.Conv[int](span.End)
	if err != nil {
		return textedit.Edit{}, err
	}
	if end > len(d.text) {
		end = len(d.text)
	}
	idx := strings.Index(d.text[start:end], oldName)
	if idx < 0 {
		return textedit.Edit{}, fmt.Errorf("rename %q: name %q not found in source", id, oldName)
	}
	return textedit.Edit{
		Range:   textedit.Range{Start: start + idx, End: start + idx + len(oldName)},
		NewText: newName,
	}, nil
}

// expectRenamed pre-binds the fingerprint the element will carry after
// the rename reparses, so positions pinned under this ID survive.
func (m *Manager) expectRenamed(d *document, id diagram.ElementID, newName string) {
	var target *ast.Node
	ast.Walk(d.root, func(n *ast.Node) bool {
		if target != nil {
			return false
		}
		if got, ok := d.registry.UUID(n); ok && got == id {
			target = n
			return false
		}
		return true
	})
	if target == nil {
		return
	}
	var containers []string
	for p := target.Parent; p != nil; p = p.Parent {
		if p.Name != "" {
			containers = append([]string{p.Name}, containers...)
		}
	}
	d.registry.Expect(identity.SyntheticFingerprint(containers, target.Type, newName), id)
}
