package ast

// FieldKind classifies a node field for the converter.
type FieldKind uint8

const (
	// FieldUnknown means the schema has no entry; callers fall back to
	// structural classification.
	FieldUnknown FieldKind = iota
	FieldScalar
	FieldReference
	FieldChild
)

// Schema declares, per node type, which fields carry references, child
// nodes, or plain scalars. A grammar ships its schema alongside the
// descriptor; node types or fields missing from the schema are
// classified structurally instead.
type Schema map[string]NodeSchema

// NodeSchema lists the declared fields of one node type.
type NodeSchema struct {
	Fields map[string]FieldKind
}

// FieldKind returns the declared kind for a node type's field, or
// FieldUnknown when the schema has nothing to say.
func (s Schema) FieldKind(nodeType, field string) FieldKind {
	if s == nil {
		return FieldUnknown
	}
	ns, ok := s[nodeType]
	if !ok || ns.Fields == nil {
		return FieldUnknown
	}
	return ns.Fields[field]
}

// ClassifyField resolves the kind of a field value: the schema entry
// wins when present, otherwise the value's shape decides. This keeps
// the declared path statically checkable while still handling grammars
// that never wrote a schema.
func ClassifyField(schema Schema, nodeType, field string, value any) FieldKind {
	if kind := schema.FieldKind(nodeType, field); kind != FieldUnknown {
		return kind
	}
	return classifyStructurally(value)
}

func classifyStructurally(value any) FieldKind {
	switch v := value.(type) {
	case *Ref:
		return FieldReference
	case []*Ref:
		return FieldReference
	case *Node:
		return FieldChild
	case []*Node:
		return FieldChild
	case []any:
		for _, item := range v {
			if kind := classifyStructurally(item); kind != FieldScalar {
				return kind
			}
		}
		return FieldScalar
	default:
		return FieldScalar
	}
}
