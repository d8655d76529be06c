package server

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.lsp.dev/uri"

	"glint/internal/diagram"
)

// handleToolPalette lists the node and edge types the language
// descriptor supports, independent of any document state.
func (s *Server) handleToolPalette(msg *rpcMessage) error {
	result := toolPaletteResult{Nodes: []paletteNode{}, Edges: []paletteEdge{}}
	if s.desc != nil {
		for astType, mapping := range s.desc.Nodes {
			label := mapping.NameBase
			if label == "" {
				label = astType
			}
			result.Nodes = append(result.Nodes, paletteNode{
				NodeType:    astType,
				DiagramType: mapping.DiagramType,
				Label:       label,
				Shape:       mapping.Shape,
			})
		}
		for field, mapping := range s.desc.Edges {
			result.Edges = append(result.Edges, paletteEdge{
				Field:       field,
				DiagramType: mapping.DiagramType,
			})
		}
	}
	sort.Slice(result.Nodes, func(i, j int) bool { return result.Nodes[i].NodeType < result.Nodes[j].NodeType })
	sort.Slice(result.Edges, func(i, j int) bool { return result.Edges[i].Field < result.Edges[j].Field })
	return s.sendResponse(msg.ID, result)
}

// handleContextMenu lists the actions applicable to one element.
func (s *Server) handleContextMenu(msg *rpcMessage) error {
	var params elementParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	snap, ok := s.sessions.Snapshot(uri.URI(params.URI))
	if !ok {
		return s.sendError(msg.ID, -32602, fmt.Sprintf("no snapshot for %s", params.URI))
	}
	id := diagram.ElementID(params.Element)
	result := contextMenuResult{Element: id}
	switch {
	case snap.Node(id) != nil:
		node := snap.Node(id)
		result.Actions = append(result.Actions,
			menuAction{ID: "rename", Label: "Rename"},
			menuAction{ID: "createEdge", Label: "Connect to..."},
			menuAction{ID: "deleteElement", Label: "Delete"},
		)
		if node.Collapsed {
			result.Actions = append(result.Actions, menuAction{ID: "expand", Label: "Expand"})
		} else {
			result.Actions = append(result.Actions, menuAction{ID: "collapse", Label: "Collapse"})
		}
	case snap.Edge(id) != nil:
		edge := snap.Edge(id)
		if edge.Kind == diagram.EdgeReference {
			result.Actions = append(result.Actions,
				menuAction{ID: "reconnect", Label: "Reconnect"},
				menuAction{ID: "deleteElement", Label: "Delete"},
			)
		}
	default:
		return s.sendError(msg.ID, -32602, fmt.Sprintf("no element %q", params.Element))
	}
	return s.sendResponse(msg.ID, result)
}

// handleProperties reports the inspectable properties of one element.
// Only "name" and "collapsed" accept updates; the rest are derived.
func (s *Server) handleProperties(msg *rpcMessage) error {
	var params elementParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	snap, ok := s.sessions.Snapshot(uri.URI(params.URI))
	if !ok {
		return s.sendError(msg.ID, -32602, fmt.Sprintf("no snapshot for %s", params.URI))
	}
	id := diagram.ElementID(params.Element)
	result := propertiesResult{Element: id}
	if node := snap.Node(id); node != nil {
		result.Properties = []propertyEntry{
			{Name: "name", Value: node.Name, Editable: true},
			{Name: "type", Value: node.Type},
			{Name: "position", Value: node.Position},
			{Name: "size", Value: node.Size},
			{Name: "collapsed", Value: node.Collapsed, Editable: true},
		}
	} else if edge := snap.Edge(id); edge != nil {
		result.Properties = []propertyEntry{
			{Name: "type", Value: edge.Type},
			{Name: "source", Value: string(edge.Source)},
			{Name: "target", Value: string(edge.Target)},
		}
	} else {
		return s.sendError(msg.ID, -32602, fmt.Sprintf("no element %q", params.Element))
	}
	return s.sendResponse(msg.ID, result)
}
