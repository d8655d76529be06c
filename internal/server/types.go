package server

import (
	"encoding/json"
	"time"

	"glint/internal/diagfmt"
	"glint/internal/diagram"
	"glint/internal/session"
	"glint/internal/textedit"
)

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initializeParams struct {
	RootURI          string            `json:"rootUri,omitempty"`
	RootPath         string            `json:"rootPath,omitempty"`
	WorkspaceFolders []workspaceFolder `json:"workspaceFolders,omitempty"`
}

type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
}

type serverCapabilities struct {
	TextDocumentSync textDocumentSyncOptions `json:"textDocumentSync"`
	Diagram          diagramCapabilities     `json:"diagram"`
}

type textDocumentSyncOptions struct {
	OpenClose bool `json:"openClose"`
	Change    int  `json:"change"`
}

type diagramCapabilities struct {
	Operations []string `json:"operations"`
	Layouts    []string `json:"layouts"`
}

type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int64  `json:"version"`
	Text       string `json:"text"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int64  `json:"version"`
}

type position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type lspRange struct {
	Start position `json:"start"`
	End   position `json:"end"`
}

type textDocumentContentChangeEvent struct {
	Range *lspRange `json:"range,omitempty"`
	Text  string    `json:"text"`
}

type didOpenTextDocumentParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type didChangeTextDocumentParams struct {
	TextDocument   versionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []textDocumentContentChangeEvent `json:"contentChanges"`
}

type didCloseTextDocumentParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

// documentParams addresses one tracked document.
type documentParams struct {
	URI string `json:"uri"`
}

// loadModelParams opens a document from pushed text, outside the
// textDocument lifecycle.
type loadModelParams struct {
	URI     string `json:"uri"`
	Text    string `json:"text"`
	Version int64  `json:"version"`
}

type snapshotResult struct {
	Snapshot *diagram.Snapshot `json:"snapshot"`
	State    string            `json:"state"`
}

// operationParams is the single entry point for diagram mutations; the
// kind selects which of the embedded request shapes applies.
type operationParams struct {
	URI  string `json:"uri"`
	Kind string `json:"kind"`

	// createNode
	NodeType  string        `json:"nodeType,omitempty"`
	Location  diagram.Point `json:"location,omitempty"`
	Container string        `json:"container,omitempty"`
	BaseName  string        `json:"baseName,omitempty"`

	// createEdge
	EdgeType   string `json:"edgeType,omitempty"`
	Source     string `json:"source,omitempty"`
	Target     string `json:"target,omitempty"`
	SourcePort string `json:"sourcePort,omitempty"`
	TargetPort string `json:"targetPort,omitempty"`

	// reconnect
	Edge      string `json:"edge,omitempty"`
	NewSource string `json:"newSource,omitempty"`
	NewTarget string `json:"newTarget,omitempty"`

	// delete / changeBounds
	Element string        `json:"element,omitempty"`
	NewPos  diagram.Point `json:"newPosition,omitempty"`
	NewSize diagram.Size  `json:"newSize,omitempty"`

	Args map[string]string `json:"args,omitempty"`
}

type operationResult struct {
	Element  diagram.ElementID `json:"element,omitempty"`
	Revision int64             `json:"revision"`
	Edits    []textedit.Edit   `json:"edits,omitempty"`
}

type applyLayoutParams struct {
	URI       string `json:"uri"`
	Algorithm string `json:"algorithm"`
}

type updatePropertyParams struct {
	URI      string          `json:"uri"`
	Element  string          `json:"element"`
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

type elementParams struct {
	URI     string `json:"uri"`
	Element string `json:"element"`
}

type paletteNode struct {
	NodeType    string `json:"nodeType"`
	DiagramType string `json:"diagramType"`
	Label       string `json:"label"`
	Shape       string `json:"shape,omitempty"`
}

type paletteEdge struct {
	Field       string `json:"field"`
	DiagramType string `json:"diagramType"`
}

type toolPaletteResult struct {
	Nodes []paletteNode `json:"nodes"`
	Edges []paletteEdge `json:"edges"`
}

type menuAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type contextMenuResult struct {
	Element diagram.ElementID `json:"element"`
	Actions []menuAction      `json:"actions"`
}

type propertyEntry struct {
	Name     string `json:"name"`
	Value    any    `json:"value"`
	Editable bool   `json:"editable"`
}

type propertiesResult struct {
	Element    diagram.ElementID `json:"element"`
	Properties []propertyEntry   `json:"properties"`
}

type validateResult = diagfmt.DiagnosticsOutput

type modelChangedParams struct {
	URI       string            `json:"uri"`
	Revision  int64             `json:"revision"`
	Timestamp time.Time         `json:"timestamp"`
	Changes   []session.Change  `json:"changes"`
	Snapshot  *diagram.Snapshot `json:"snapshot,omitempty"`
}

type modelRemovedParams struct {
	URI string `json:"uri"`
}
