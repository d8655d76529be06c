package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.lsp.dev/uri"

	"glint/internal/config"
	"glint/internal/descriptor"
	"glint/internal/diagram"
)

const testURI = "file:///models/shop.glm"

const shopModel = `entity Customer {
	name: string
}
entity Order {
	customer -> Customer
}
`

func demoDescriptor() *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Language: "demo",
		Nodes: map[string]descriptor.NodeMapping{
			"entity": {
				DiagramType: "node:entity",
				Shape:       "rectangle",
				Default:     diagram.Size{Width: 120, Height: 60},
				NameBase:    "Entity",
			},
		},
		Rules: []descriptor.Rule{
			{EdgeType: descriptor.DefaultEdgeType, SourceType: "node:entity", TargetType: "node:entity"},
		},
	}
}

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	settings := config.Defaults()
	settings.TextDebounceMS = 0
	settings.DiagramDebounceMS = 0
	var out bytes.Buffer
	srv := NewServer(bytes.NewReader(nil), &out, Options{
		Settings:   &settings,
		Descriptor: demoDescriptor(),
	})
	return srv, &out
}

func openDoc(t *testing.T, srv *Server, text string) {
	t.Helper()
	params, _ := json.Marshal(didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: testURI, Version: 1, Text: text},
	})
	if err := srv.handleMessage(&rpcMessage{Method: "textDocument/didOpen", Params: params}); err != nil {
		t.Fatalf("didOpen: %v", err)
	}
}

// drainMessages decodes every framed message written so far and resets
// the buffer.
func drainMessages(t *testing.T, out *bytes.Buffer) []rpcMessage {
	t.Helper()
	reader := bufio.NewReader(bytes.NewReader(out.Bytes()))
	var msgs []rpcMessage
	for {
		payload, err := readMessage(reader)
		if err != nil {
			break
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		msgs = append(msgs, msg)
	}
	out.Reset()
	return msgs
}

func request(t *testing.T, srv *Server, out *bytes.Buffer, id, method string, params any) rpcMessage {
	t.Helper()
	payload, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	msg := &rpcMessage{ID: json.RawMessage(id), Method: method, Params: payload}
	if err := srv.handleMessage(msg); err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	msgs := drainMessages(t, out)
	for _, m := range msgs {
		if string(m.ID) == id {
			return m
		}
	}
	t.Fatalf("%s: no response with id %s among %d messages", method, id, len(msgs))
	return rpcMessage{}
}

func TestOpenEmitsModelChanged(t *testing.T) {
	srv, out := newTestServer(t)
	openDoc(t, srv, shopModel)

	msgs := drainMessages(t, out)
	if len(msgs) != 1 || msgs[0].Method != "diagram/modelChanged" {
		t.Fatalf("messages = %+v, want one diagram/modelChanged", msgs)
	}
	var params modelChangedParams
	if err := json.Unmarshal(msgs[0].Params, &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params.URI != testURI {
		t.Fatalf("uri = %q, want %q", params.URI, testURI)
	}
	if params.Snapshot == nil || len(params.Snapshot.Nodes) != 2 || len(params.Snapshot.Edges) != 1 {
		t.Fatalf("snapshot = %+v, want 2 nodes 1 edge", params.Snapshot)
	}
	if len(params.Changes) == 0 {
		t.Fatal("expected added-element changes on first convert")
	}
}

func TestConvertReturnsSnapshot(t *testing.T) {
	srv, out := newTestServer(t)
	openDoc(t, srv, shopModel)
	out.Reset()

	resp := request(t, srv, out, "1", "diagram/convert", documentParams{URI: testURI})
	if resp.Error != nil {
		t.Fatalf("convert error: %+v", resp.Error)
	}
	var result snapshotResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.State != "synced" {
		t.Fatalf("state = %q, want synced", result.State)
	}
	if len(result.Snapshot.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(result.Snapshot.Nodes))
	}
}

func TestConvertUntrackedFails(t *testing.T) {
	srv, out := newTestServer(t)
	payload, _ := json.Marshal(documentParams{URI: testURI})
	if err := srv.handleMessage(&rpcMessage{ID: json.RawMessage("1"), Method: "diagram/convert", Params: payload}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	msgs := drainMessages(t, out)
	if len(msgs) != 1 || msgs[0].Error == nil {
		t.Fatalf("messages = %+v, want one error response", msgs)
	}
}

func TestDidChangeAppliesIncrementalEdit(t *testing.T) {
	srv, out := newTestServer(t)
	openDoc(t, srv, shopModel)
	out.Reset()

	params, _ := json.Marshal(didChangeTextDocumentParams{
		TextDocument: versionedTextDocumentIdentifier{URI: testURI, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{
			{
				Range: &lspRange{Start: position{Line: 5, Character: 1}, End: position{Line: 5, Character: 1}},
				Text:  "\nentity Invoice {\n}\n",
			},
		},
	})
	if err := srv.handleMessage(&rpcMessage{Method: "textDocument/didChange", Params: params}); err != nil {
		t.Fatalf("didChange: %v", err)
	}

	snap, ok := srv.Sessions().Snapshot(uri.URI(testURI))
	if !ok {
		t.Fatal("no snapshot after change")
	}
	if len(snap.Nodes) != 3 {
		t.Fatalf("nodes = %d after insert, want 3", len(snap.Nodes))
	}
	msgs := drainMessages(t, out)
	if len(msgs) != 1 || msgs[0].Method != "diagram/modelChanged" {
		t.Fatalf("messages = %+v, want one diagram/modelChanged", msgs)
	}
}

func TestOperationCreateNode(t *testing.T) {
	srv, out := newTestServer(t)
	openDoc(t, srv, shopModel)
	out.Reset()

	resp := request(t, srv, out, "7", "diagram/operation", operationParams{
		URI:      testURI,
		Kind:     "createNode",
		NodeType: "entity",
		Location: diagram.Point{X: 300, Y: 120},
	})
	if resp.Error != nil {
		t.Fatalf("operation error: %+v", resp.Error)
	}
	var result operationResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Element == "" {
		t.Fatal("operation returned no element id")
	}
	if len(result.Edits) == 0 {
		t.Fatal("createNode returned no text edits")
	}
	text, _ := srv.Sessions().Text(uri.URI(testURI))
	if !strings.Contains(text, "entity Entity {") {
		t.Fatalf("materialized text missing declaration:\n%s", text)
	}
}

func TestOperationUnknownKind(t *testing.T) {
	srv, out := newTestServer(t)
	openDoc(t, srv, shopModel)
	out.Reset()

	resp := request(t, srv, out, "3", "diagram/operation", operationParams{URI: testURI, Kind: "teleport"})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("error = %+v, want invalid params", resp.Error)
	}
}

func TestValidateMethod(t *testing.T) {
	srv, out := newTestServer(t)
	openDoc(t, srv, shopModel)
	out.Reset()

	resp := request(t, srv, out, "4", "diagram/validate", documentParams{URI: testURI})
	if resp.Error != nil {
		t.Fatalf("validate error: %+v", resp.Error)
	}
	var result validateResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Errors != 0 {
		t.Fatalf("errors = %d, want 0", result.Errors)
	}
}

func TestToolPaletteSorted(t *testing.T) {
	srv, out := newTestServer(t)
	resp := request(t, srv, out, "5", "diagram/toolPalette", struct{}{})
	var result toolPaletteResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Nodes) != 1 || result.Nodes[0].NodeType != "entity" {
		t.Fatalf("palette nodes = %+v, want the entity tool", result.Nodes)
	}
	if result.Nodes[0].DiagramType != "node:entity" {
		t.Fatalf("diagram type = %q", result.Nodes[0].DiagramType)
	}
}

func TestPropertiesAndUpdate(t *testing.T) {
	srv, out := newTestServer(t)
	openDoc(t, srv, shopModel)
	out.Reset()

	snap, _ := srv.Sessions().Snapshot(uri.URI(testURI))
	var customer diagram.ElementID
	for _, n := range snap.Nodes {
		if n.Name == "Customer" {
			customer = n.ID
		}
	}
	if customer == "" {
		t.Fatal("Customer node missing")
	}

	resp := request(t, srv, out, "6", "diagram/properties", elementParams{URI: testURI, Element: string(customer)})
	var props propertiesResult
	if err := json.Unmarshal(resp.Result, &props); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	foundName := false
	for _, p := range props.Properties {
		if p.Name == "name" {
			foundName = true
			if !p.Editable {
				t.Fatal("name should be editable")
			}
		}
	}
	if !foundName {
		t.Fatalf("properties = %+v, want a name entry", props.Properties)
	}

	resp = request(t, srv, out, "8", "diagram/updateProperty", updatePropertyParams{
		URI:      testURI,
		Element:  string(customer),
		Property: "name",
		Value:    json.RawMessage(`"Client"`),
	})
	if resp.Error != nil {
		t.Fatalf("updateProperty error: %+v", resp.Error)
	}
	text, _ := srv.Sessions().Text(uri.URI(testURI))
	if !strings.Contains(text, "entity Client {") {
		t.Fatalf("rename not materialized:\n%s", text)
	}
	snap, _ = srv.Sessions().Snapshot(uri.URI(testURI))
	renamed := snap.Node(customer)
	if renamed == nil || renamed.Name != "Client" {
		t.Fatalf("renamed node = %+v, want same id with name Client", renamed)
	}
}

func TestContextMenuForEdge(t *testing.T) {
	srv, out := newTestServer(t)
	openDoc(t, srv, shopModel)
	out.Reset()

	snap, _ := srv.Sessions().Snapshot(uri.URI(testURI))
	var edge diagram.ElementID
	for _, e := range snap.Edges {
		if e.Kind == diagram.EdgeReference {
			edge = e.ID
		}
	}
	if edge == "" {
		t.Fatal("reference edge missing")
	}

	resp := request(t, srv, out, "9", "diagram/contextMenu", elementParams{URI: testURI, Element: string(edge)})
	var menu contextMenuResult
	if err := json.Unmarshal(resp.Result, &menu); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	ids := make([]string, 0, len(menu.Actions))
	for _, a := range menu.Actions {
		ids = append(ids, a.ID)
	}
	if len(ids) != 2 || ids[0] != "reconnect" || ids[1] != "deleteElement" {
		t.Fatalf("edge actions = %v", ids)
	}
}

func TestLifecycle(t *testing.T) {
	srv, out := newTestServer(t)

	err := srv.handleMessage(&rpcMessage{Method: "exit"})
	if !errors.Is(err, ErrExitWithoutShutdown) {
		t.Fatalf("exit before shutdown = %v", err)
	}

	if err := srv.handleMessage(&rpcMessage{ID: json.RawMessage("1"), Method: "shutdown"}); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	err = srv.handleMessage(&rpcMessage{Method: "exit"})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("exit after shutdown = %v", err)
	}
	drainMessages(t, out)
}

func TestUnknownMethod(t *testing.T) {
	srv, out := newTestServer(t)
	if err := srv.handleMessage(&rpcMessage{ID: json.RawMessage("2"), Method: "diagram/fly"}); err != nil {
		t.Fatalf("unknown method: %v", err)
	}
	msgs := drainMessages(t, out)
	if len(msgs) != 1 || msgs[0].Error == nil || msgs[0].Error.Code != -32601 {
		t.Fatalf("messages = %+v, want method-not-found", msgs)
	}
}

func TestApplyChangesUTF16(t *testing.T) {
	text := "aéb\n"
	got := applyChanges(text, []textDocumentContentChangeEvent{
		{
			Range: &lspRange{Start: position{Line: 0, Character: 2}, End: position{Line: 0, Character: 3}},
			Text:  "X",
		},
	})
	if got != "aéX\n" {
		t.Fatalf("applyChanges = %q", got)
	}
}

func TestInitializeCapabilities(t *testing.T) {
	srv, out := newTestServer(t)
	resp := request(t, srv, out, "10", "initialize", initializeParams{})
	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Capabilities.TextDocumentSync.OpenClose || result.Capabilities.TextDocumentSync.Change != 2 {
		t.Fatalf("text sync = %+v", result.Capabilities.TextDocumentSync)
	}
	if len(result.Capabilities.Diagram.Operations) != 5 {
		t.Fatalf("operations = %v", result.Capabilities.Diagram.Operations)
	}
}
