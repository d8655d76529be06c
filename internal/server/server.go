// Package server speaks JSON-RPC over stdio: the LSP document
// lifecycle for text synchronization plus a diagram/* method family
// for snapshots, operations, layout and validation. Model change
// notifications push re-derived snapshots to the client.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.lsp.dev/uri"

	"glint/internal/ast"
	"glint/internal/config"
	"glint/internal/descriptor"
	"glint/internal/diagfmt"
	"glint/internal/diagram"
	"glint/internal/metastore"
	"glint/internal/ops"
	"glint/internal/session"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("server exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("server exit without shutdown")
)

// Options configures a Server.
type Options struct {
	Settings   *config.Settings
	Descriptor *descriptor.Descriptor
	Schema     ast.Schema
	Parse      ast.ParseFunc
	Store      *metastore.Store
}

// Server handles stdio JSON-RPC for one client.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	mu     sync.Mutex

	sessions *session.Manager
	desc     *descriptor.Descriptor
	settings *config.Settings

	shutdownRequested bool
}

// NewServer constructs a server around a fresh session manager.
func NewServer(in io.Reader, out io.Writer, opts Options) *Server {
	settings := opts.Settings
	if settings == nil {
		def := config.Defaults()
		settings = &def
	}
	s := &Server{
		in:       bufio.NewReader(in),
		out:      bufio.NewWriter(out),
		desc:     opts.Descriptor,
		settings: settings,
	}
	s.sessions = session.NewManager(session.Options{
		Parse:           opts.Parse,
		Descriptor:      opts.Descriptor,
		Schema:          opts.Schema,
		Layout:          settings.LayoutOptions(),
		TextDebounce:    settings.TextDebounce(),
		DiagramDebounce: settings.DiagramDebounce(),
		Store:           opts.Store,
		MaxDiagnostics:  settings.MaxDiagnostics,
		Trace:           settings.Trace,
	})
	s.sessions.OnModelChanged(func(ev session.ChangeEvent) {
		s.sendNotification("diagram/modelChanged", modelChangedParams{
			URI:       string(ev.URI),
			Revision:  ev.Revision,
			Timestamp: ev.Timestamp,
			Changes:   ev.Changes,
			Snapshot:  ev.Snapshot,
		})
	})
	s.sessions.OnModelRemoved(func(u uri.URI) {
		s.sendNotification("diagram/modelRemoved", modelRemovedParams{URI: string(u)})
	})
	return s
}

// Sessions exposes the underlying manager, mostly for tests and the
// CLI's one-shot commands.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Run serves requests until exit or EOF.
func (s *Server) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		s.mu.Lock()
		s.shutdownRequested = true
		s.mu.Unlock()
		return s.sendResponse(msg.ID, nil)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "diagram/loadModel":
		return s.handleLoadModel(msg)
	case "diagram/convert":
		return s.handleConvert(msg)
	case "diagram/operation":
		return s.handleOperation(msg)
	case "diagram/undo":
		return s.handleUndo(msg)
	case "diagram/applyLayout":
		return s.handleApplyLayout(msg)
	case "diagram/validate":
		return s.handleValidate(msg)
	case "diagram/toolPalette":
		return s.handleToolPalette(msg)
	case "diagram/contextMenu":
		return s.handleContextMenu(msg)
	case "diagram/properties":
		return s.handleProperties(msg)
	case "diagram/updateProperty":
		return s.handleUpdateProperty(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
			},
			Diagram: diagramCapabilities{
				Operations: []string{
					"createNode", "createEdge", "reconnect",
					"deleteElement", "changeBounds",
				},
				Layouts: []string{"grid", "tree", "layered", "force"},
			},
		},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if params.TextDocument.URI == "" {
		return nil
	}
	s.sessions.Open(uri.URI(params.TextDocument.URI), params.TextDocument.Text, params.TextDocument.Version)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	docURI := uri.URI(params.TextDocument.URI)
	text, ok := s.sessions.Text(docURI)
	if !ok {
		s.logf("didChange for untracked document %s", docURI)
		return nil
	}
	text = applyChanges(text, params.ContentChanges)
	if err := s.sessions.Change(docURI, text, params.TextDocument.Version); err != nil {
		s.logf("didChange: %v", err)
	}
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if err := s.sessions.Close(uri.URI(params.TextDocument.URI)); err != nil {
		s.logf("didClose: %v", err)
	}
	return nil
}

func (s *Server) handleLoadModel(msg *rpcMessage) error {
	var params loadModelParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	docURI := uri.URI(params.URI)
	s.sessions.Open(docURI, params.Text, params.Version)
	return s.respondSnapshot(msg.ID, docURI)
}

func (s *Server) handleConvert(msg *rpcMessage) error {
	var params documentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	return s.respondSnapshot(msg.ID, uri.URI(params.URI))
}

func (s *Server) respondSnapshot(id json.RawMessage, docURI uri.URI) error {
	snap, ok := s.sessions.Snapshot(docURI)
	if !ok {
		return s.sendError(id, -32602, fmt.Sprintf("no snapshot for %s", docURI))
	}
	return s.sendResponse(id, snapshotResult{
		Snapshot: snap,
		State:    s.sessions.State(docURI).String(),
	})
}

func (s *Server) handleOperation(msg *rpcMessage) error {
	var params operationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	docURI := uri.URI(params.URI)

	var res *ops.Result
	var err error
	switch params.Kind {
	case "createNode":
		res, err = s.sessions.CreateNode(docURI, ops.CreateNodeRequest{
			Type:      params.NodeType,
			Location:  params.Location,
			Container: diagram.ElementID(params.Container),
			BaseName:  params.BaseName,
			Args:      params.Args,
		})
	case "createEdge":
		res, err = s.sessions.CreateEdge(docURI, ops.CreateEdgeRequest{
			Type:       params.EdgeType,
			Source:     diagram.ElementID(params.Source),
			Target:     diagram.ElementID(params.Target),
			SourcePort: params.SourcePort,
			TargetPort: params.TargetPort,
			Args:       params.Args,
		})
	case "reconnect":
		res, err = s.sessions.Reconnect(docURI, ops.ReconnectRequest{
			Edge:      diagram.ElementID(params.Edge),
			NewSource: diagram.ElementID(params.NewSource),
			NewTarget: diagram.ElementID(params.NewTarget),
		})
	case "deleteElement":
		res, err = s.sessions.DeleteElement(docURI, diagram.ElementID(params.Element))
	case "changeBounds":
		res, err = s.sessions.ChangeBounds(docURI, diagram.ElementID(params.Element), params.NewPos, params.NewSize)
	default:
		return s.sendError(msg.ID, -32602, fmt.Sprintf("unknown operation kind %q", params.Kind))
	}
	if err != nil {
		return s.sendError(msg.ID, -32000, err.Error())
	}
	return s.sendResponse(msg.ID, operationResult{
		Element:  res.Element,
		Revision: res.Revision,
		Edits:    res.Edits,
	})
}

func (s *Server) handleUndo(msg *rpcMessage) error {
	var params documentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	docURI := uri.URI(params.URI)
	if err := s.sessions.Undo(docURI); err != nil {
		return s.sendError(msg.ID, -32000, err.Error())
	}
	return s.respondSnapshot(msg.ID, docURI)
}

func (s *Server) handleApplyLayout(msg *rpcMessage) error {
	var params applyLayoutParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	docURI := uri.URI(params.URI)
	if err := s.sessions.ApplyLayout(docURI, params.Algorithm); err != nil {
		return s.sendError(msg.ID, -32000, err.Error())
	}
	return s.respondSnapshot(msg.ID, docURI)
}

func (s *Server) handleValidate(msg *rpcMessage) error {
	var params documentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	bag, err := s.sessions.Validate(uri.URI(params.URI))
	if err != nil {
		return s.sendError(msg.ID, -32000, err.Error())
	}
	out := diagfmt.BuildDiagnosticsOutput(params.URI, bag, diagfmt.JSONOpts{Max: s.settings.MaxDiagnostics})
	return s.sendResponse(msg.ID, out)
}

func (s *Server) handleUpdateProperty(msg *rpcMessage) error {
	var params updatePropertyParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	var value any
	if len(params.Value) > 0 {
		if err := json.Unmarshal(params.Value, &value); err != nil {
			return s.sendError(msg.ID, -32602, "invalid property value")
		}
	}
	res, err := s.sessions.UpdateProperty(uri.URI(params.URI), diagram.ElementID(params.Element), params.Property, value)
	if err != nil {
		return s.sendError(msg.ID, -32000, err.Error())
	}
	return s.sendResponse(msg.ID, operationResult{
		Element:  res.Element,
		Revision: res.Revision,
		Edits:    res.Edits,
	})
}

type outbound struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) sendNotification(method string, params any) {
	if err := s.send(outbound{JSONRPC: "2.0", Method: method, Params: params}); err != nil {
		s.logf("notify %s: %v", method, err)
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	if result == nil {
		result = json.RawMessage("null")
	}
	return s.send(outbound{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.send(outbound{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) send(msg outbound) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "server: "+format+"\n", args...)
}
