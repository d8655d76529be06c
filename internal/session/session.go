// Package session tracks open documents and owns both halves of the
// synchronization loop: text edits debounce into reparse-reconcile-
// reconvert runs, and diagram operations materialize into text edits
// that flow back through the shared textedit queue.
package session

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.lsp.dev/uri"

	"glint/internal/ast"
	"glint/internal/convert"
	"glint/internal/descriptor"
	"glint/internal/diag"
	"glint/internal/diagram"
	"glint/internal/identity"
	"glint/internal/layout"
	"glint/internal/metastore"
	"glint/internal/ops"
	"glint/internal/textedit"
	"glint/internal/validate"
)

// ErrUntracked reports an operation against a document that was never
// opened or has been closed.
var ErrUntracked = errors.New("document is not tracked")

// State is a document's position in the sync lifecycle.
type State uint8

const (
	// StateUntracked marks URIs the manager has never seen.
	StateUntracked State = iota
	// StateTracked marks open documents whose last conversion failed
	// or has not happened yet; the previous snapshot, if any, stays
	// visible.
	StateTracked
	// StateSyncing marks documents with a conversion pending.
	StateSyncing
	// StateSynced marks documents whose snapshot matches the text.
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateTracked:
		return "tracked"
	case StateSyncing:
		return "syncing"
	case StateSynced:
		return "synced"
	default:
		return "untracked"
	}
}

// Options configures a Manager.
type Options struct {
	Parse      ast.ParseFunc
	Descriptor *descriptor.Descriptor
	Schema     ast.Schema
	Layout     layout.Options

	// TextDebounce delays reconversion after text changes; zero runs
	// it synchronously. DiagramDebounce batches diagram-originated
	// text edits the same way.
	TextDebounce    time.Duration
	DiagramDebounce time.Duration

	// Store persists layout metadata and identity across sessions.
	// Nil disables persistence.
	Store *metastore.Store

	MaxDiagnostics int
	Trace          bool
}

type undoEntry struct {
	revision int64
	fn       func()
}

type document struct {
	uri      uri.URI
	text     string
	version  int64
	state    State
	root     *ast.Node
	registry *identity.Registry
	meta     *diagram.Metadata
	snapshot *diagram.Snapshot
	revision int64
	undo     []undoEntry

	timer     *time.Timer
	latestSeq uint64
}

// Manager owns all tracked documents. All exported methods are safe
// for concurrent use; per-document work is serialized under one lock.
type Manager struct {
	mu   sync.Mutex
	opts Options
	docs map[uri.URI]*document

	engine *layout.Engine
	edits  *textedit.Sync

	onChanged []func(ChangeEvent)
	onRemoved []func(uri.URI)
}

// NewManager builds a Manager with usable defaults: the bundled demo
// parser, a 100-diagnostic cap and synchronous (zero-debounce)
// conversion. Hosts that want debouncing set the windows explicitly;
// config.Defaults carries the recommended 300ms.
func NewManager(opts Options) *Manager {
	if opts.Parse == nil {
		opts.Parse = ast.ParseModel
	}
	if opts.TextDebounce < 0 {
		opts.TextDebounce = 0
	}
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}
	m := &Manager{
		opts:   opts,
		docs:   make(map[uri.URI]*document),
		engine: layout.NewEngine(opts.Layout),
	}
	m.edits = textedit.NewSync(opts.DiagramDebounce, m.applyEdits)
	return m
}

// TextSync exposes the diagram-to-text edit queue so hosts can observe
// applied, failed and conflict events.
func (m *Manager) TextSync() *textedit.Sync { return m.edits }

// OnModelChanged registers a subscriber for snapshot revisions.
func (m *Manager) OnModelChanged(fn func(ChangeEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = append(m.onChanged, fn)
}

// OnModelRemoved registers a subscriber for closed documents.
func (m *Manager) OnModelRemoved(fn func(uri.URI)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemoved = append(m.onRemoved, fn)
}

// Open starts tracking a document and schedules its first conversion.
// Persisted layout metadata and element identity are restored before
// the first convert so nodes come back where the user left them.
func (m *Manager) Open(docURI uri.URI, text string, version int64) {
	m.mu.Lock()
	d, ok := m.docs[docURI]
	if !ok {
		d = &document{
			uri:      docURI,
			registry: identity.NewRegistry(),
			meta:     diagram.NewMetadata(),
		}
		if m.opts.Store != nil {
			if payload, err := m.opts.Store.Load(string(docURI)); err == nil && payload != nil {
				entries := payload.Restore(d.meta)
				d.registry.Import(entries)
			}
		}
		m.docs[docURI] = d
	}
	d.text = text
	d.version = version
	d.state = StateSyncing
	seq := m.bumpSeqLocked(d)
	m.edits.NoteVersion(string(docURI), version)
	m.mu.Unlock()
	m.kickConvert(docURI, seq)
}

// Change replaces the document text and schedules reconversion. Calls
// with a version at or below the last seen one still reconvert; the
// version only gates stale results and queued diagram edits.
func (m *Manager) Change(docURI uri.URI, text string, version int64) error {
	m.mu.Lock()
	d, ok := m.docs[docURI]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("change %s: %w", docURI, ErrUntracked)
	}
	d.text = text
	d.version = version
	d.state = StateSyncing
	seq := m.bumpSeqLocked(d)
	m.edits.NoteVersion(string(docURI), version)
	m.mu.Unlock()
	m.kickConvert(docURI, seq)
	return nil
}

// Close stops tracking a document. Pending diagram edits are dropped,
// layout metadata and identity are persisted, and subscribers get a
// removal notification.
func (m *Manager) Close(docURI uri.URI) error {
	m.edits.Drop(string(docURI))
	m.mu.Lock()
	d, ok := m.docs[docURI]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("close %s: %w", docURI, ErrUntracked)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	if m.opts.Store != nil {
		if err := m.opts.Store.Save(string(docURI), d.meta, d.registry.Export()); err != nil {
			m.logf("persist layout for %s: %v", docURI, err)
		}
	}
	delete(m.docs, docURI)
	removed := append([]func(uri.URI){}, m.onRemoved...)
	m.mu.Unlock()
	for _, fn := range removed {
		fn(docURI)
	}
	return nil
}

// State reports a document's sync state.
func (m *Manager) State(docURI uri.URI) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[docURI]; ok {
		return d.state
	}
	return StateUntracked
}

// Snapshot returns a copy of the document's current diagram.
func (m *Manager) Snapshot(docURI uri.URI) (*diagram.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docURI]
	if !ok || d.snapshot == nil {
		return nil, false
	}
	return d.snapshot.Clone(), true
}

// Text returns the document's current source text.
func (m *Manager) Text(docURI uri.URI) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docURI]
	if !ok {
		return "", false
	}
	return d.text, true
}

// Documents lists tracked URIs.
func (m *Manager) Documents() []uri.URI {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uri.URI, 0, len(m.docs))
	for u := range m.docs {
		out = append(out, u)
	}
	return out
}

func (m *Manager) bumpSeqLocked(d *document) uint64 {
	d.latestSeq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return d.latestSeq
}

// kickConvert runs the conversion now when debounce is zero, otherwise
// after the idle window. The captured seq discards runs that lost a
// race with a newer change.
func (m *Manager) kickConvert(docURI uri.URI, seq uint64) {
	if m.opts.TextDebounce == 0 {
		m.runConvert(docURI, seq)
		return
	}
	m.mu.Lock()
	if d, ok := m.docs[docURI]; ok && seq == d.latestSeq {
		d.timer = time.AfterFunc(m.opts.TextDebounce, func() {
			m.runConvert(docURI, seq)
		})
	}
	m.mu.Unlock()
}

func (m *Manager) runConvert(docURI uri.URI, seq uint64) {
	m.mu.Lock()
	d, ok := m.docs[docURI]
	if !ok || seq != d.latestSeq {
		m.mu.Unlock()
		return
	}
	text := d.text
	version := d.version
	m.mu.Unlock()

	root, err := m.opts.Parse(text)
	if err != nil {
		// The previous snapshot stays visible; the document is merely
		// out of sync until the text parses again.
		m.mu.Lock()
		if d, ok := m.docs[docURI]; ok && seq == d.latestSeq {
			d.state = StateTracked
		}
		m.mu.Unlock()
		if m.opts.Trace {
			m.logf("parse %s: %v", docURI, err)
		}
		return
	}

	m.mu.Lock()
	d, ok = m.docs[docURI]
	if !ok || seq != d.latestSeq || version != d.version {
		m.mu.Unlock()
		return
	}
	d.registry.Reconcile(root)
	snap, err := convert.Convert(&convert.Context{
		URI:        string(docURI),
		Root:       root,
		Descriptor: m.opts.Descriptor,
		Schema:     m.opts.Schema,
		Registry:   d.registry,
		Metadata:   d.meta,
		Engine:     m.engine,
		Revision:   d.revision,
	})
	if err != nil {
		d.state = StateTracked
		m.mu.Unlock()
		m.logf("convert %s: %v", docURI, err)
		return
	}
	before := d.snapshot
	d.root = root
	d.snapshot = snap
	d.revision = snap.Revision
	d.state = StateSynced
	changes := diffSnapshots(before, snap)
	subs := append([]func(ChangeEvent){}, m.onChanged...)
	event := ChangeEvent{
		URI:       docURI,
		Revision:  snap.Revision,
		Timestamp: time.Now(),
		Changes:   changes,
		Snapshot:  snap.Clone(),
	}
	m.mu.Unlock()

	if len(changes) == 0 && before != nil {
		return
	}
	for _, fn := range subs {
		fn(event)
	}
}

// applyEdits is the textedit.ApplyFunc: it lands a flushed batch of
// diagram-originated edits in the document text and schedules the
// round-trip reconversion.
func (m *Manager) applyEdits(rawURI string, version int64, edits []textedit.Edit) error {
	docURI := uri.URI(rawURI)
	m.mu.Lock()
	d, ok := m.docs[docURI]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("apply edits %s: %w", rawURI, ErrUntracked)
	}
	text := d.text
	// Merged batches arrive sorted by descending start offset, so each
	// splice leaves earlier offsets intact.
	for _, e := range edits {
		if e.Range.End > len(text) {
			m.mu.Unlock()
			return fmt.Errorf("apply edits %s: range %d-%d beyond document end", rawURI, e.Range.Start, e.Range.End)
		}
		text = text[:e.Range.Start] + e.NewText + text[e.Range.End:]
	}
	d.text = text
	d.version = version + 1
	d.state = StateSyncing
	seq := m.bumpSeqLocked(d)
	m.edits.NoteVersion(rawURI, d.version)
	m.mu.Unlock()
	m.kickConvert(docURI, seq)
	return nil
}

// withDoc runs fn for one tracked document under the manager lock and
// emits a model-changed event when fn mutated the snapshot.
func (m *Manager) withDoc(docURI uri.URI, fn func(d *document) error) error {
	m.mu.Lock()
	d, ok := m.docs[docURI]
	if !ok || d.snapshot == nil {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", docURI, ErrUntracked)
	}
	before := d.snapshot.Clone()
	if err := fn(d); err != nil {
		m.mu.Unlock()
		return err
	}
	d.revision = d.snapshot.Revision
	changes := diffSnapshots(before, d.snapshot)
	subs := append([]func(ChangeEvent){}, m.onChanged...)
	event := ChangeEvent{
		URI:       docURI,
		Revision:  d.snapshot.Revision,
		Timestamp: time.Now(),
		Changes:   changes,
		Snapshot:  d.snapshot.Clone(),
	}
	m.mu.Unlock()

	if len(changes) > 0 {
		for _, fn := range subs {
			fn(event)
		}
	}
	return nil
}

func (m *Manager) handlerLocked(d *document) *ops.Handler {
	mat := newMaterializer(d.text, d.snapshot, d.meta)
	return ops.NewHandler(m.opts.Descriptor, d.snapshot, d.meta, mat)
}

// finishOpLocked records undo state and pins the current document
// version for the edit batch. The edits themselves are queued by the
// caller after the manager lock is released; a zero-debounce queue
// flushes synchronously back into applyEdits.
func (m *Manager) finishOpLocked(d *document, res *ops.Result) {
	if res.Undo != nil {
		d.undo = append(d.undo, undoEntry{revision: res.Revision, fn: res.Undo})
	}
	if len(res.Edits) > 0 {
		m.edits.NoteVersion(string(d.uri), d.version)
	}
}

func (m *Manager) queueEdits(docURI uri.URI, res *ops.Result) {
	if res == nil || len(res.Edits) == 0 {
		return
	}
	if err := m.edits.Queue(string(docURI), res.Edits...); err != nil {
		m.logf("queue edits for %s: %v", docURI, err)
	}
}

// CreateNode executes a create-node operation against the document.
// The registry is pre-seeded with the new element's fingerprint so the
// node keeps this ID, and therefore its pinned position, once the
// materialized text comes back through reconversion.
func (m *Manager) CreateNode(docURI uri.URI, req ops.CreateNodeRequest) (res *ops.Result, err error) {
	err = m.withDoc(docURI, func(d *document) error {
		res, err = m.handlerLocked(d).CreateNode(req)
		if err != nil {
			return err
		}
		if n := d.snapshot.Node(res.Element); n != nil {
			var containers []string
			if req.Container != "" {
				if c := d.snapshot.Node(req.Container); c != nil && c.Name != "" {
					containers = append(containers, c.Name)
				}
			}
			d.registry.Expect(identity.SyntheticFingerprint(containers, req.Type, n.Name), res.Element)
		}
		m.finishOpLocked(d, res)
		return nil
	})
	if err == nil {
		m.queueEdits(docURI, res)
	}
	return res, err
}

// CreateEdge executes a create-edge operation against the document.
func (m *Manager) CreateEdge(docURI uri.URI, req ops.CreateEdgeRequest) (res *ops.Result, err error) {
	err = m.withDoc(docURI, func(d *document) error {
		res, err = m.handlerLocked(d).CreateEdge(req)
		if err != nil {
			return err
		}
		m.finishOpLocked(d, res)
		return nil
	})
	if err == nil {
		m.queueEdits(docURI, res)
	}
	return res, err
}

// Reconnect moves an existing edge endpoint.
func (m *Manager) Reconnect(docURI uri.URI, req ops.ReconnectRequest) (res *ops.Result, err error) {
	err = m.withDoc(docURI, func(d *document) error {
		res, err = m.handlerLocked(d).Reconnect(req)
		if err != nil {
			return err
		}
		m.finishOpLocked(d, res)
		return nil
	})
	if err == nil {
		m.queueEdits(docURI, res)
	}
	return res, err
}

// DeleteElement removes an element from the diagram only; the source
// text is untouched and the element returns on the next full edit.
func (m *Manager) DeleteElement(docURI uri.URI, id diagram.ElementID) (res *ops.Result, err error) {
	err = m.withDoc(docURI, func(d *document) error {
		res, err = m.handlerLocked(d).Delete(id)
		if err != nil {
			return err
		}
		m.finishOpLocked(d, res)
		return nil
	})
	if err == nil {
		m.queueEdits(docURI, res)
	}
	return res, err
}

// ChangeBounds moves or resizes an element.
func (m *Manager) ChangeBounds(docURI uri.URI, id diagram.ElementID, pos diagram.Point, size diagram.Size) (res *ops.Result, err error) {
	err = m.withDoc(docURI, func(d *document) error {
		res, err = m.handlerLocked(d).ChangeBounds(id, pos, size)
		if err != nil {
			return err
		}
		m.finishOpLocked(d, res)
		return nil
	})
	if err == nil {
		m.queueEdits(docURI, res)
	}
	return res, err
}

// Undo reverses the most recent in-memory operation.
func (m *Manager) Undo(docURI uri.URI) error {
	return m.withDoc(docURI, func(d *document) error {
		if len(d.undo) == 0 {
			return fmt.Errorf("undo %s: nothing to undo", docURI)
		}
		entry := d.undo[len(d.undo)-1]
		d.undo = d.undo[:len(d.undo)-1]
		entry.fn()
		return nil
	})
}

// ApplyLayout runs the named layout over the whole diagram and pins
// the resulting positions in metadata.
func (m *Manager) ApplyLayout(docURI uri.URI, algorithm string) error {
	return m.withDoc(docURI, func(d *document) error {
		if err := m.engine.Apply(algorithm, d.snapshot); err != nil {
			return err
		}
		for _, n := range d.snapshot.Nodes {
			d.meta.SetPosition(n.ID, n.Position)
		}
		// Stored routes were drawn for the old positions.
		for _, e := range d.snapshot.Edges {
			d.meta.ClearRoute(e.ID)
			e.RoutingPoints = nil
		}
		d.snapshot.Revision++
		return nil
	})
}

// Validate lints the current snapshot against the descriptor and the
// layout metadata.
func (m *Manager) Validate(docURI uri.URI) (*diag.Bag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docURI]
	if !ok || d.snapshot == nil {
		return nil, fmt.Errorf("validate %s: %w", docURI, ErrUntracked)
	}
	bag := diag.NewBag(m.opts.MaxDiagnostics)
	validate.Snapshot(bag, d.snapshot, m.opts.Descriptor, d.meta)
	return bag, nil
}

// SaveLayout persists the document's layout metadata without closing.
func (m *Manager) SaveLayout(docURI uri.URI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docURI]
	if !ok {
		return fmt.Errorf("save layout %s: %w", docURI, ErrUntracked)
	}
	if m.opts.Store == nil {
		return nil
	}
	return m.opts.Store.Save(string(docURI), d.meta, d.registry.Export())
}

func (m *Manager) logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "session: "+format+"\n", args...)
}
