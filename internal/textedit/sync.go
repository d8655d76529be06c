// Package textedit batches diagram-originated text edits and applies
// them back to the source document. Edits accumulate per document in a
// pending batch flushed after a configurable idle window (zero means
// immediately); stale batches surface as conflict events instead of
// silent misapplication.
package textedit

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// Range is a half-open byte range in document text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Validate rejects malformed ranges before they reach a document.
func (r Range) Validate() error {
	if r.Start < 0 || r.End < 0 {
		return fmt.Errorf("negative offset in range %d-%d", r.Start, r.End)
	}
	if r.Start > r.End {
		return fmt.Errorf("inverted range %d-%d", r.Start, r.End)
	}
	return nil
}

// Edit replaces the text in Range with NewText.
type Edit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`

	seq int // queue order, for reverse-chronological merging
}

// EventKind classifies batch outcomes.
type EventKind uint8

const (
	EventApplied EventKind = iota
	EventFailed
	EventConflict
)

func (k EventKind) String() string {
	switch k {
	case EventApplied:
		return "applied"
	case EventFailed:
		return "failed"
	case EventConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Event reports the outcome of one flushed batch.
type Event struct {
	URI       string
	Kind      EventKind
	Edits     []Edit
	Version   int64
	Err       error
	Timestamp time.Time
}

// ApplyFunc performs the actual document mutation; it is the host's
// async edit application.
type ApplyFunc func(uri string, version int64, edits []Edit) error

// ErrStaleVersion marks a batch whose document advanced between queue
// and flush.
var ErrStaleVersion = errors.New("document version advanced since edits were queued")

type batch struct {
	edits   []Edit
	version int64 // document version the edits were computed against
	timer   *time.Timer
}

// Sync owns the per-document pending batches.
type Sync struct {
	mu       sync.Mutex
	debounce time.Duration
	apply    ApplyFunc
	pending  map[string]*batch
	versions map[string]int64
	nextSeq  int
	subs     []func(Event)
}

func NewSync(debounce time.Duration, apply ApplyFunc) *Sync {
	return &Sync{
		debounce: debounce,
		apply:    apply,
		pending:  make(map[string]*batch),
		versions: make(map[string]int64),
	}
}

// Subscribe registers an event callback. Callbacks run synchronously
// at flush; a panicking subscriber is logged and never blocks delivery
// to the others.
func (s *Sync) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// NoteVersion records the last-known document version for a URI; the
// session layer calls it on every document change notification.
func (s *Sync) NoteVersion(uri string, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[uri] = version
}

// Queue validates and appends edits to the document's pending batch.
// With a zero debounce the batch flushes before Queue returns.
func (s *Sync) Queue(uri string, edits ...Edit) error {
	for _, e := range edits {
		if err := e.Range.Validate(); err != nil {
			return fmt.Errorf("rejected edit for %s: %w", uri, err)
		}
	}

	s.mu.Lock()
	b, ok := s.pending[uri]
	if !ok {
		b = &batch{version: s.versions[uri]}
		s.pending[uri] = b
	}
	for _, e := range edits {
		e.seq = s.nextSeq
		s.nextSeq++
		b.edits = append(b.edits, e)
	}
	if s.debounce <= 0 {
		s.mu.Unlock()
		s.Flush(uri)
		return nil
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(s.debounce, func() { s.Flush(uri) })
	s.mu.Unlock()
	return nil
}

// Flush applies the pending batch for uri now. Overlapping edits are
// merged (union of ranges, reverse-chronological text concatenation)
// and the result is applied back to front so earlier offsets stay
// valid.
func (s *Sync) Flush(uri string) {
	s.mu.Lock()
	b, ok := s.pending[uri]
	if !ok || len(b.edits) == 0 {
		delete(s.pending, uri)
		s.mu.Unlock()
		return
	}
	delete(s.pending, uri)
	if b.timer != nil {
		b.timer.Stop()
	}
	current := s.versions[uri]
	apply := s.apply
	s.mu.Unlock()

	merged := mergeEdits(b.edits)

	if current != b.version {
		s.emit(Event{
			URI:       uri,
			Kind:      EventConflict,
			Edits:     merged,
			Version:   current,
			Err:       ErrStaleVersion,
			Timestamp: time.Now(),
		})
		return
	}

	var err error
	if apply != nil {
		err = apply(uri, b.version, merged)
	}
	kind := EventApplied
	if err != nil {
		kind = EventFailed
	}
	s.emit(Event{
		URI:       uri,
		Kind:      kind,
		Edits:     merged,
		Version:   b.version,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// PendingCount reports how many edits are queued for uri.
func (s *Sync) PendingCount(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.pending[uri]; ok {
		return len(b.edits)
	}
	return 0
}

// Drop discards any pending batch for uri without applying it.
func (s *Sync) Drop(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.pending[uri]; ok && b.timer != nil {
		b.timer.Stop()
	}
	delete(s.pending, uri)
	delete(s.versions, uri)
}

func (s *Sync) emit(ev Event) {
	s.mu.Lock()
	subs := append([]func(Event){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("textedit: subscriber panic: %v", r)
				}
			}()
			fn(ev)
		}()
	}
}

// mergeEdits sorts edits by descending position and merges overlapping
// ranges into one edit covering their union, the newest text first.
// This is a documented simplification, not a three-way merge.
func mergeEdits(edits []Edit) []Edit {
	if len(edits) <= 1 {
		return append([]Edit(nil), edits...)
	}
	sorted := append([]Edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Range.Start != sorted[j].Range.Start {
			return sorted[i].Range.Start > sorted[j].Range.Start
		}
		return sorted[i].seq > sorted[j].seq
	})

	var out []Edit
	for _, e := range sorted {
		if len(out) == 0 {
			out = append(out, e)
			continue
		}
		last := &out[len(out)-1]
		// sorted descending: e starts at or before last.Start
		if e.Range.End > last.Range.Start {
			// overlap: union the ranges, newest text first
			if e.seq > last.seq {
				last.NewText = e.NewText + last.NewText
				last.seq = e.seq
			} else {
				last.NewText = last.NewText + e.NewText
			}
			if e.Range.Start < last.Range.Start {
				last.Range.Start = e.Range.Start
			}
			if e.Range.End > last.Range.End {
				last.Range.End = e.Range.End
			}
			continue
		}
		out = append(out, e)
	}
	return out
}
