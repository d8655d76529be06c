package textedit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	applies [][]Edit
	events  []Event
}

func (r *recorder) apply(uri string, version int64, edits []Edit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applies = append(r.applies, edits)
	return nil
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) applyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applies)
}

func TestQueue_DebouncedSingleBatch(t *testing.T) {
	rec := &recorder{}
	s := NewSync(30*time.Millisecond, rec.apply)
	s.Subscribe(rec.record)

	for i := 0; i < 5; i++ {
		if err := s.Queue("file:///a", Edit{Range: Range{Start: i * 10, End: i * 10}, NewText: "x"}); err != nil {
			t.Fatalf("Queue: %v", err)
		}
	}
	if got := s.PendingCount("file:///a"); got != 5 {
		t.Fatalf("pending = %d, want 5", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.applyCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := rec.applyCount(); got != 1 {
		t.Fatalf("apply invoked %d times, want exactly 1", got)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.applies[0]) != 5 {
		t.Errorf("batch carried %d edits, want 5", len(rec.applies[0]))
	}
	if len(rec.events) != 1 || rec.events[0].Kind != EventApplied {
		t.Errorf("events = %+v, want single applied event", rec.events)
	}
}

func TestQueue_ZeroDebounceFlushesImmediately(t *testing.T) {
	rec := &recorder{}
	s := NewSync(0, rec.apply)
	if err := s.Queue("file:///a", Edit{Range: Range{Start: 0, End: 0}, NewText: "hi"}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if rec.applyCount() != 1 {
		t.Fatalf("zero debounce must apply synchronously")
	}
	if s.PendingCount("file:///a") != 0 {
		t.Errorf("batch still pending after immediate flush")
	}
}

func TestQueue_RejectsBadRanges(t *testing.T) {
	s := NewSync(0, nil)
	tests := []struct {
		name string
		r    Range
	}{
		{"negative start", Range{Start: -1, End: 3}},
		{"negative end", Range{Start: 0, End: -2}},
		{"inverted", Range{Start: 10, End: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Queue("file:///a", Edit{Range: tt.r}); err == nil {
				t.Errorf("bad range accepted: %+v", tt.r)
			}
		})
	}
	if s.PendingCount("file:///a") != 0 {
		t.Errorf("rejected edits must not enter the batch")
	}
}

func TestMergeEdits(t *testing.T) {
	edits := []Edit{
		{Range: Range{Start: 0, End: 5}, NewText: "first", seq: 1},
		{Range: Range{Start: 20, End: 25}, NewText: "far", seq: 2},
		{Range: Range{Start: 3, End: 10}, NewText: "second", seq: 3},
	}
	merged := mergeEdits(edits)
	if len(merged) != 2 {
		t.Fatalf("got %d merged edits, want 2", len(merged))
	}
	// Descending position: the isolated far edit first.
	if merged[0].Range != (Range{Start: 20, End: 25}) {
		t.Errorf("merged[0] = %+v", merged[0])
	}
	// Overlapping pair unions to 0-10 with newest text first.
	if merged[1].Range != (Range{Start: 0, End: 10}) {
		t.Errorf("union range = %+v", merged[1].Range)
	}
	if merged[1].NewText != "secondfirst" {
		t.Errorf("reverse-chronological concat = %q, want %q", merged[1].NewText, "secondfirst")
	}
}

func TestFlush_VersionConflict(t *testing.T) {
	rec := &recorder{}
	s := NewSync(time.Hour, rec.apply) // long window, flush manually
	s.Subscribe(rec.record)

	s.NoteVersion("file:///a", 1)
	if err := s.Queue("file:///a", Edit{Range: Range{Start: 0, End: 1}, NewText: "x"}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	// The document advances before the window expires.
	s.NoteVersion("file:///a", 2)
	s.Flush("file:///a")

	if rec.applyCount() != 0 {
		t.Fatalf("stale batch must not be applied")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 || rec.events[0].Kind != EventConflict {
		t.Fatalf("want one conflict event, got %+v", rec.events)
	}
	if !errors.Is(rec.events[0].Err, ErrStaleVersion) {
		t.Errorf("conflict event must carry ErrStaleVersion")
	}
}

func TestFlush_ApplyFailure(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{}
	s := NewSync(0, func(uri string, version int64, edits []Edit) error { return boom })
	s.Subscribe(rec.record)

	if err := s.Queue("file:///a", Edit{Range: Range{Start: 0, End: 0}, NewText: "x"}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 || rec.events[0].Kind != EventFailed {
		t.Fatalf("want failed event, got %+v", rec.events)
	}
	if !errors.Is(rec.events[0].Err, boom) {
		t.Errorf("failure event must carry the apply error")
	}
}

func TestSubscriberPanicDoesNotBlockOthers(t *testing.T) {
	rec := &recorder{}
	s := NewSync(0, rec.apply)
	s.Subscribe(func(Event) { panic("bad subscriber") })
	s.Subscribe(rec.record)

	if err := s.Queue("file:///a", Edit{Range: Range{Start: 0, End: 0}, NewText: "x"}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 {
		t.Errorf("second subscriber starved by panicking first one")
	}
}

func TestDrop(t *testing.T) {
	rec := &recorder{}
	s := NewSync(time.Hour, rec.apply)
	if err := s.Queue("file:///a", Edit{Range: Range{Start: 0, End: 0}, NewText: "x"}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	s.Drop("file:///a")
	s.Flush("file:///a")
	if rec.applyCount() != 0 {
		t.Errorf("dropped batch must never apply")
	}
}
