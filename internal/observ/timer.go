// Package observ provides lightweight phase timing for the conversion
// pipeline: parse, reconcile, convert, layout, validate.
package observ

import (
	"fmt"
	"strings"
	"time"
)

type phase struct {
	name string
	dur  time.Duration
	note string
}

// Timer records the wall-clock duration of named pipeline phases in
// the order they finish.
type Timer struct {
	phases []phase
}

func NewTimer() *Timer { return &Timer{} }

// Phase starts the clock for a named phase. The returned function
// stops it and records the entry, optionally annotated with a note.
func (t *Timer) Phase(name string) func(note string) {
	start := time.Now()
	return func(note string) {
		t.phases = append(t.phases, phase{name: name, dur: time.Since(start), note: note})
	}
}

// Summary renders all recorded phases plus the total, one per line.
func (t *Timer) Summary() string {
	var b strings.Builder
	b.WriteString("timings:\n")
	var total time.Duration
	for _, p := range t.phases {
		total += p.dur
		fmt.Fprintf(&b, "  %-20s %7.2f ms", p.name, millis(p.dur))
		if p.note != "" {
			b.WriteString("  // " + p.note)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  %-20s %7.2f ms\n", "total", millis(total))
	return b.String()
}

// PhaseReport is the serializable form of one recorded phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report holds every phase with the total duration, all in
// milliseconds.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

func (t *Timer) Report() Report {
	var r Report
	var total time.Duration
	for _, p := range t.phases {
		total += p.dur
		r.Phases = append(r.Phases, PhaseReport{Name: p.name, DurationMS: millis(p.dur), Note: p.note})
	}
	r.TotalMS = millis(total)
	return r
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
