// Package eventlog defines the case/activity/timestamp event log the miner consumes.
package eventlog

import (
	"sort"
	"strconv"
	"time"
)

// Standard log column names (XES attribute keys).
const (
	ColumnCaseID    = "case:concept:name"
	ColumnActivity  = "concept:name"
	ColumnTimestamp = "time:timestamp"
)

// Event is a single process mining event.
type Event struct {
	// CaseID identifies the process instance (trace).
	CaseID string

	// Activity is the event name/activity label.
	Activity string

	// Timestamp is always normalised to UTC.
	Timestamp time.Time
}

// Valid reports whether the event carries a case and an activity.
func (e Event) Valid() bool {
	return e.CaseID != "" && e.Activity != ""
}

// Trace is the ordered event sequence of one case.
type Trace struct {
	CaseID string
	Events []Event
}

// Activities returns the trace's activity labels in order.
func (t Trace) Activities() []string {
	out := make([]string, len(t.Events))
	for i, e := range t.Events {
		out[i] = e.Activity
	}
	return out
}

// Log is an immutable event log. Traces appear in first-seen case order.
// Callers must not modify slices returned by its accessors.
type Log struct {
	traces  []Trace
	events  int
	dropped int
}

// Traces returns the traces of the log.
func (l *Log) Traces() []Trace {
	return l.traces
}

// Len returns the number of events in the log.
func (l *Log) Len() int {
	return l.events
}

// NumCases returns the number of traces.
func (l *Log) NumCases() int {
	return len(l.traces)
}

// Empty reports whether the log holds no events.
func (l *Log) Empty() bool {
	return l == nil || l.events == 0
}

// Dropped returns how many input rows were rejected for a missing case or activity.
func (l *Log) Dropped() int {
	return l.dropped
}

// Activities returns the sorted set of activity labels.
func (l *Log) Activities() []string {
	seen := make(map[string]struct{})
	for _, t := range l.traces {
		for _, e := range t.Events {
			seen[e.Activity] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Variant is a distinct activity sequence and how many traces follow it.
type Variant struct {
	Activities []string
	Count      int
}

// Variants groups traces by activity sequence, most frequent first.
// Ties keep first-seen order.
func (l *Log) Variants() []Variant {
	index := make(map[string]int)
	var variants []Variant

	for _, t := range l.traces {
		acts := t.Activities()
		key := variantKey(acts)
		if i, ok := index[key]; ok {
			variants[i].Count++
			continue
		}
		index[key] = len(variants)
		variants = append(variants, Variant{Activities: acts, Count: 1})
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Count > variants[j].Count
	})
	return variants
}

func variantKey(acts []string) string {
	n := 0
	for _, a := range acts {
		n += len(a) + 1
	}
	b := make([]byte, 0, n)
	for _, a := range acts {
		b = append(b, a...)
		b = append(b, 0)
	}
	return string(b)
}

// Builder accumulates events and produces a Log.
type Builder struct {
	order   []string
	byCase  map[string][]Event
	events  int
	dropped int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{byCase: make(map[string][]Event)}
}

// Add appends an event. Events without a case or activity are dropped and counted.
func (b *Builder) Add(e Event) {
	if !e.Valid() {
		b.dropped++
		return
	}
	e.Timestamp = e.Timestamp.UTC()
	if _, ok := b.byCase[e.CaseID]; !ok {
		b.order = append(b.order, e.CaseID)
	}
	b.byCase[e.CaseID] = append(b.byCase[e.CaseID], e)
	b.events++
}

// Build sorts every case by timestamp (stable, so equal timestamps keep input
// order) and returns the finished log. The builder must not be reused.
func (b *Builder) Build() *Log {
	traces := make([]Trace, 0, len(b.order))
	for _, id := range b.order {
		events := b.byCase[id]
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
		traces = append(traces, Trace{CaseID: id, Events: events})
	}
	return &Log{traces: traces, events: b.events, dropped: b.dropped}
}

// FromEvents builds a log from a flat event slice.
func FromEvents(events []Event) *Log {
	b := NewBuilder()
	for _, e := range events {
		b.Add(e)
	}
	return b.Build()
}

// FromSequences builds a log with one synthetic case per sequence and
// one-second spacing between events. Intended for tests and fixtures.
func FromSequences(seqs ...[]string) *Log {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBuilder()
	for i, seq := range seqs {
		id := "case-" + strconv.Itoa(i+1)
		for j, a := range seq {
			b.Add(Event{CaseID: id, Activity: a, Timestamp: base.Add(time.Duration(j) * time.Second)})
		}
	}
	return b.Build()
}
