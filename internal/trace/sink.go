package trace

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Sink receives events. Implementations must be safe for concurrent use
// and should not block for long: Emit runs on the agent's goroutine, and
// for acquire/release events, while the agent holds the utensil.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi returns a Sink that forwards each event to all of the given sinks,
// in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return Discard
	case 1:
		return out[0]
	}
	return out
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{events: make([]Event, 0, 256)}
}

// Emit implements Sink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Events returns a copy of the recorded events ordered by Seq.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	out := slices.Clone(r.events)
	r.mu.Unlock()
	SortBySeq(out)
	return out
}

// ForAgent returns the recorded events of one agent, ordered by Seq.
func (r *Recorder) ForAgent(agent int) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Agent == agent {
			out = append(out, e)
		}
	}
	return out
}

// SortBySeq orders events by their logical clock stamp.
func SortBySeq(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}

// LogSink writes events to a structured logger. State transitions are
// logged at Info, utensil traffic at Debug.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(e Event) {
	switch e.Kind {
	case KindTransition:
		s.logger.Info("transition",
			"seq", e.Seq,
			"agent", e.Agent,
			"from", e.From.String(),
			"to", e.To.String(),
		)
	default:
		// Acquire and release are emitted while a utensil is locked; skip
		// boxing the attributes when Debug is off.
		if !s.logger.Enabled(context.Background(), slog.LevelDebug) {
			return
		}
		s.logger.Debug(e.Kind.String(),
			"seq", e.Seq,
			"agent", e.Agent,
			"utensil", e.Resource,
		)
	}
}
