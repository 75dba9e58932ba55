package testutil

import (
	"time"

	"github.com/roach88/dining/internal/trace"
)

// ScriptEpoch is the timestamp of the first scripted event.
var ScriptEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Script builds event traces with deterministic seq numbers and
// timestamps, for tests that need exact, reproducible input: the first
// event gets seq 1 and ScriptEpoch, each following one the next seq and
// one more millisecond.
type Script struct {
	runID  string
	seq    int64
	events []trace.Event
}

// NewScript creates an empty script whose events carry runID.
func NewScript(runID string) *Script {
	return &Script{runID: runID}
}

func (s *Script) add(e trace.Event) *Script {
	s.seq++
	e.Seq = s.seq
	e.RunID = s.runID
	e.At = ScriptEpoch.Add(time.Duration(s.seq-1) * time.Millisecond)
	s.events = append(s.events, e)
	return s
}

// Transition appends a state change.
func (s *Script) Transition(agent int, from, to trace.State) *Script {
	return s.add(trace.Transition(agent, from, to))
}

// Acquire appends a utensil acquisition.
func (s *Script) Acquire(agent, resource int) *Script {
	return s.add(trace.Acquire(agent, resource))
}

// Release appends a utensil release.
func (s *Script) Release(agent, resource int) *Script {
	return s.add(trace.Release(agent, resource))
}

// Start appends idle -> thinking.
func (s *Script) Start(agent int) *Script {
	return s.Transition(agent, trace.StateIdle, trace.StateThinking)
}

// Meal appends a full thinking -> hungry -> eating -> thinking cycle using
// utensils low then high.
func (s *Script) Meal(agent, low, high int) *Script {
	return s.Transition(agent, trace.StateThinking, trace.StateHungry).
		Acquire(agent, low).
		Acquire(agent, high).
		Transition(agent, trace.StateHungry, trace.StateEating).
		Release(agent, high).
		Release(agent, low).
		Transition(agent, trace.StateEating, trace.StateThinking)
}

// Stop appends from -> stopped.
func (s *Script) Stop(agent int, from trace.State) *Script {
	return s.Transition(agent, from, trace.StateStopped)
}

// Seq returns the seq of the last appended event.
func (s *Script) Seq() int64 { return s.seq }

// Events returns a copy of the script.
func (s *Script) Events() []trace.Event {
	return append([]trace.Event(nil), s.events...)
}
