package trace

import (
	"fmt"
	"time"
)

// State is an agent lifecycle state.
type State int

const (
	// StateIdle is the state of an agent that has not started yet.
	StateIdle State = iota
	// StateThinking holds no utensils.
	StateThinking
	// StateHungry is waiting for both utensils.
	StateHungry
	// StateEating holds both utensils.
	StateEating
	// StateStopped is terminal.
	StateStopped
)

var stateNames = [...]string{"idle", "thinking", "hungry", "eating", "stopped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return StateIdle, fmt.Errorf("unknown state %q", s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Kind distinguishes event kinds.
type Kind int

const (
	// KindTransition is an agent state change.
	KindTransition Kind = iota + 1
	// KindAcquire is a utensil taken by an agent.
	KindAcquire
	// KindRelease is a utensil put back by an agent.
	KindRelease
)

func (k Kind) String() string {
	switch k {
	case KindTransition:
		return "transition"
	case KindAcquire:
		return "acquire"
	case KindRelease:
		return "release"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "transition":
		return KindTransition, nil
	case "acquire":
		return KindAcquire, nil
	case "release":
		return KindRelease, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// NoResource marks events that do not concern a utensil.
const NoResource = -1

// Event is one observable step of a run.
//
// Transition events carry From and To; acquire and release events carry
// Resource. Seq and At are filled in by the engine when the event is emitted.
type Event struct {
	Seq      int64     `json:"seq"`
	RunID    string    `json:"run_id,omitempty"`
	Kind     Kind      `json:"kind"`
	Agent    int       `json:"agent"`
	From     State     `json:"from"`
	To       State     `json:"to"`
	Resource int       `json:"resource"`
	At       time.Time `json:"at"`
}

// Transition builds a state change event.
func Transition(agent int, from, to State) Event {
	return Event{Kind: KindTransition, Agent: agent, From: from, To: to, Resource: NoResource}
}

// Acquire builds a utensil acquisition event.
func Acquire(agent, resource int) Event {
	return Event{Kind: KindAcquire, Agent: agent, Resource: resource}
}

// Release builds a utensil release event.
func Release(agent, resource int) Event {
	return Event{Kind: KindRelease, Agent: agent, Resource: resource}
}

// IsTransition reports whether e moves an agent from one state to another.
func (e Event) IsTransition(from, to State) bool {
	return e.Kind == KindTransition && e.From == from && e.To == to
}

func (e Event) String() string {
	switch e.Kind {
	case KindTransition:
		return fmt.Sprintf("#%d agent %d %s -> %s", e.Seq, e.Agent, e.From, e.To)
	case KindAcquire, KindRelease:
		return fmt.Sprintf("#%d agent %d %s utensil %d", e.Seq, e.Agent, e.Kind, e.Resource)
	default:
		return fmt.Sprintf("#%d agent %d %s", e.Seq, e.Agent, e.Kind)
	}
}
