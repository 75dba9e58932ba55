package ring

import (
	"fmt"

	"github.com/roach88/dining/internal/trace"
)

// MinSize is the smallest table that makes sense.
const MinSize = 2

// Pair is the two utensils an agent needs, lowest index first.
type Pair struct {
	Low  int
	High int
}

func (p Pair) String() string { return fmt.Sprintf("(%d,%d)", p.Low, p.High) }

// Ring owns the utensils for the lifetime of a run.
type Ring struct {
	resources []*Resource
}

// New builds a ring of n free utensils. Acquire and release events are
// sent to sink; a nil sink discards them.
func New(n int, sink trace.Sink) (*Ring, error) {
	if n < MinSize {
		return nil, fmt.Errorf("ring needs at least %d utensils, got %d", MinSize, n)
	}
	if sink == nil {
		sink = trace.Discard
	}
	r := &Ring{resources: make([]*Resource, n)}
	for i := range r.resources {
		r.resources[i] = newResource(i, sink)
	}
	return r, nil
}

// Len returns the number of utensils.
func (r *Ring) Len() int { return len(r.resources) }

// Resource returns utensil i.
func (r *Ring) Resource(i int) *Resource { return r.resources[i] }

// Pair returns the utensils agent needs, in acquisition order. For the
// wraparound agent N-1 this is (0, N-1), not (N-1, 0).
func (r *Ring) Pair(agent int) Pair {
	return PairFor(agent, len(r.resources))
}

// PairFor computes the ordered pair of agent in a ring of n utensils.
func PairFor(agent, n int) Pair {
	a, b := agent, (agent+1)%n
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Acquire blocks until agent holds utensil idx.
func (r *Ring) Acquire(agent, idx int) error {
	return r.resources[idx].Acquire(agent)
}

// Release returns utensil idx.
func (r *Ring) Release(agent, idx int) error {
	return r.resources[idx].Release(agent)
}
