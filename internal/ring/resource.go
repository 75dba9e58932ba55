package ring

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/dining/internal/trace"
)

// Free is the holder value of an unheld utensil.
const Free = -1

// Resource is a single utensil.
//
// The mutex provides the exclusion; holder mirrors it so that misuse can be
// detected without blocking and so that the exclusion itself is checked on
// every grant.
type Resource struct {
	id     int
	mu     sync.Mutex
	holder atomic.Int64
	sink   trace.Sink
}

func newResource(id int, sink trace.Sink) *Resource {
	r := &Resource{id: id, sink: sink}
	r.holder.Store(Free)
	return r
}

// ID returns the utensil's index in the ring.
func (r *Resource) ID() int { return r.id }

// Holder returns the index of the agent holding the utensil, or Free.
func (r *Resource) Holder() int { return int(r.holder.Load()) }

// Acquire blocks until the utensil is held by agent. There is no timeout.
//
// Only agent itself can make holder equal to agent, so the reacquire check
// is race-free for the caller.
func (r *Resource) Acquire(agent int) error {
	if r.Holder() == agent {
		return &FaultError{Code: ErrCodeReacquire, Agent: agent, Resource: r.id, Holder: agent}
	}
	r.mu.Lock()
	if !r.holder.CompareAndSwap(Free, int64(agent)) {
		holder := r.Holder()
		r.mu.Unlock()
		return &FaultError{Code: ErrCodeMutualExclusion, Agent: agent, Resource: r.id, Holder: holder}
	}
	// A panicking sink must not leave the utensil locked forever.
	defer func() {
		if p := recover(); p != nil {
			r.holder.Store(Free)
			r.mu.Unlock()
			panic(p)
		}
	}()
	r.sink.Emit(trace.Acquire(agent, r.id))
	return nil
}

// Release returns the utensil to the table. Only the holder may release.
func (r *Resource) Release(agent int) error {
	if holder := r.Holder(); holder != agent {
		return &FaultError{Code: ErrCodeForeignRelease, Agent: agent, Resource: r.id, Holder: holder}
	}
	defer func() {
		r.holder.Store(Free)
		r.mu.Unlock()
	}()
	r.sink.Emit(trace.Release(agent, r.id))
	return nil
}
