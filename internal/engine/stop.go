package engine

import (
	"sync"
	"sync/atomic"
)

// StopSignal is a one-shot, broadcast cancellation flag.
//
// Stopped is a cheap atomic read for the safe points of the agent loop;
// Done lets sleeping agents wake early. Stop may be called any number of
// times from any goroutine.
type StopSignal struct {
	once    sync.Once
	stopped atomic.Bool
	done    chan struct{}
}

// NewStopSignal creates an unset signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Stop sets the signal. It returns true only for the call that set it.
func (s *StopSignal) Stop() bool {
	first := false
	s.once.Do(func() {
		s.stopped.Store(true)
		close(s.done)
		first = true
	})
	return first
}

// Stopped reports whether Stop has been called.
func (s *StopSignal) Stopped() bool { return s.stopped.Load() }

// Done is closed once Stop has been called.
func (s *StopSignal) Done() <-chan struct{} { return s.done }
