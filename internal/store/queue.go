package store

import (
	"sync"

	"github.com/roach88/dining/internal/trace"
)

// eventQueue is a thread-safe FIFO of events waiting to be written.
//
// The queue is unbounded so that Enqueue never blocks: it is called on agent
// goroutines, often while the agent holds a utensil, and disk latency must
// not leak into the simulation.
//
// The queue uses a channel for signaling to enable select-based waiting in
// the writer loop.
type eventQueue struct {
	mu     sync.Mutex
	events []trace.Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]trace.Event, 0, 256),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e trace.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TakeBatch removes and returns up to limit events from the front.
// Returns nil if the queue is empty.
func (q *eventQueue) TakeBatch(limit int) []trace.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(len(q.events), limit)
	if n == 0 {
		return nil
	}
	batch := make([]trace.Event, n)
	copy(batch, q.events[:n])

	if n == len(q.events) {
		// Reset to the original backing array rather than creeping forward
		q.events = q.events[:0]
	} else {
		q.events = q.events[n:]
	}
	return batch
}

// Wait returns a channel that signals when events may be available.
// The channel is closed once the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Drained reports whether the queue is closed and empty.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.events) == 0
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes the writer by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
