package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/dining/internal/trace"
)

// DefaultBatchSize is how many events the recorder writes per transaction.
const DefaultBatchSize = 512

// Recorder is a trace.Sink that persists events to a Store.
//
// Emit only enqueues; a single writer goroutine drains the queue and writes
// batches, each in its own transaction. Close must be called once the run
// has finished to flush what is still queued.
//
// Thread-safety model:
//   - Emit(): safe from any goroutine
//   - Close(): call once, after the last Emit
type Recorder struct {
	store  *Store
	queue  *eventQueue
	batch  int
	logger *slog.Logger

	written atomic.Int64
	dropped atomic.Int64

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBatchSize sets the number of events per write transaction.
func WithBatchSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithRecorderLogger sets the logger used to report write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder starts a recorder writing to s.
func NewRecorder(s *Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  s,
		queue:  newEventQueue(),
		batch:  DefaultBatchSize,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.writeLoop()
	return r
}

// Emit implements trace.Sink. Events emitted after Close are counted as
// dropped.
func (r *Recorder) Emit(ev trace.Event) {
	if !r.queue.Enqueue(ev) {
		r.dropped.Add(1)
	}
}

// Written returns how many events have been committed so far.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Dropped returns how many events were not persisted, either because they
// arrived after Close or because their batch failed to write.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Close stops accepting events and waits until everything queued has been
// written, or ctx is done. It returns the first write error, if any.
func (r *Recorder) Close(ctx context.Context) error {
	r.queue.Close()
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) writeLoop() {
	defer close(r.done)
	for {
		if batch := r.queue.TakeBatch(r.batch); batch != nil {
			r.write(batch)
			continue
		}
		if r.queue.Drained() {
			return
		}
		<-r.queue.Wait()
	}
}

// write persists one batch. After the first failure the recorder keeps
// draining so that producers never pile up, but stops writing.
func (r *Recorder) write(batch []trace.Event) {
	r.mu.Lock()
	failed := r.err != nil
	r.mu.Unlock()
	if failed {
		r.dropped.Add(int64(len(batch)))
		return
	}

	if err := r.store.WriteEvents(context.Background(), batch); err != nil {
		r.logger.Error("trace store write failed", "events", len(batch), "error", err)
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		r.dropped.Add(int64(len(batch)))
		return
	}
	r.written.Add(int64(len(batch)))
}
