package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/dining/internal/ring"
	"github.com/roach88/dining/internal/trace"
)

// ErrAlreadyRun is returned by a second call to Engine.Run.
var ErrAlreadyRun = errors.New("engine has already run")

// StopCause records why a run's stop signal was raised.
type StopCause string

const (
	// StopDuration is the normal end of a run.
	StopDuration StopCause = "duration"
	// StopRequested means Engine.Stop was called before the duration elapsed.
	StopRequested StopCause = "requested"
	// StopCanceled means the caller's context was canceled.
	StopCanceled StopCause = "canceled"
	// StopFault means an agent faulted.
	StopFault StopCause = "fault"
)

// RunSummary describes a finished run.
type RunSummary struct {
	RunID    string        `json:"run_id"`
	Agents   int           `json:"agents"`
	Seed     uint64        `json:"seed"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Elapsed  time.Duration `json:"elapsed"`
	Meals    []int64       `json:"meals"`
	Events   int64         `json:"events"`
	Cause    StopCause     `json:"cause"`
}

// TotalMeals sums Meals.
func (s *RunSummary) TotalMeals() int64 {
	var total int64
	for _, m := range s.Meals {
		total += m
	}
	return total
}

// Engine coordinates one simulation run.
//
// Thread-safety model:
//   - Run(): call at most once
//   - Stop(): safe from any goroutine, any number of times, before,
//     during or after Run
type Engine struct {
	cfg    Config
	sink   trace.Sink
	ids    RunIDGenerator
	now    func() time.Time
	logger *slog.Logger
	stop   *StopSignal
	ran    atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets where events go. Defaults to trace.Discard.
func WithSink(s trace.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithRunIDGenerator overrides the UUIDv7 run ID generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNow overrides the wall clock used for event timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New validates cfg and creates an Engine. An invalid configuration is
// rejected with a *ConfigError; nothing is started.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		sink:   trace.Discard,
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
		stop:   NewStopSignal(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run is shorthand for New followed by Engine.Run.
func Run(ctx context.Context, cfg Config, opts ...Option) (*RunSummary, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx)
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Stop raises the stop signal early. Calling it more than once, or after
// the run has finished, has no further effect.
func (e *Engine) Stop() {
	if e.stop.Stop() {
		e.logger.Debug("stop requested")
	}
}

// run is the state that exists only for the duration of one Run call.
type run struct {
	id     string
	cfg    Config
	seed   uint64
	table  *ring.Ring
	clock  *Clock
	stop   *StopSignal
	sink   trace.Sink
	now    func() time.Time
	logger *slog.Logger
}

// emit stamps and forwards an event. It is called on agent goroutines.
func (r *run) emit(ev trace.Event) {
	ev.Seq = r.clock.Next()
	ev.RunID = r.id
	ev.At = r.now()
	r.sink.Emit(ev)
}

// Run executes the simulation: it starts every agent, waits for the run
// duration, raises the stop signal and joins all agents.
//
// The summary is returned even when err is non-nil, describing as much of
// the run as was observed. A faulted agent yields a *FaultError; so does a
// shutdown that exceeds the grace period. Cancelling ctx stops the run
// early but is not an error.
func (e *Engine) Run(ctx context.Context) (*RunSummary, error) {
	if !e.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	seed := e.cfg.Seed
	if seed == 0 {
		seed = uint64(e.now().UnixNano())
	}
	r := &run{
		id:    e.ids.Generate(),
		cfg:   e.cfg,
		seed:  seed,
		clock: NewClock(),
		stop:  e.stop,
		sink:  e.sink,
		now:   e.now,
	}
	r.logger = e.logger.With("run_id", r.id)
	table, err := ring.New(e.cfg.Agents, trace.SinkFunc(r.emit))
	if err != nil {
		return nil, err
	}
	r.table = table

	agents := make([]*agent, e.cfg.Agents)
	for i := range agents {
		agents[i] = newAgent(i, r)
	}

	summary := &RunSummary{
		RunID:   r.id,
		Agents:  e.cfg.Agents,
		Seed:    seed,
		Started: e.now(),
	}
	r.logger.Info("run starting",
		"agents", e.cfg.Agents,
		"duration", e.cfg.RunDuration,
		"think_max", e.cfg.ThinkMax,
		"eat_max", e.cfg.EatMax,
		"seed", seed,
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range agents {
		g.Go(a.run)
	}

	timer := time.NewTimer(e.cfg.RunDuration)
	select {
	case <-timer.C:
		summary.Cause = StopDuration
	case <-e.stop.Done():
		summary.Cause = StopRequested
	case <-gctx.Done():
		if ctx.Err() != nil {
			summary.Cause = StopCanceled
		} else {
			summary.Cause = StopFault
		}
	}
	timer.Stop()
	e.stop.Stop()
	r.logger.Info("stop signal raised", "cause", summary.Cause)

	joined := make(chan error, 1)
	go func() { joined <- g.Wait() }()

	grace := e.cfg.GracePeriod()
	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	var runErr error
	select {
	case runErr = <-joined:
	case <-graceTimer.C:
		var running []int
		for _, a := range agents {
			if !a.done.Load() {
				running = append(running, a.id)
			}
		}
		runErr = newShutdownTimeout(grace, running)
	}

	summary.Finished = e.now()
	summary.Elapsed = summary.Finished.Sub(summary.Started)
	summary.Events = r.clock.Current()
	summary.Meals = make([]int64, len(agents))
	for i, a := range agents {
		summary.Meals[i] = a.meals.Load()
	}
	if runErr != nil {
		if summary.Cause != StopCanceled {
			summary.Cause = StopFault
		}
		r.logger.Error("run failed", "error", runErr)
		return summary, runErr
	}

	r.logger.Info("run finished",
		"elapsed", summary.Elapsed,
		"meals", summary.TotalMeals(),
		"events", summary.Events,
	)
	return summary, nil
}
