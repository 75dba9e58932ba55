// Package runner executes one simulation with everything that surrounds
// it: the in-memory trace for analysis, the optional trace store, metrics
// and any extra sinks. The CLI and the scenario harness both run
// simulations through Execute.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/dining/internal/analysis"
	"github.com/roach88/dining/internal/engine"
	"github.com/roach88/dining/internal/metrics"
	"github.com/roach88/dining/internal/store"
	"github.com/roach88/dining/internal/trace"
)

// flushTimeout bounds how long Execute waits for the trace store to catch
// up after the run.
const flushTimeout = 30 * time.Second

// Options configures Execute. The zero value runs without persistence or
// metrics and logs to slog.Default().
type Options struct {
	Logger  *slog.Logger
	Store   *store.Store
	Metrics *metrics.Metrics
	// Sinks receive every event in addition to the built-in ones.
	Sinks []trace.Sink
	// RunID fixes the run ID; empty generates a UUIDv7.
	RunID string
}

// Result is everything known about a run once it has finished.
type Result struct {
	Summary *engine.RunSummary
	Report  *analysis.Report
	Events  []trace.Event
}

// Status maps the run error onto the status recorded in the store.
func Status(runErr error) store.Status {
	if runErr != nil {
		return store.StatusFault
	}
	return store.StatusOK
}

// Execute runs one simulation.
//
// A nil Result means the run never started, e.g. because cfg is invalid
// (a *engine.ConfigError) or the store rejected the run. Otherwise the
// Result is complete even when the error is not nil: the error is the run's
// fault, a failure to persist the trace, or both.
func Execute(ctx context.Context, cfg engine.Config, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := opts.RunID
	if runID == "" {
		runID = engine.UUIDv7Generator{}.Generate()
	}

	recorder := trace.NewRecorder()
	sinks := []trace.Sink{recorder}
	if opts.Metrics != nil {
		sinks = append(sinks, opts.Metrics)
	}
	sinks = append(sinks, opts.Sinks...)

	var storeRec *store.Recorder
	if opts.Store != nil {
		storeRec = store.NewRecorder(opts.Store, store.WithRecorderLogger(logger))
		sinks = append(sinks, storeRec)
	}

	eng, err := engine.New(cfg,
		engine.WithSink(trace.Multi(sinks...)),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(runID)),
		engine.WithLogger(logger),
	)
	if err != nil {
		closeQuietly(storeRec)
		return nil, err
	}

	if opts.Store != nil {
		err := opts.Store.CreateRun(ctx, store.Run{
			ID:          runID,
			Agents:      cfg.Agents,
			RunDuration: cfg.RunDuration,
			ThinkMax:    cfg.ThinkMax,
			EatMax:      cfg.EatMax,
			Seed:        cfg.Seed,
			Started:     time.Now(),
		})
		if err != nil {
			closeQuietly(storeRec)
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	summary, runErr := eng.Run(ctx)
	if summary == nil {
		// Only a second Run on the same engine gets here.
		closeQuietly(storeRec)
		return nil, runErr
	}

	var storeErr error
	if storeRec != nil {
		storeErr = persist(opts.Store, storeRec, summary, runErr)
	}
	if opts.Metrics != nil {
		opts.Metrics.RunFinished(context.Background(), string(Status(runErr)), summary.Elapsed)
	}

	events := recorder.Events()
	report := analysis.Analyze(events, cfg.Agents)
	report.RunID = summary.RunID
	if !report.OK() {
		logger.Warn("trace analysis found problems", "run_id", summary.RunID, "findings", len(report.Findings))
	}

	return &Result{Summary: summary, Report: report, Events: events}, errors.Join(runErr, storeErr)
}

// persist flushes the store recorder and completes the run record. The
// flush gets its own deadline so that a canceled run is still recorded.
func persist(st *store.Store, rec *store.Recorder, summary *engine.RunSummary, runErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	flushErr := rec.Close(ctx)
	if flushErr != nil {
		flushErr = fmt.Errorf("flush trace: %w", flushErr)
	}

	out := store.Outcome{
		Finished: summary.Finished,
		Status:   Status(runErr),
		Cause:    string(summary.Cause),
		Meals:    summary.Meals,
		Events:   summary.Events,
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if err := st.FinishRun(ctx, summary.RunID, summary.Seed, out); err != nil {
		return errors.Join(flushErr, fmt.Errorf("finish run: %w", err))
	}
	return flushErr
}

func closeQuietly(rec *store.Recorder) {
	if rec != nil {
		_ = rec.Close(context.Background())
	}
}
