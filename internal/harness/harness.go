package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dining/internal/engine"
	"github.com/roach88/dining/internal/runner"
	"github.com/roach88/dining/internal/store"
)

// Harness executes scenarios.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithStore records every scenario run in st.
func WithStore(st *store.Store) Option {
	return func(h *Harness) { h.store = st }
}

// WithLogger sets the logger for the runs. Defaults to discarding logs.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default Harness.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	return New(opts...).Run(ctx, scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Run the configuration Repeat times (at least once)
//  2. Evaluate every assertion against every run
//  3. Return result with pass/fail and errors
//
// A run that faults fails the scenario. The returned error is reserved for
// failures outside the scenario's control, such as the trace store or a
// canceled context.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult(scenario.Name)
	cfg := scenario.Config.Engine()
	wantConfigError := len(scenario.Assertions) == 1 && scenario.Assertions[0].Type == AssertConfigError

	repeat := max(scenario.Repeat, 1)
	for i := 1; i <= repeat; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		opts := runner.Options{Logger: h.logger, Store: h.store}
		if scenario.RunID != "" {
			opts.RunID = fmt.Sprintf("%s-%d", scenario.RunID, i)
		}

		res, err := runner.Execute(ctx, cfg, opts)
		if res == nil {
			if engine.IsConfigError(err) {
				if !wantConfigError {
					result.AddError(fmt.Sprintf("configuration rejected: %v", err))
				}
				// The configuration does not change between repetitions.
				return result, nil
			}
			return nil, fmt.Errorf("scenario %s run %d: %w", scenario.Name, i, err)
		}

		result.Runs = append(result.Runs, res)
		result.RunIDs = append(result.RunIDs, res.Summary.RunID)
		if err != nil {
			result.AddError(fmt.Sprintf("run %s failed: %v", res.Summary.RunID, err))
		}
		for _, msg := range EvaluateAssertions(res, scenario.Assertions) {
			result.AddError(msg)
		}
	}

	return result, nil
}
