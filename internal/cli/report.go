package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dining/internal/analysis"
	"github.com/roach88/dining/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Re-analyse a recorded run",
		Long: `Replay the recorded events of a run and check them again.

The analysis reports meals per agent and any overlapping use of a
utensil, overlapping meals of neighbours, out-of-order acquisitions,
illegal state transitions, and agents that did not stop cleanly.

Exit codes:
  0 - Trace is correct
  1 - Trace analysis found problems
  2 - Command error (missing database, unknown run)

Examples:
  dining report --db ./dining.db
  dining report --db ./dining.db --run 0192f6c4-...
  dining report --db ./dining.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (defaults to the latest run)")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	out := formatter(opts.RootOptions, cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := lookupRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}
	out.VerboseLog("analysing run %s (%d agents, status %s)", run.ID, run.Agents, run.Status)

	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read events", err)
	}

	report := analysis.Analyze(events, run.Agents)
	report.RunID = run.ID

	if out.IsJSON() {
		err = report.WriteJSON(cmd.OutOrStdout())
	} else {
		err = report.WriteText(cmd.OutOrStdout())
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if !report.OK() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("trace analysis found %d problems", len(report.Findings)))
	}
	return nil
}

// openExistingStore opens a trace store for reading. Unlike store.Open it
// refuses to create a new database.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// lookupRun reads the run with the given ID, or the latest run if id is
// empty.
func lookupRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	var (
		run store.Run
		err error
	)
	if id == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		if id == "" {
			return store.Run{}, NewExitError(ExitCommandError, "no runs recorded")
		}
		return store.Run{}, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return store.Run{}, WrapExitError(ExitFailure, "failed to read run", err)
	}
	return run, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
