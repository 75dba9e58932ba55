package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dining/internal/store"
	"github.com/roach88/dining/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Agent    int      // optional - filter to one agent, -1 for all
	Kinds    []string // optional - transition, acquire, release
	FromSeq  int64
	ToSeq    int64
	Limit    int
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string        `json:"run_id"`
	Agents   int           `json:"agents"`
	Timeline []trace.Event `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the timeline.
type TraceStats struct {
	TotalEvents  int  `json:"total_events"`
	Transitions  int  `json:"transitions"`
	Acquisitions int  `json:"acquisitions"`
	Releases     int  `json:"releases"`
	Meals        int  `json:"meals"`
	IsComplete   bool `json:"is_complete"` // every agent in the timeline ended stopped
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the event timeline of a recorded run",
		Long: `Show the recorded events of a run in emission order.

Each line is one event: a state transition, or a utensil being taken
or put back. Offsets are relative to the start of the run.

Examples:
  dining trace --db ./dining.db
  dining trace --db ./dining.db --run 0192f6c4-... --agent 2
  dining trace --db ./dining.db --kind acquire --kind release --limit 50
  dining trace --db ./dining.db --from 1000 --to 1200
  dining trace --db ./dining.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (defaults to the latest run)")
	cmd.Flags().IntVar(&opts.Agent, "agent", -1, "only show events of this agent")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only show events of these kinds (transition|acquire|release)")
	cmd.Flags().Int64Var(&opts.FromSeq, "from", 0, "first seq to show")
	cmd.Flags().Int64Var(&opts.ToSeq, "to", 0, "last seq to show")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many events")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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
	if opts.Agent >= run.Agents {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("agent %d out of range: run %s has %d agents", opts.Agent, run.ID, run.Agents))
	}

	filter := store.EventFilter{
		RunID:   run.ID,
		FromSeq: opts.FromSeq,
		ToSeq:   opts.ToSeq,
		Limit:   opts.Limit,
	}
	if opts.Agent >= 0 {
		filter.Agents = []int{opts.Agent}
	}
	for _, name := range opts.Kinds {
		kind, err := trace.ParseKind(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --kind", err)
		}
		filter.Kinds = append(filter.Kinds, kind)
	}

	events, err := st.QueryEvents(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query events", err)
	}

	result := buildTraceResult(run.ID, run.Agents, events)
	if out.IsJSON() {
		return out.Success(result)
	}
	return outputTraceText(cmd, result, run.Started)
}

// buildTraceResult counts the events of a timeline.
func buildTraceResult(runID string, agents int, events []trace.Event) TraceResult {
	result := TraceResult{
		RunID:    runID,
		Agents:   agents,
		Timeline: make([]trace.Event, 0, len(events)),
	}

	last := make(map[int]trace.State)
	for _, ev := range events {
		result.Timeline = append(result.Timeline, ev)
		switch ev.Kind {
		case trace.KindTransition:
			result.Stats.Transitions++
			last[ev.Agent] = ev.To
			if ev.To == trace.StateEating {
				result.Stats.Meals++
			}
		case trace.KindAcquire:
			result.Stats.Acquisitions++
		case trace.KindRelease:
			result.Stats.Releases++
		}
	}
	result.Stats.TotalEvents = len(result.Timeline)

	result.Stats.IsComplete = len(last) > 0
	for _, state := range last {
		if state != trace.StateStopped {
			result.Stats.IsComplete = false
		}
	}
	return result
}

func outputTraceText(cmd *cobra.Command, result TraceResult, start time.Time) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Run: %s (%d agents)\n", result.RunID, result.Agents)
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No events recorded.")
		return nil
	}

	fmt.Fprintln(w)
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "%12s  %s\n", ev.At.Sub(start), ev)
	}

	s := result.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Events: %d (%d transitions, %d acquisitions, %d releases)\n",
		s.TotalEvents, s.Transitions, s.Acquisitions, s.Releases)
	fmt.Fprintf(w, "Meals: %d\n", s.Meals)
	if s.IsComplete {
		fmt.Fprintln(w, "Status: complete")
	} else {
		fmt.Fprintln(w, "Status: incomplete")
	}
	return nil
}
