package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/dining/internal/analysis"
	"github.com/roach88/dining/internal/config"
	"github.com/roach88/dining/internal/engine"
	"github.com/roach88/dining/internal/metrics"
	"github.com/roach88/dining/internal/runner"
	"github.com/roach88/dining/internal/store"
	"github.com/roach88/dining/internal/trace"
)

// RunOptions holds flags for the run command. The simulation parameters
// themselves are bound to viper, see config.BindFlags.
type RunOptions struct {
	*RootOptions
	ConfigFile string
	Database   string
	Report     bool
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Summary *engine.RunSummary `json:"summary"`
	Metrics metrics.Summary    `json:"metrics"`
	Report  *analysis.Report   `json:"report"`
	Correct bool               `json:"correct"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run one simulation and report meals per agent.

Parameters come from built-in defaults, then the --config file, then
DINING_* environment variables, then flags. Invalid values are rejected,
never clamped.

With --db every event is recorded to a SQLite trace store and can be
re-analysed with "dining report". Ctrl-C stops the run early; agents
finish their current meal first.

Exit codes:
  0 - Run finished and its trace is correct
  1 - Agent fault, shutdown timeout or failed trace analysis
  2 - Invalid configuration or command error

Examples:
  dining run
  dining run -n 8 -d 10 -t 50 -e 50
  dining run --db ./dining.db --report
  DINING_AGENTS=3 dining run --config ./dining.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	d := config.Default()
	fs := cmd.Flags()
	fs.IntP(config.KeyAgents, "n", d.Agents, "number of agents and utensils (>= 2)")
	fs.IntP(config.KeyDuration, "d", d.Duration, "run duration in seconds")
	fs.IntP(config.KeyThink, "t", d.Think, "maximum thinking time in milliseconds")
	fs.IntP(config.KeyEat, "e", d.Eat, "maximum eating time in milliseconds")
	fs.Uint64(config.KeySeed, d.Seed, "random seed (0 derives one from the clock)")
	fs.Int(config.KeyGrace, d.Grace, "shutdown bound in seconds (0 derives one from --eat)")
	fs.StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	fs.StringVar(&opts.Database, "db", "", "record the run to this SQLite database")
	fs.BoolVar(&opts.Report, "report", false, "print the full trace analysis")

	return cmd
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return WrapExitError(ExitCommandError, "failed to bind flags", err)
	}
	cfg, err := config.Load(v, opts.ConfigFile)
	if err != nil {
		_ = out.Error(ErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	var st *store.Store
	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	collector := metrics.NewCollector()
	defer func() { _ = collector.Shutdown(context.Background()) }()
	m, err := metrics.NewMetrics(collector.Provider())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to set up metrics", err)
	}

	ctx, stop := withSignals(cmd.Context(), logger)
	defer stop()

	res, runErr := runner.Execute(ctx, cfg.Engine(), runner.Options{
		Logger:  logger,
		Store:   st,
		Metrics: m,
		Sinks:   []trace.Sink{trace.NewLogSink(logger)},
	})
	if res == nil {
		if engine.IsConfigError(runErr) {
			_ = out.Error(ErrorCode(runErr), runErr.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid configuration", runErr)
		}
		return WrapExitError(ExitFailure, "run did not start", runErr)
	}

	ms, err := collector.Collect(context.Background())
	if err != nil {
		logger.Warn("could not read metrics", "error", err)
	}

	output := RunOutput{
		Summary: res.Summary,
		Metrics: ms,
		Report:  res.Report,
		Correct: res.Report.OK(),
	}
	if out.IsJSON() {
		if runErr != nil {
			err = out.Error(ErrorCode(runErr), runErr.Error(), output)
		} else {
			err = out.Success(output)
		}
	} else {
		err = writeRunText(cmd.OutOrStdout(), output, opts.Report)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	if !output.Correct {
		return NewExitError(ExitFailure,
			fmt.Sprintf("trace analysis found %d problems", len(res.Report.Findings)))
	}
	return nil
}

// withSignals derives a context that is canceled on SIGINT or SIGTERM.
// The returned func releases the signal handler.
func withSignals(parent context.Context, logger *slog.Logger) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func writeRunText(w io.Writer, o RunOutput, full bool) error {
	p := message.NewPrinter(language.English)
	s := o.Summary

	p.Fprintf(w, "Run %s stopped (%s) after %s\n", s.RunID, s.Cause, s.Elapsed.Round(time.Millisecond))
	p.Fprintf(w, "agents: %d, events: %d\n", s.Agents, s.Events)
	fmt.Fprintf(w, "seed: %d\n", s.Seed)
	p.Fprintf(w, "meals: %d total\n", s.TotalMeals())
	for i, meals := range s.Meals {
		p.Fprintf(w, "  agent %d: %d\n", i, meals)
	}
	if o.Metrics.Waits > 0 {
		p.Fprintf(w, "hungry wait: mean %s, max %s over %d waits\n",
			o.Metrics.MeanWait, o.Metrics.MaxWait, o.Metrics.Waits)
	}

	if full {
		fmt.Fprintln(w)
		return o.Report.WriteText(w)
	}
	if o.Correct {
		_, err := fmt.Fprintln(w, "Simulation correct")
		return err
	}
	p.Fprintf(w, "Simulation INCORRECT: %d findings\n", len(o.Report.Findings))
	for _, f := range o.Report.Findings {
		fmt.Fprintf(w, "  %s\n", f)
	}
	return nil
}
