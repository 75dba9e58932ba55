package engine

import (
	"fmt"
	"math"
	"time"
)

// Config is the immutable configuration of one run.
type Config struct {
	// Agents is the number of agents and utensils. At least 2.
	Agents int

	// RunDuration is how long agents run before the stop signal.
	RunDuration time.Duration

	// ThinkMax and EatMax bound the uniformly random length of each
	// thinking and eating episode, which is drawn from (0, max].
	ThinkMax time.Duration
	EatMax   time.Duration

	// Seed makes the per-agent random sources reproducible. Zero picks a
	// seed from the wall clock. Reproducible durations do not make the
	// interleaving reproducible.
	Seed uint64

	// Grace bounds how long Run waits for agents after the stop signal.
	// Zero means DefaultGrace(EatMax).
	Grace time.Duration
}

// Validate checks every constraint and reports all failures at once.
func (c Config) Validate() error {
	var problems []string
	if c.Agents < 2 {
		problems = append(problems, fmt.Sprintf("agents must be at least 2, got %d", c.Agents))
	}
	if c.RunDuration <= 0 {
		problems = append(problems, fmt.Sprintf("run duration must be positive, got %s", c.RunDuration))
	}
	if c.ThinkMax <= 0 {
		problems = append(problems, fmt.Sprintf("think max must be positive, got %s", c.ThinkMax))
	}
	if c.EatMax <= 0 {
		problems = append(problems, fmt.Sprintf("eat max must be positive, got %s", c.EatMax))
	}
	if c.Grace < 0 {
		problems = append(problems, fmt.Sprintf("grace must not be negative, got %s", c.Grace))
	}
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// GracePeriod returns the effective shutdown bound.
func (c Config) GracePeriod() time.Duration {
	if c.Grace > 0 {
		return c.Grace
	}
	return DefaultGrace(c.EatMax)
}

// DefaultGrace is the shutdown bound used when none is configured. After
// the stop signal no agent starts a new meal, so draining takes at most
// one eating episode plus scheduling slack. The result saturates at the
// largest time.Duration instead of overflowing.
func DefaultGrace(eatMax time.Duration) time.Duration {
	const slack = 5 * time.Second
	if eatMax > (math.MaxInt64-slack)/2 {
		return math.MaxInt64
	}
	return 2*eatMax + slack
}
