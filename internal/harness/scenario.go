package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dining/internal/analysis"
	"github.com/roach88/dining/internal/engine"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the run configuration.
	Config RunConfig `yaml:"config"`

	// Repeat runs the scenario this many times; every run must pass.
	// Zero means once.
	Repeat int `yaml:"repeat,omitempty"`

	// RunID is an optional fixed run ID prefix for traceability in the
	// trace store. Runs are numbered: <run_id>-1, <run_id>-2, ...
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate every run.
	Assertions []Assertion `yaml:"assertions"`
}

// RunConfig mirrors engine.Config with YAML duration strings.
type RunConfig struct {
	Agents   int           `yaml:"agents"`
	Duration time.Duration `yaml:"duration"`
	Think    time.Duration `yaml:"think"`
	Eat      time.Duration `yaml:"eat"`
	Seed     uint64        `yaml:"seed,omitempty"`
	Grace    time.Duration `yaml:"grace,omitempty"`
}

// Engine converts c into the engine's configuration.
func (c RunConfig) Engine() engine.Config {
	return engine.Config{
		Agents:      c.Agents,
		RunDuration: c.Duration,
		ThinkMax:    c.Think,
		EatMax:      c.Eat,
		Seed:        c.Seed,
		Grace:       c.Grace,
	}
}

// Assertion validates one run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the threshold (min_meals, total_meals) or exact number
	// (finding_count).
	Count int `yaml:"count,omitempty"`

	// Agent restricts min_meals to one agent.
	Agent *int `yaml:"agent,omitempty"`

	// Within is the elapsed-time bound (max_elapsed).
	Within time.Duration `yaml:"within,omitempty"`

	// Cause is the expected stop cause (stop_cause).
	Cause string `yaml:"cause,omitempty"`

	// Kind is the finding kind to count (finding_count).
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertCorrect      = "correct"
	AssertMinMeals     = "min_meals"
	AssertTotalMeals   = "total_meals"
	AssertMaxElapsed   = "max_elapsed"
	AssertStopCause    = "stop_cause"
	AssertFindingCount = "finding_count"
	AssertConfigError  = "config_error"
)

var findingKinds = map[string]bool{
	string(analysis.UtensilOverlap):    true,
	string(analysis.Reacquire):         true,
	string(analysis.ForeignRelease):    true,
	string(analysis.NeighbourOverlap):  true,
	string(analysis.AcquisitionOrder):  true,
	string(analysis.IllegalTransition): true,
	string(analysis.OutOfRange):        true,
	string(analysis.NotStopped):        true,
	string(analysis.HoldingAtEnd):      true,
}

var stopCauses = map[string]bool{
	string(engine.StopDuration):  true,
	string(engine.StopRequested): true,
	string(engine.StopCanceled):  true,
	string(engine.StopFault):     true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid. The
// run configuration itself is not validated here: rejecting it is the
// engine's job, and config_error scenarios depend on that.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Repeat < 0 {
		return fmt.Errorf("repeat must not be negative, got %d", s.Repeat)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
		if assertion.Type == AssertConfigError && len(s.Assertions) > 1 {
			return fmt.Errorf("assertions[%d]: config_error cannot be combined with other assertions", i)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCorrect, AssertConfigError:
	case AssertMinMeals:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must not be negative for min_meals", index)
		}
		if a.Agent != nil && *a.Agent < 0 {
			return fmt.Errorf("assertions[%d]: agent must not be negative", index)
		}
	case AssertTotalMeals:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must not be negative for total_meals", index)
		}
	case AssertMaxElapsed:
		if a.Within <= 0 {
			return fmt.Errorf("assertions[%d]: within must be positive for max_elapsed", index)
		}
	case AssertStopCause:
		if !stopCauses[a.Cause] {
			return fmt.Errorf("assertions[%d]: unknown stop cause %q", index, a.Cause)
		}
	case AssertFindingCount:
		if !findingKinds[a.Kind] {
			return fmt.Errorf("assertions[%d]: unknown finding kind %q", index, a.Kind)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must not be negative for finding_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
