package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/dining/internal/analysis"
	"github.com/roach88/dining/internal/runner"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	RunID    string // The run that failed it
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (run %s)\n", e.Type, e.RunID)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

func assertCorrect(res *runner.Result) error {
	if res.Report.OK() {
		return nil
	}
	findings := make([]string, 0, len(res.Report.Findings))
	for _, f := range res.Report.Findings {
		findings = append(findings, f.String())
	}
	return &AssertionError{
		Type:     AssertCorrect,
		RunID:    res.Summary.RunID,
		Expected: "no findings",
		Actual:   strings.Join(findings, "; "),
	}
}

func assertMinMeals(res *runner.Result, a Assertion) error {
	meals := res.Summary.Meals
	if a.Agent != nil {
		if *a.Agent >= len(meals) {
			return fmt.Errorf("min_meals: no agent %d in a run of %d", *a.Agent, len(meals))
		}
		if meals[*a.Agent] < int64(a.Count) {
			return &AssertionError{
				Type:     AssertMinMeals,
				RunID:    res.Summary.RunID,
				Expected: fmt.Sprintf("agent %d eats at least %d times", *a.Agent, a.Count),
				Actual:   fmt.Sprintf("%d meals", meals[*a.Agent]),
			}
		}
		return nil
	}
	var hungry []string
	for i, m := range meals {
		if m < int64(a.Count) {
			hungry = append(hungry, fmt.Sprintf("agent %d ate %d", i, m))
		}
	}
	if len(hungry) > 0 {
		return &AssertionError{
			Type:     AssertMinMeals,
			RunID:    res.Summary.RunID,
			Expected: fmt.Sprintf("every agent eats at least %d times", a.Count),
			Actual:   strings.Join(hungry, ", "),
		}
	}
	return nil
}

func assertTotalMeals(res *runner.Result, a Assertion) error {
	if total := res.Summary.TotalMeals(); total < int64(a.Count) {
		return &AssertionError{
			Type:     AssertTotalMeals,
			RunID:    res.Summary.RunID,
			Expected: fmt.Sprintf("at least %d meals", a.Count),
			Actual:   fmt.Sprintf("%d meals", total),
		}
	}
	return nil
}

func assertMaxElapsed(res *runner.Result, a Assertion) error {
	if res.Summary.Elapsed > a.Within {
		return &AssertionError{
			Type:     AssertMaxElapsed,
			RunID:    res.Summary.RunID,
			Expected: fmt.Sprintf("finished within %s", a.Within),
			Actual:   fmt.Sprintf("took %s", res.Summary.Elapsed),
		}
	}
	return nil
}

func assertStopCause(res *runner.Result, a Assertion) error {
	if string(res.Summary.Cause) != a.Cause {
		return &AssertionError{
			Type:     AssertStopCause,
			RunID:    res.Summary.RunID,
			Expected: fmt.Sprintf("stopped by %s", a.Cause),
			Actual:   fmt.Sprintf("stopped by %s", res.Summary.Cause),
		}
	}
	return nil
}

func assertFindingCount(res *runner.Result, a Assertion) error {
	if n := res.Report.Count(analysis.FindingKind(a.Kind)); n != a.Count {
		return &AssertionError{
			Type:     AssertFindingCount,
			RunID:    res.Summary.RunID,
			Expected: fmt.Sprintf("%d %s findings", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against one run.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(res *runner.Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCorrect:
			err = assertCorrect(res)
		case AssertMinMeals:
			err = assertMinMeals(res, assertion)
		case AssertTotalMeals:
			err = assertTotalMeals(res, assertion)
		case AssertMaxElapsed:
			err = assertMaxElapsed(res, assertion)
		case AssertStopCause:
			err = assertStopCause(res, assertion)
		case AssertFindingCount:
			err = assertFindingCount(res, assertion)
		case AssertConfigError:
			err = &AssertionError{
				Type:     AssertConfigError,
				RunID:    res.Summary.RunID,
				Expected: "configuration rejected",
				Actual:   "run started",
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
