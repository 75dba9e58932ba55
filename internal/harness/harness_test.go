package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dining/internal/store"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_ExampleScenariosPass(t *testing.T) {
	for _, name := range []string{"two_agents", "five_agents", "tiny_durations", "one_agent"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(context.Background(), loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Repeat(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "five_agents"))
	require.NoError(t, err)
	require.Len(t, result.Runs, 3)
	assert.Equal(t, []string{"five-agents-1", "five-agents-2", "five-agents-3"}, result.RunIDs)
}

func TestRun_FailingAssertion(t *testing.T) {
	s := loadTestScenario(t, "two_agents")
	s.Assertions = []Assertion{
		{Type: AssertTotalMeals, Count: 1_000_000_000},
		{Type: AssertStopCause, Cause: "requested"},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: total_meals")
	assert.Contains(t, result.Errors[0], "Expected: at least 1000000000 meals")
	assert.Contains(t, result.Errors[1], "Actual: stopped by duration")
}

func TestRun_UnexpectedConfigError(t *testing.T) {
	s := loadTestScenario(t, "one_agent")
	s.Assertions = []Assertion{{Type: AssertCorrect}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "agents must be at least 2")
	assert.Empty(t, result.Runs)
}

func TestRun_ExpectedConfigErrorButRunStarted(t *testing.T) {
	s := loadTestScenario(t, "two_agents")
	s.Assertions = []Assertion{{Type: AssertConfigError}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "configuration rejected")
}

func TestRun_MinMealsUnknownAgent(t *testing.T) {
	s := loadTestScenario(t, "two_agents")
	agent := 5
	s.Assertions = []Assertion{{Type: AssertMinMeals, Agent: &agent, Count: 1}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "no agent 5")
}

func TestRun_RecordsToStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer st.Close()

	result, err := Run(context.Background(), loadTestScenario(t, "five_agents"), WithStore(st))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, run := range runs {
		assert.Equal(t, store.StatusOK, run.Status)
		assert.Contains(t, result.RunIDs, run.ID)
	}
}

func TestRun_FixedRunIDTwiceInOneStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer st.Close()

	scenario := loadTestScenario(t, "two_agents")
	scenario.RunID = "pair"

	_, err = Run(context.Background(), scenario, WithStore(st))
	require.NoError(t, err)

	_, err = Run(context.Background(), scenario, WithStore(st))
	require.ErrorIs(t, err, store.ErrRunExists)

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "pair-1", runs[0].ID)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, loadTestScenario(t, "two_agents"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertMaxElapsed, RunID: "r1", Expected: "finished within 1s", Actual: "took 2s"}
	assert.Equal(t,
		"Assertion failed: max_elapsed (run r1)\n  Expected: finished within 1s\n  Actual: took 2s",
		err.Error())
}
