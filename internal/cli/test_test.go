package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: pair
config:
  agents: 2
  duration: 200ms
  think: 1ms
  eat: 1ms
assertions:
  - type: correct
  - type: stop_cause
    cause: duration
`

const failingScenario = `name: impossible
config:
  agents: 2
  duration: 200ms
  think: 1ms
  eat: 1ms
assertions:
  - type: max_elapsed
    within: 1ms
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommand_Passing(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"pair.yaml": passingScenario, "notes.txt": "ignored"})

	stdout, _, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ pair")
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Failing(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"pair.yaml":       passingScenario,
		"impossible.yaml": failingScenario,
	})

	stdout, _, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TEST_FAILED", resp.Error.Code)
}

func TestTestCommand_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"pair.yaml":       passingScenario,
		"impossible.yaml": failingScenario,
	})

	stdout, _, err := execute(t, "test", dir, "--filter", "pa*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
	assert.NotContains(t, stdout, "impossible")
}

func TestTestCommand_LoadError(t *testing.T) {
	path := writeFile(t, "broken.yaml", "name: broken\nconfig:\n  agents: [\n")

	stdout, _, err := execute(t, "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "Load error")
}

func TestTestCommand_RecordsRuns(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"pair.yaml": passingScenario})
	db := filepath.Join(t.TempDir(), "scenarios.db")

	_, _, err := execute(t, "test", dir, "--db", db)
	require.NoError(t, err)

	stdout, _, err := execute(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok")
}

func TestTestCommand_MissingPath(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_ExampleScenarios(t *testing.T) {
	stdout, _, err := execute(t, "test", "../harness/testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ two_agents")
	assert.Contains(t, stdout, "✓ one_agent")
}
