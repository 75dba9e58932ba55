package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dining/internal/store"
)

func TestRunCommand_ShortRun(t *testing.T) {
	stdout, stderr, err := execute(t, "run", "-n", "3", "-d", "1", "-t", "1", "-e", "1", "--seed", "7")
	require.NoError(t, err)

	assert.Contains(t, stdout, "stopped (duration)")
	assert.Contains(t, stdout, "agents: 3,")
	assert.Contains(t, stdout, "seed: 7\n")
	assert.Contains(t, stdout, "agent 2:")
	assert.Contains(t, stdout, "Simulation correct")
	assert.Contains(t, stderr, "run starting")
}

func TestRunCommand_RecordsToDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "dining.db")
	_, _, err := execute(t, "run", "-n", "2", "-d", "1", "-t", "1", "-e", "1", "--db", db)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.StatusOK, run.Status)
	assert.Equal(t, 2, run.Agents)
	assert.NotZero(t, run.Seed)

	n, err := st.CountEvents(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Events, n)

	// The recorded run re-analyses cleanly.
	stdout, _, err := execute(t, "report", "--db", db, "--run", run.ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Simulation correct")
}

func TestRunCommand_FullReportAndJSON(t *testing.T) {
	stdout, _, err := execute(t, "run", "-n", "2", "-d", "1", "-t", "1", "-e", "1", "--report")
	require.NoError(t, err)
	assert.Contains(t, stdout, "findings: none")

	stdout, _, err = execute(t, "run", "-n", "2", "-d", "1", "-t", "1", "-e", "1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Correct)
	require.NotNil(t, resp.Data.Summary)
	assert.Len(t, resp.Data.Summary.Meals, 2)
	assert.Equal(t, resp.Data.Summary.TotalMeals(), resp.Data.Metrics.Meals)
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	stdout, _, err := execute(t, "run", "-n", "1", "--think=-5")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [CONFIG]")
	assert.Contains(t, err.Error(), "agents")
	assert.Contains(t, err.Error(), "think")
}

func TestRunCommand_ConfigFile(t *testing.T) {
	path := writeFile(t, "dining.yaml", "agents: 4\nduration: 1\nthink: 1\neat: 1\n")
	stdout, _, err := execute(t, "run", "--config", path, "-n", "3")
	require.NoError(t, err)
	// The flag wins over the file.
	assert.Contains(t, stdout, "agents: 3,")
}

func TestRunCommand_UnknownConfigKey(t *testing.T) {
	path := writeFile(t, "dining.yaml", "agents: 4\nforks: 4\n")
	_, _, err := execute(t, "run", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_RejectsArgs(t *testing.T) {
	_, _, err := execute(t, "run", "extra")
	require.Error(t, err)
}
