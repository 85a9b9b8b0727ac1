package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fikri/webpilot/internal/store"
	"github.com/fikri/webpilot/pkg/runner"
)

// writeHistoryConfig points the archive at a temp database and returns
// the config file path.
func writeHistoryConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "history.db")
	configPath = filepath.Join(dir, "webpilot.json")

	raw, err := json.Marshal(map[string]any{
		"history_db": dbPath,
		"data_dir":   dir,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, raw, 0644))
	return configPath, dbPath
}

func seedRun(t *testing.T, dbPath, runID string, success bool) {
	t.Helper()
	archive, err := store.Open(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer archive.Close()

	require.NoError(t, archive.SaveRun(context.Background(), &runner.RunResult{
		RunID:     runID,
		TestName:  "signup flow",
		Success:   success,
		StartedAt: time.Now(),
		TotalTime: 30 * time.Second,
		StepResults: []runner.StepResult{
			{StepNumber: 1, Title: "Open signup page", Success: true, ExecutionTime: 2 * time.Second},
			{StepNumber: 2, Title: "Submit form", Success: success, ExecutionTime: 4 * time.Second},
		},
	}))
}

func TestHistoryCommand(t *testing.T) {
	t.Cleanup(func() { cfgFile = "" })

	t.Run("should report an empty archive", func(t *testing.T) {
		configPath, _ := writeHistoryConfig(t)

		cmd := GetRootCmd()
		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetArgs([]string{"history", "--config", configPath})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, output.String(), "No archived runs yet")
	})

	t.Run("should list archived runs", func(t *testing.T) {
		configPath, dbPath := writeHistoryConfig(t)
		seedRun(t, dbPath, "run-ok", true)
		seedRun(t, dbPath, "run-bad", false)

		cmd := GetRootCmd()
		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetArgs([]string{"history", "--config", configPath})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, output.String(), "run-ok")
		assert.Contains(t, output.String(), "run-bad")
		assert.Contains(t, output.String(), "signup flow")
		assert.Contains(t, output.String(), "PASS")
		assert.Contains(t, output.String(), "FAIL")
	})

	t.Run("should show the attempts of one run", func(t *testing.T) {
		configPath, dbPath := writeHistoryConfig(t)
		seedRun(t, dbPath, "run-bad", false)

		cmd := GetRootCmd()
		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetArgs([]string{"history", "--config", configPath, "--run", "run-bad"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, output.String(), "Open signup page")
		assert.Contains(t, output.String(), "Submit form")
		assert.Contains(t, output.String(), "step 2")
	})
}
