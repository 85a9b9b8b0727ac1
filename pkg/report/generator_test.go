package report

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fikri/webpilot/pkg/intervene"
	"github.com/fikri/webpilot/pkg/plan"
	"github.com/fikri/webpilot/pkg/runner"
)

func sampleRun() (*plan.TestPlan, *runner.RunResult) {
	p := &plan.TestPlan{
		Metadata:  plan.Metadata{TestName: "login flow", Environment: "staging"},
		Objective: "Verify SMS login",
		Steps: []plan.Step{
			{Number: 1, Title: "Open page", Actions: []string{"navigate"}},
			{Number: 2, Title: "Log in", Actions: []string{"type", "click"}},
		},
	}
	r := &runner.RunResult{
		RunID:        "run-1",
		TestName:     "login flow",
		Success:      false,
		TotalTime:    42 * time.Second,
		FinalMessage: "test run failed",
		StepResults: []runner.StepResult{
			{StepNumber: 1, Title: "Open page", Success: true, ExecutionTime: 3 * time.Second, AgentOutput: "page loaded"},
			{StepNumber: 2, Title: "Log in", Success: false, ExecutionTime: 9 * time.Second,
				ErrorMessage:     "element not found: #submit",
				InterventionUsed: true,
				Intervention:     &intervene.Response{Action: "skip"},
			},
		},
		Conversation: []string{
			"user: open the login page",
			"assistant: page loaded",
		},
	}
	return p, r
}

func TestGenerator(t *testing.T) {
	t.Run("should write a JSON report with summary", func(t *testing.T) {
		p, r := sampleRun()
		dir := t.TempDir()

		path, err := NewGenerator(zerolog.Nop()).WriteJSON(p, r, dir)
		require.NoError(t, err)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)

		var data Data
		require.NoError(t, json.Unmarshal(raw, &data))

		assert.Equal(t, "login flow", data.TestCase.Name)
		assert.Equal(t, 2, data.TestCase.TotalSteps)
		assert.Equal(t, "run-1", data.Execution.RunID)
		assert.False(t, data.Execution.Success)
		assert.Equal(t, 1, data.Execution.Summary.Passed)
		assert.Equal(t, 1, data.Execution.Summary.Interventions)
		assert.InDelta(t, 42.0, data.Execution.TotalTime, 0.001)
		assert.Equal(t, []string{"user: open the login page", "assistant: page loaded"}, data.Execution.Conversation)
	})

	t.Run("should render an HTML report with step details", func(t *testing.T) {
		p, r := sampleRun()
		dir := t.TempDir()

		path, err := NewGenerator(zerolog.Nop()).WriteHTML(p, r, dir)
		require.NoError(t, err)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		html := string(raw)

		assert.Contains(t, html, "login flow")
		assert.Contains(t, html, "FAILED")
		assert.Contains(t, html, "Step 2: Log in")
		assert.Contains(t, html, "element not found: #submit")
		assert.Contains(t, html, "Human intervention: skip")
	})
}
