package runner

import (
	"time"

	"github.com/fikri/webpilot/pkg/intervene"
)

// StepResult records one execution attempt group for a plan step. A
// step re-executed after intervention produces a new StepResult.
type StepResult struct {
	StepNumber       int                 `json:"step_number"`
	Title            string              `json:"title"`
	Success          bool                `json:"success"`
	ExecutionTime    time.Duration       `json:"execution_time"`
	ErrorMessage     string              `json:"error_message,omitempty"`
	ScreenshotPath   string              `json:"screenshot_path,omitempty"`
	AgentOutput      string              `json:"agent_output,omitempty"`
	InterventionUsed bool                `json:"intervention_used"`
	Intervention     *intervene.Response `json:"intervention_details,omitempty"`
}

// RunResult is the outcome of a whole plan execution. Conversation is
// the agent's message transcript across all attempts, present when the
// invoker can report one.
type RunResult struct {
	RunID        string        `json:"run_id"`
	TestName     string        `json:"test_name"`
	Environment  string        `json:"environment,omitempty"`
	Success      bool          `json:"success"`
	StartedAt    time.Time     `json:"started_at"`
	TotalTime    time.Duration `json:"total_time"`
	StepResults  []StepResult  `json:"step_results"`
	Conversation []string      `json:"conversation_history,omitempty"`
	FinalMessage string        `json:"final_message"`
}

// Summary is the aggregate view of a run used by reports.
type Summary struct {
	TotalSteps    int           `json:"total_steps"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	Interventions int           `json:"interventions"`
	TotalTime     time.Duration `json:"total_time"`
	PassRate      float64       `json:"pass_rate"`
}

// Aggregate folds step results into a run summary. Re-executions of
// the same step each count: the summary reflects attempts, not unique
// plan steps.
func Aggregate(r *RunResult) Summary {
	s := Summary{TotalSteps: len(r.StepResults), TotalTime: r.TotalTime}
	for _, step := range r.StepResults {
		if step.Success {
			s.Passed++
		} else {
			s.Failed++
		}
		if step.InterventionUsed {
			s.Interventions++
		}
	}
	if s.TotalSteps > 0 {
		s.PassRate = float64(s.Passed) / float64(s.TotalSteps)
	}
	return s
}
