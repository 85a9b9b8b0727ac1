package intervene

import (
	"context"
	"time"
)

// Kind classifies why an intervention was requested.
type Kind string

const (
	KindErrorRetry      Kind = "error_retry"
	KindStepGuidance    Kind = "step_guidance"
	KindContextUpdate   Kind = "context_update"
	KindManualOperation Kind = "manual_operation"
)

// Actions an operator can choose. Everything else the runner treats as
// "move on".
const (
	ActionContinue = "continue"
	ActionSkip     = "skip"
	ActionRetry    = "retry"
	ActionModify   = "modify"
	ActionStatus   = "status"
	ActionGoto     = "goto"
	actionTimeout  = "timeout"
)

// DefaultTimeout bounds how long a single intervention request waits
// for an operator before falling back to continue.
const DefaultTimeout = 600 * time.Second

// Context carries everything an operator needs to decide what to do
// with a failed step.
type Context struct {
	StepNumber       int      `json:"step_number"`
	StepTitle        string   `json:"step_title"`
	ErrorMessage     string   `json:"error_message"`
	ScreenshotPath   string   `json:"screenshot_path,omitempty"`
	PageURL          string   `json:"page_url,omitempty"`
	RetryCount       int      `json:"retry_count"`
	PreviousAttempts []string `json:"previous_attempts,omitempty"`
}

// Response is the operator's decision.
type Response struct {
	Action                 string `json:"action"`
	Message                string `json:"message,omitempty"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
	SkipToStep             int    `json:"skip_to_step,omitempty"`
}

// Gateway requests a decision from a human operator. Implementations
// must resolve every request: on timeout they return a continue
// response rather than an error, so the run never wedges on an absent
// operator.
type Gateway interface {
	Request(ctx context.Context, ic Context, kind Kind) (Response, error)
}
