package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fikri/webpilot/pkg/browser"
	"github.com/fikri/webpilot/pkg/intervene"
	"github.com/fikri/webpilot/pkg/plan"
)

// Guard vetoes session teardown until released.
type Guard interface {
	Release()
}

// Session is the browser session lifecycle as the engine sees it.
type Session interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
	Recreate(ctx context.Context) error
	Protect() Guard
	VerifyHealth(ctx context.Context) (bool, string)
	CurrentURL() string
	PageTitle() string
	CaptureScreenshot(stepNumber int, suffix string) (string, error)
}

// Invoker executes one step task through the agent.
type Invoker interface {
	Invoke(ctx context.Context, task string, useVision bool) (string, error)
}

// Transcripter is an optional Invoker capability: the message
// transcript of the most recent invocation. Invokers that implement it
// get their conversation collected into the run result.
type Transcripter interface {
	Transcript() []string
}

// Config controls engine behavior. MaxRetries 0 is a real setting
// (escalate on the first failure); only a negative value falls back to
// the default. Plan front matter overrides both fields per run.
type Config struct {
	MaxRetries  int           // automatic retries per step before escalating
	StepTimeout time.Duration // wall clock budget per step attempt
	UseVision   bool
}

const (
	defaultMaxRetries  = 3
	defaultStepTimeout = 300 * time.Second
)

// Engine walks a test plan step by step: execute, retry on failure,
// escalate to a human once retries are exhausted, and fold the
// decisions back into the walk.
type Engine struct {
	cfg     Config
	session Session
	invoker Invoker
	gateway intervene.Gateway
	logger  zerolog.Logger

	// states holds per-step retry counters, guidance, and replacement
	// actions. Keyed by step number; the plan is never mutated.
	states map[int]*stepState
}

// NewEngine creates a plan execution engine.
func NewEngine(cfg Config, session Session, invoker Invoker, gateway intervene.Gateway, logger zerolog.Logger) *Engine {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	return &Engine{
		cfg:     cfg,
		session: session,
		invoker: invoker,
		gateway: gateway,
		logger:  logger.With().Str("component", "runner").Logger(),
		states:  make(map[int]*stepState),
	}
}

// Run executes the whole plan. The returned result is always usable;
// the error is non-nil only for run-fatal failures such as session
// creation.
func (e *Engine) Run(ctx context.Context, p *plan.TestPlan) (*RunResult, error) {
	start := time.Now()
	e.states = make(map[int]*stepState)

	cfg := e.cfg
	if p.Metadata.RetryCount != nil && *p.Metadata.RetryCount >= 0 {
		cfg.MaxRetries = *p.Metadata.RetryCount
	}
	if p.Metadata.Timeout > 0 {
		cfg.StepTimeout = time.Duration(p.Metadata.Timeout) * time.Second
	}

	result := &RunResult{
		RunID:       uuid.NewString(),
		TestName:    p.Metadata.TestName,
		Environment: p.Metadata.Environment,
		StartedAt:   start,
	}

	e.logger.Info().
		Str("run_id", result.RunID).
		Str("test", p.Metadata.TestName).
		Int("steps", len(p.Steps)).
		Msg("Starting test run")

	if err := e.session.Acquire(ctx); err != nil {
		result.TotalTime = time.Since(start)
		result.FinalMessage = "failed to create browser session: " + err.Error()
		e.logger.Error().Err(err).Str("run_id", result.RunID).Msg("Run aborted before first step")
		return result, err
	}

	// The close is guard-aware: it no-ops while an intervention holds
	// the session.
	defer func() {
		if err := e.session.Release(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()

	var runErr error
	index := 0
	for index < len(p.Steps) {
		select {
		case <-ctx.Done():
			result.TotalTime = time.Since(start)
			result.FinalMessage = "run cancelled"
			return result, ctx.Err()
		default:
		}

		step := p.Steps[index]
		stepResult, sessionErr := e.executeStep(ctx, cfg, step, p)

		// The attempt reached the agent only with a live session; a
		// session error would just replay the previous transcript.
		if sessionErr == nil {
			if tr, ok := e.invoker.(Transcripter); ok {
				result.Conversation = append(result.Conversation, tr.Transcript()...)
			}
		}

		var outcome stepOutcome
		switch {
		case sessionErr != nil:
			// The browser cannot be brought back. Retrying or asking a
			// human would escalate over a session that does not exist.
			e.logger.Error().Err(sessionErr).Int("step", step.Number).Msg("Browser session unavailable, aborting run")
			outcome = abort()
			runErr = sessionErr
		case stepResult.Success:
			result.StepResults = append(result.StepResults, stepResult)
			index++
			continue
		default:
			outcome = e.escalate(ctx, cfg, step, &stepResult)
		}

		result.StepResults = append(result.StepResults, stepResult)

		e.logger.Info().
			Int("step", step.Number).
			Str("outcome", outcome.String()).
			Msg("Step failure resolved")

		switch outcome.kind {
		case outcomeRetry:
			// Same index: the step runs again with any new guidance.
		case outcomeGoto:
			// No bounds check: a target past the last step ends the
			// walk at the loop condition.
			index = outcome.target - 1
		case outcomeAbort:
			index = len(p.Steps)
		default:
			index++
		}
	}

	result.TotalTime = time.Since(start)
	result.Success = runErr == nil && allPassed(result.StepResults)
	switch {
	case runErr != nil:
		result.FinalMessage = "browser session unavailable: " + runErr.Error()
	case result.Success:
		result.FinalMessage = "test run completed"
	default:
		result.FinalMessage = "test run failed"
	}

	e.logger.Info().
		Str("run_id", result.RunID).
		Bool("success", result.Success).
		Dur("total_time", result.TotalTime).
		Msg("Test run finished")

	return result, runErr
}

// executeStep runs one attempt of a step through the agent. A non-nil
// error means the browser session could not be acquired; that is fatal
// for the run, not a step failure.
func (e *Engine) executeStep(ctx context.Context, cfg Config, step plan.Step, p *plan.TestPlan) (StepResult, error) {
	start := time.Now()
	result := StepResult{StepNumber: step.Number, Title: step.Title}

	e.logger.Info().Int("step", step.Number).Str("title", step.Title).Msg("Executing step")

	if err := e.session.Acquire(ctx); err != nil {
		result.ExecutionTime = time.Since(start)
		result.ErrorMessage = "browser session unavailable: " + err.Error()
		return result, err
	}

	e.logger.Info().
		Str("url", e.session.CurrentURL()).
		Str("title", e.session.PageTitle()).
		Msg("Page state before step")

	task := buildTask(step, p, e.state(step.Number))

	// The session must survive the whole agent run; teardown from
	// other paths is vetoed until the attempt ends.
	guard := e.session.Protect()
	stepCtx, cancel := context.WithTimeout(ctx, cfg.StepTimeout)
	output, err := e.invoker.Invoke(stepCtx, task, cfg.UseVision)
	cancel()
	guard.Release()

	result.ExecutionTime = time.Since(start)

	if err != nil {
		suffix := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			suffix = "timeout"
			result.ErrorMessage = "step timed out after " + cfg.StepTimeout.String()
		} else {
			result.ErrorMessage = err.Error()
		}

		e.logger.Error().Err(err).Int("step", step.Number).Msg("Step failed")

		if browser.IsFatal(err) {
			e.logger.Warn().Int("step", step.Number).Msg("Fatal browser error, recreating session")
			if rerr := e.session.Recreate(ctx); rerr != nil {
				e.logger.Error().Err(rerr).Msg("Session recreate failed")
			}
		}

		result.ScreenshotPath = e.screenshot(step.Number, suffix)
		return result, nil
	}

	result.Success = true
	result.AgentOutput = output
	result.ScreenshotPath = e.screenshot(step.Number, "")

	e.logger.Info().
		Int("step", step.Number).
		Dur("execution_time", result.ExecutionTime).
		Msg("Step succeeded")

	return result, nil
}

// escalate decides what happens after a failed attempt: burn an
// automatic retry, or hand the failure to a human.
func (e *Engine) escalate(ctx context.Context, cfg Config, step plan.Step, result *StepResult) stepOutcome {
	state := e.state(step.Number)

	if state.retries < cfg.MaxRetries {
		state.retries++
		e.logger.Info().
			Int("step", step.Number).
			Int("retry", state.retries).
			Int("max_retries", cfg.MaxRetries).
			Str("error", result.ErrorMessage).
			Msg("Retrying step")
		return retryStep()
	}

	ic := intervene.Context{
		StepNumber:     step.Number,
		StepTitle:      step.Title,
		ErrorMessage:   result.ErrorMessage,
		ScreenshotPath: result.ScreenshotPath,
		PageURL:        e.session.CurrentURL(),
		RetryCount:     state.retries,
		PreviousAttempts: state.guidance,
	}

	// The guard spans the request and the processing of its answer:
	// nothing may tear the session down while a human is looking at it.
	guard := e.session.Protect()
	defer guard.Release()

	e.logger.Info().Int("step", step.Number).Msg("Escalating to human intervention")

	resp, err := e.gateway.Request(ctx, ic, intervene.KindErrorRetry)
	if err != nil {
		e.logger.Error().Err(err).Int("step", step.Number).Msg("Intervention request failed, moving on")
		return advance()
	}

	result.InterventionUsed = true
	result.Intervention = &resp

	if ok, detail := e.session.VerifyHealth(ctx); !ok {
		e.logger.Warn().Str("detail", detail).Msg("Page state after intervention")
	} else {
		e.logger.Info().Str("detail", detail).Msg("Page state after intervention")
	}

	switch resp.Action {
	case intervene.ActionContinue:
		if resp.AdditionalInstructions != "" {
			state.guidance = append(state.guidance, resp.AdditionalInstructions)
			e.logger.Info().Str("guidance", resp.AdditionalInstructions).Msg("Operator guidance added")
		}
		// Retries stay exhausted: the next failure escalates again.
		return retryStep()

	case intervene.ActionSkip:
		e.logger.Info().Int("step", step.Number).Msg("Operator skipped step")
		return advance()

	case intervene.ActionModify:
		if resp.Message != "" {
			state.actions = []string{resp.Message}
			e.logger.Info().Str("actions", resp.Message).Msg("Step actions replaced by operator")
		}
		return retryStep()

	case intervene.ActionGoto:
		if resp.SkipToStep > 0 {
			return gotoStep(resp.SkipToStep)
		}
		return advance()

	default:
		// retry, status, and anything unrecognized move the run on.
		return advance()
	}
}

func (e *Engine) state(stepNumber int) *stepState {
	s, ok := e.states[stepNumber]
	if !ok {
		s = &stepState{}
		e.states[stepNumber] = s
	}
	return s
}

func (e *Engine) screenshot(stepNumber int, suffix string) string {
	path, err := e.session.CaptureScreenshot(stepNumber, suffix)
	if err != nil {
		e.logger.Warn().Err(err).Int("step", stepNumber).Msg("Screenshot failed")
		return ""
	}
	return path
}

func allPassed(results []StepResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return len(results) > 0
}
