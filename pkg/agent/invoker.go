package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const systemPrompt = `You are an automated web testing agent. You execute one test step at a time
by driving a real browser through the provided tools.

Rules:
- Look at the page carefully before acting; use extract_text or screenshot to inspect it.
- Use the exact values the task specifies. Never substitute your own data.
- If an action fails, try a different approach before giving up.
- When the step is complete, reply with a short summary of what happened and
  whether the expected result was observed.`

// InvokerConfig wires an Invoker.
type InvokerConfig struct {
	Profiles []AuthProfile
	Model    ModelConfig
	Browser  Browser
	Factory  ProviderCreator // defaults to the built-in factory
}

// Invoker executes one test step task at a time: it hands the task to
// the model and loops over tool calls until the model answers in text.
type Invoker struct {
	model   ModelConfig
	browser Browser
	factory ProviderCreator
	logger  zerolog.Logger

	authMu   sync.Mutex
	profiles []AuthProfile

	transcriptMu sync.Mutex
	transcript   []string
}

// NewInvoker creates a step invoker.
func NewInvoker(cfg InvokerConfig, logger zerolog.Logger) (*Invoker, error) {
	if cfg.Browser == nil {
		return nil, fmt.Errorf("browser is required")
	}
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("at least one auth profile is required")
	}

	factory := cfg.Factory
	if factory == nil {
		factory = &ProviderFactory{}
	}

	model := cfg.Model
	if model.Model == "" {
		model = DefaultConfig()
	}

	profiles := make([]AuthProfile, len(cfg.Profiles))
	copy(profiles, cfg.Profiles)
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	return &Invoker{
		model:    model,
		browser:  cfg.Browser,
		factory:  factory,
		logger:   logger.With().Str("component", "agent").Logger(),
		profiles: profiles,
	}, nil
}

// Invoke runs one task to completion and returns the model's final
// text answer. With useVision, the current page screenshot is attached
// to the task and refreshed after each screenshot tool call.
func (inv *Invoker) Invoke(ctx context.Context, task string, useVision bool) (string, error) {
	messages := []Message{{Role: "user", Content: task}}

	if useVision {
		if img, err := inv.browser.ScreenshotBase64(ctx); err == nil {
			messages[0].Images = []string{img}
		} else {
			inv.logger.Debug().Err(err).Msg("Could not attach initial screenshot")
		}
	}

	var lastErr error
	for _, profile := range inv.snapshotProfiles() {
		if inCooldown(profile) {
			inv.logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}

		provider, err := inv.factory.NewProvider(profile)
		if err != nil {
			inv.logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create provider")
			continue
		}

		inv.logger.Info().Str("profile_id", profile.ID).Str("provider", provider.Provider()).Msg("Running task")

		output, err := inv.runTask(ctx, provider, messages, useVision)
		if err == nil {
			inv.markSuccess(profile.ID)
			return output, nil
		}

		lastErr = err
		inv.markFailure(profile.ID)
		inv.logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Auth profile failed")

		if !IsRetryableError(err) {
			return "", err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable auth profile")
	}
	return "", fmt.Errorf("all auth profiles failed: %w", lastErr)
}

// runTask is the tool loop: call the model, execute its tool calls,
// feed back the results, repeat until it answers in text.
func (inv *Invoker) runTask(ctx context.Context, provider LLMProvider, messages []Message, useVision bool) (string, error) {
	maxTurns := inv.model.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 20
	}

	current := make([]Message, len(messages))
	copy(current, messages)

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			inv.recordTranscript(current, "")
			return "", ctx.Err()
		default:
		}

		response, err := inv.callWithRetry(ctx, provider, current)
		if err != nil {
			inv.recordTranscript(current, "")
			return "", err
		}

		if len(response.ToolCalls) == 0 {
			inv.recordTranscript(current, response.Content)
			return response.Content, nil
		}

		current = append(current, Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		var screenshot string
		for _, call := range response.ToolCalls {
			inv.logger.Debug().Str("tool", call.Name).Msg("Executing tool call")
			result := executeTool(ctx, inv.browser, call)

			content := result.Output
			if result.Error != "" {
				content = result.Error
			}
			current = append(current, Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: result.ToolCallID,
			})
			if result.Image != "" {
				screenshot = result.Image
			}
		}

		if useVision && screenshot != "" {
			current = append(current, Message{
				Role:    "user",
				Content: "Current page screenshot after your last action.",
				Images:  []string{screenshot},
			})
		}
	}

	inv.recordTranscript(current, "")
	return "", fmt.Errorf("maximum tool turns (%d) exceeded", maxTurns)
}

// recordTranscript flattens the message history of one invocation into
// readable lines for the run result. Screenshots are elided; only text
// survives.
func (inv *Invoker) recordTranscript(messages []Message, final string) {
	lines := make([]string, 0, len(messages)+1)
	for _, m := range messages {
		for _, call := range m.ToolCalls {
			lines = append(lines, fmt.Sprintf("assistant: [tool %s] %v", call.Name, call.Parameters))
		}
		if m.Content == "" {
			continue
		}
		if m.Role == "tool" {
			lines = append(lines, "tool: "+m.Content)
			continue
		}
		lines = append(lines, m.Role+": "+m.Content)
	}
	if final != "" {
		lines = append(lines, "assistant: "+final)
	}

	inv.transcriptMu.Lock()
	inv.transcript = lines
	inv.transcriptMu.Unlock()
}

// Transcript returns the message transcript of the most recent
// invocation.
func (inv *Invoker) Transcript() []string {
	inv.transcriptMu.Lock()
	defer inv.transcriptMu.Unlock()
	out := make([]string, len(inv.transcript))
	copy(out, inv.transcript)
	return out
}

// callWithRetry retries transient API errors with exponential backoff.
func (inv *Invoker) callWithRetry(ctx context.Context, provider LLMProvider, messages []Message) (*LLMResponse, error) {
	maxRetries := inv.model.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	request := LLMRequest{
		Model:        inv.model.Model,
		Messages:     messages,
		Tools:        browserTools(),
		Temperature:  inv.model.Temperature,
		MaxTokens:    inv.model.MaxTokens,
		SystemPrompt: systemPrompt,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return nil, err
		}
		if attempt == maxRetries-1 {
			break
		}

		// 1s, 2s, 4s
		delay := time.Duration(1<<attempt) * time.Second
		inv.logger.Info().Int("attempt", attempt+1).Dur("delay", delay).Msg("Retrying model call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

func (inv *Invoker) snapshotProfiles() []AuthProfile {
	inv.authMu.Lock()
	defer inv.authMu.Unlock()
	out := make([]AuthProfile, len(inv.profiles))
	copy(out, inv.profiles)
	return out
}

func inCooldown(p AuthProfile) bool {
	return p.CooldownUntil != nil && time.Now().UnixMilli() < *p.CooldownUntil
}

func (inv *Invoker) markSuccess(profileID string) {
	inv.authMu.Lock()
	defer inv.authMu.Unlock()
	for i := range inv.profiles {
		if inv.profiles[i].ID == profileID {
			inv.profiles[i].FailureCount = 0
			inv.profiles[i].CooldownUntil = nil
			return
		}
	}
}

func (inv *Invoker) markFailure(profileID string) {
	inv.authMu.Lock()
	defer inv.authMu.Unlock()
	for i := range inv.profiles {
		if inv.profiles[i].ID == profileID {
			inv.profiles[i].FailureCount++
			until := time.Now().UnixMilli() + int64(60000*inv.profiles[i].FailureCount)
			inv.profiles[i].CooldownUntil = &until
			return
		}
	}
}
