package config

import (
	"fmt"
	"strings"

	"github.com/fikri/webpilot/internal/logger"
)

// Config is the main webpilot configuration.
type Config struct {
	// Execution
	MaxRetries          int  `json:"max_retries" mapstructure:"max_retries"`
	StepTimeout         int  `json:"step_timeout" mapstructure:"step_timeout"`                 // seconds
	InterventionTimeout int  `json:"intervention_timeout" mapstructure:"intervention_timeout"` // seconds
	UseVision           bool `json:"use_vision" mapstructure:"use_vision"`

	// Browser
	Browser BrowserConfig `json:"browser" mapstructure:"browser"`

	// AI model and credentials
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Paths
	DataDir        string `json:"data_dir" mapstructure:"data_dir"`
	ReportsDir     string `json:"reports_dir" mapstructure:"reports_dir"`
	ScreenshotsDir string `json:"screenshots_dir" mapstructure:"screenshots_dir"`
	HistoryDB      string `json:"history_db" mapstructure:"history_db"`
}

// BrowserConfig holds browser session settings.
type BrowserConfig struct {
	Headless    bool   `json:"headless" mapstructure:"headless"`
	NoSandbox   bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath  string `json:"chrome_path" mapstructure:"chrome_path"`
	UserDataDir string `json:"user_data_dir" mapstructure:"user_data_dir"`
	CDPPort     int    `json:"cdp_port" mapstructure:"cdp_port"`
}

// AIConfig holds model settings and provider credentials.
type AIConfig struct {
	Model       string          `json:"model" mapstructure:"model"`
	Temperature float64         `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int             `json:"max_tokens" mapstructure:"max_tokens"`
	Profiles    []ProfileConfig `json:"profiles" mapstructure:"profiles"`
}

// ProfileConfig is one provider credential. Profiles are tried in
// priority order, lowest first.
type ProfileConfig struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic or openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:          3,
		StepTimeout:         300,
		InterventionTimeout: 600,
		UseVision:           true,
		Browser: BrowserConfig{
			Headless: false,
		},
		AI: AIConfig{
			Model:       "claude-3-5-sonnet-20241022",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		ReportsDir:     "reports",
		ScreenshotsDir: "screenshots",
	}
}

// LoggerConfig translates the logging section for the logger package.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:     c.Logging.Level,
		File:      c.Logging.File,
		Console:   c.Logging.Console,
		Pretty:    c.Logging.Pretty,
		Redaction: c.Logging.Redaction,
	}
}

// Validate checks value ranges and credential shapes.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.StepTimeout <= 0 {
		return fmt.Errorf("step_timeout must be positive")
	}
	if c.InterventionTimeout <= 0 {
		return fmt.Errorf("intervention_timeout must be positive")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		return fmt.Errorf("ai.temperature must be between 0 and 1")
	}
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("at least one ai profile is required")
	}
	for i, p := range c.AI.Profiles {
		if err := validateProfile(p); err != nil {
			return fmt.Errorf("ai.profiles[%d]: %w", i, err)
		}
	}
	return nil
}

func validateProfile(p ProfileConfig) error {
	if p.ID == "" {
		return fmt.Errorf("profile id cannot be empty")
	}
	switch p.Provider {
	case "anthropic":
		if !strings.HasPrefix(p.APIKey, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(p.APIKey, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	default:
		return fmt.Errorf("unsupported provider: %s", p.Provider)
	}
	return nil
}
