package browser

import "time"

// Config controls how the shared browser session is started and used.
type Config struct {
	Headless       bool
	NoSandbox      bool
	ChromePath     string
	UserDataDir    string
	CDPPort        int
	ScreenshotsDir string

	// Session creation bounds. Zero values fall back to the defaults
	// below.
	StartupTimeout time.Duration
	CreateAttempts int
	RetryDelay     time.Duration
}

const (
	defaultStartupTimeout = 60 * time.Second
	defaultCreateAttempts = 3
	defaultRetryDelay     = 5 * time.Second
)

func (c Config) startupTimeout() time.Duration {
	if c.StartupTimeout > 0 {
		return c.StartupTimeout
	}
	return defaultStartupTimeout
}

func (c Config) createAttempts() int {
	if c.CreateAttempts > 0 {
		return c.CreateAttempts
	}
	return defaultCreateAttempts
}

func (c Config) retryDelay() time.Duration {
	if c.RetryDelay > 0 {
		return c.RetryDelay
	}
	return defaultRetryDelay
}

// SessionError is a browser-layer error with a stable code.
type SessionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *SessionError) Error() string {
	return e.Message
}

// Error codes
const (
	ErrCodeCreation   = "SESSION_CREATION_ERROR"
	ErrCodeCrash      = "BROWSER_CRASH"
	ErrCodeNavigation = "NAVIGATION_ERROR"
	ErrCodeTimeout    = "TIMEOUT_ERROR"
	ErrCodeScript     = "SCRIPT_EXECUTION_ERROR"
	ErrCodeNoSession  = "NO_SESSION"
)
