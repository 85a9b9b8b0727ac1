package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog"
)

// Manager owns the shared browser session for a whole run. The session
// is created lazily, recreated after fatal browser errors, and closed
// exactly once at run end. If a Guard is held at that moment the close
// is downgraded to a logged no-op.
type Manager struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page

	// protectCount > 0 vetoes teardown from every code path.
	protectCount int64

	// Seams for tests; default to the real Chrome launcher.
	launch  func(ctx context.Context) (*rod.Browser, *rod.Page, error)
	destroy func(b *rod.Browser)
}

// NewManager creates a session manager. No browser is started until
// Acquire is called.
func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		logger: logger.With().Str("component", "browser").Logger(),
	}
	m.launch = m.launchChrome
	m.destroy = func(b *rod.Browser) { _ = b.Close() }
	return m
}

// Guard vetoes session teardown while held. Release is idempotent.
type Guard struct {
	m        *Manager
	released atomic.Bool
}

// Release drops the teardown veto. Calling it more than once is safe.
func (g *Guard) Release() {
	if g == nil || g.released.Swap(true) {
		return
	}
	n := atomic.AddInt64(&g.m.protectCount, -1)
	g.m.logger.Debug().Int64("protect_count", n).Msg("Session guard released")
}

// Protect returns a guard that forbids closing or recreating the
// session until released. Guards nest.
func (m *Manager) Protect() *Guard {
	n := atomic.AddInt64(&m.protectCount, 1)
	m.logger.Debug().Int64("protect_count", n).Msg("Session guard acquired")
	return &Guard{m: m}
}

// IsProtected reports whether any guard is currently held.
func (m *Manager) IsProtected() bool {
	return atomic.LoadInt64(&m.protectCount) > 0
}

// Acquire ensures a live session handle, creating one if needed.
// Creation is attempted a fixed number of times with a fixed delay;
// each attempt is bounded by the startup timeout. Failure after all
// attempts is fatal to the run.
func (m *Manager) Acquire(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx)
}

func (m *Manager) acquireLocked(ctx context.Context) error {
	if m.browser != nil {
		return nil
	}

	attempts := m.cfg.createAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if underResourcePressure() {
				m.logger.Warn().Msg("Low memory before session retry, cleaning up stray browser processes")
				cleanupStrayProcesses(m.logger)
			}
			select {
			case <-ctx.Done():
				return &SessionError{Code: ErrCodeCreation, Message: fmt.Sprintf("session creation cancelled: %v", ctx.Err())}
			case <-timeAfter(m.cfg.retryDelay()):
			}
		}

		m.logger.Info().Int("attempt", attempt).Int("max_attempts", attempts).Msg("Creating browser session")

		startCtx, cancel := context.WithTimeout(ctx, m.cfg.startupTimeout())
		b, page, err := m.launch(startCtx)
		cancel()
		if err != nil {
			lastErr = err
			m.logger.Error().Err(err).Int("attempt", attempt).Msg("Browser session creation failed")
			continue
		}

		m.browser = b
		m.page = page
		m.logger.Info().Bool("headless", m.cfg.Headless).Msg("Browser session created")
		return nil
	}

	return &SessionError{
		Code:    ErrCodeCreation,
		Message: fmt.Sprintf("failed to create browser session after %d attempts: %v", attempts, lastErr),
	}
}

// Release closes the session handle. While a guard is held the close
// is a no-op: the handle must survive an in-flight intervention.
func (m *Manager) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsProtected() {
		m.logger.Info().Msg("Session protected by in-flight intervention, close downgraded to no-op")
		return nil
	}
	m.closeLocked()
	return nil
}

func (m *Manager) closeLocked() {
	if m.browser == nil {
		return
	}
	m.destroy(m.browser)
	m.browser = nil
	m.page = nil
	m.logger.Info().Msg("Browser session closed")
}

// Recreate tears the handle down and builds a fresh one. Used after
// fatal browser errors (crash, connection refused, target closed).
// Honors the teardown guard the same way Release does.
func (m *Manager) Recreate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsProtected() {
		m.logger.Warn().Msg("Session protected, skipping recreate")
		return nil
	}

	m.logger.Warn().Msg("Recreating browser session after fatal error")
	m.closeLocked()
	return m.acquireLocked(ctx)
}

// VerifyHealth is a best-effort post-intervention check: the page is
// reachable and has either non-trivial body content or a non-empty
// title. It never fails the run.
func (m *Manager) VerifyHealth(ctx context.Context) (bool, string) {
	m.mu.Lock()
	page := m.page
	m.mu.Unlock()

	if page == nil {
		return false, "no browser session"
	}

	info, err := page.Info()
	if err != nil {
		return false, fmt.Sprintf("page unreachable: %v", err)
	}

	length := 0
	if res, err := page.Eval(`() => document.body ? document.body.innerText.trim().length : 0`); err == nil {
		length = res.Value.Int()
	}

	if length > 50 {
		return true, fmt.Sprintf("page loaded - title: %s, content length: %d", info.Title, length)
	}
	if strings.TrimSpace(info.Title) != "" {
		return true, fmt.Sprintf("page may still be loading - title: %s", info.Title)
	}
	return false, fmt.Sprintf("page looks blank - url: %s, content length: %d", info.URL, length)
}

// IsFatal classifies an error as a fatal browser failure, which
// requires a full session recreate rather than a step-level retry.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var fatalMarkers = []string{
	"browser crashed",
	"connection refused",
	"target closed",
	"browser process exited",
	"browser has been closed",
	"websocket: close",
	"context canceled: cdp",
}
