package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// currentPage returns the live page or a NO_SESSION error.
func (m *Manager) currentPage() (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page == nil {
		return nil, &SessionError{Code: ErrCodeNoSession, Message: "no browser session"}
	}
	return m.page, nil
}

// CurrentURL returns the page URL, or a placeholder when the session
// is unavailable. Used for intervention context, so it never errors.
func (m *Manager) CurrentURL() string {
	page, err := m.currentPage()
	if err != nil {
		return "unknown"
	}
	info, err := page.Info()
	if err != nil {
		return "unknown"
	}
	return info.URL
}

// PageTitle returns the page title, best effort.
func (m *Manager) PageTitle() string {
	page, err := m.currentPage()
	if err != nil {
		return ""
	}
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

// Navigate loads a URL and waits for the load event.
func (m *Manager) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page, err := m.currentPage()
	if err != nil {
		return err
	}

	page = page.Context(ctx)
	if timeout > 0 {
		page = page.Timeout(timeout)
	}

	if err := page.Navigate(url); err != nil {
		return &SessionError{Code: ErrCodeNavigation, Message: fmt.Sprintf("failed to navigate to %s: %v", url, err)}
	}
	if err := page.WaitLoad(); err != nil {
		return &SessionError{Code: ErrCodeTimeout, Message: fmt.Sprintf("page load timeout: %v", err)}
	}
	return nil
}

// Click clicks the first element matching the CSS selector.
func (m *Manager) Click(ctx context.Context, selector string, timeout time.Duration) error {
	elem, err := m.element(ctx, selector, timeout)
	if err != nil {
		return err
	}
	if err := elem.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &SessionError{Code: ErrCodeScript, Message: fmt.Sprintf("failed to click %s: %v", selector, err)}
	}
	return nil
}

// Type inputs text into the element matching the CSS selector.
func (m *Manager) Type(ctx context.Context, selector, text string, timeout time.Duration) error {
	elem, err := m.element(ctx, selector, timeout)
	if err != nil {
		return err
	}
	if err := elem.Input(text); err != nil {
		return &SessionError{Code: ErrCodeScript, Message: fmt.Sprintf("failed to type into %s: %v", selector, err)}
	}
	return nil
}

func (m *Manager) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	page, err := m.currentPage()
	if err != nil {
		return nil, err
	}

	page = page.Context(ctx)
	if timeout > 0 {
		page = page.Timeout(timeout)
	}

	elem, err := page.Element(selector)
	if err != nil {
		return nil, &SessionError{Code: ErrCodeScript, Message: fmt.Sprintf("element not found: %s", selector)}
	}
	return elem, nil
}

// ExtractText returns the visible text of the page body.
func (m *Manager) ExtractText(ctx context.Context) (string, error) {
	page, err := m.currentPage()
	if err != nil {
		return "", err
	}

	res, err := page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", &SessionError{Code: ErrCodeScript, Message: fmt.Sprintf("failed to extract text: %v", err)}
	}
	return res.Value.String(), nil
}

// ScreenshotBase64 captures a viewport screenshot for vision-enabled
// agent turns.
func (m *Manager) ScreenshotBase64(ctx context.Context) (string, error) {
	page, err := m.currentPage()
	if err != nil {
		return "", err
	}

	data, err := page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return "", &SessionError{Code: ErrCodeScript, Message: fmt.Sprintf("failed to capture screenshot: %v", err)}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// CaptureScreenshot writes a step screenshot to the screenshots
// directory and returns its path. Errors are non-fatal to the run;
// callers log and continue without a screenshot reference.
func (m *Manager) CaptureScreenshot(stepNumber int, suffix string) (string, error) {
	page, err := m.currentPage()
	if err != nil {
		return "", err
	}

	data, err := page.Screenshot(false, nil)
	if err != nil {
		return "", &SessionError{Code: ErrCodeScript, Message: fmt.Sprintf("failed to capture screenshot: %v", err)}
	}

	dir := m.cfg.ScreenshotsDir
	if dir == "" {
		dir = "screenshots"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshots directory: %w", err)
	}

	path := filepath.Join(dir, screenshotName(stepNumber, suffix))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// screenshotName builds the step_NN_<unix>[_suffix].png naming contract.
func screenshotName(stepNumber int, suffix string) string {
	name := fmt.Sprintf("step_%02d_%d", stepNumber, time.Now().Unix())
	if suffix != "" {
		name += "_" + suffix
	}
	return name + ".png"
}
