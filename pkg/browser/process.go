package browser

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// timeAfter is a seam so tests can run the creation retry loop without
// real delays.
var timeAfter = time.After

// launchChrome starts a Chrome process, connects over CDP, and opens
// the initial page used for the whole run.
func (m *Manager) launchChrome(ctx context.Context) (*rod.Browser, *rod.Page, error) {
	l := launcher.New().
		Headless(m.cfg.Headless).
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-dev-shm-usage")

	if m.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if m.cfg.ChromePath != "" {
		l = l.Bin(m.cfg.ChromePath)
	}
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	if m.cfg.CDPPort > 0 {
		l = l.RemoteDebuggingPort(m.cfg.CDPPort)
	}

	url, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, nil, &SessionError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("failed to launch Chrome: %v", err),
		}
	}

	b := rod.New().ControlURL(url).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, nil, &SessionError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("failed to connect to CDP: %v", err),
		}
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, nil, &SessionError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("failed to open initial page: %v", err),
		}
	}

	return b, page, nil
}

// cleanupStrayProcesses kills leftover Chrome processes. Best effort:
// failures are logged and ignored.
func cleanupStrayProcesses(logger zerolog.Logger) {
	for _, pattern := range []string{"chrome", "chromium"} {
		cmd := exec.Command("pkill", "-f", pattern)
		if err := cmd.Run(); err != nil {
			logger.Debug().Err(err).Str("pattern", pattern).Msg("Stray process cleanup")
		}
	}
	time.Sleep(time.Second)
}

// underResourcePressure reports whether available memory is below 10%
// of the total. Returns false when the signal cannot be read.
func underResourcePressure() bool {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return false
	}
	defer f.Close()

	var total, available int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
		}
	}

	if total == 0 || available == 0 {
		return false
	}
	return available*10 < total
}
