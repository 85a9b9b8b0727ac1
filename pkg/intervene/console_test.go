package intervene

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsole(t *testing.T, input string, timeout time.Duration) (*Console, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	c := NewConsole(timeout, NewHistory(), zerolog.Nop())
	c.in = strings.NewReader(input)
	c.out = out
	return c, out
}

func sampleContext() Context {
	return Context{
		StepNumber:   2,
		StepTitle:    "Submit the login form",
		ErrorMessage: "element not found: #submit",
		PageURL:      "https://example.com/login",
		RetryCount:   3,
	}
}

func TestConsoleRequest(t *testing.T) {
	t.Run("should resolve a valid command and record it", func(t *testing.T) {
		c, out := newTestConsole(t, "skip\n", time.Second)

		resp, err := c.Request(context.Background(), sampleContext(), KindErrorRetry)
		require.NoError(t, err)
		assert.Equal(t, ActionSkip, resp.Action)

		records := c.history.Records()
		require.Len(t, records, 1)
		assert.Equal(t, ActionSkip, records[0].Response.Action)
		assert.Equal(t, 2, records[0].StepNumber)
		assert.NotEmpty(t, records[0].ID)

		assert.Contains(t, out.String(), "Human intervention required")
		assert.Contains(t, out.String(), "element not found: #submit")
	})

	t.Run("should reprompt on invalid input without resetting the deadline", func(t *testing.T) {
		c, out := newTestConsole(t, "abort\nhelp\nhint \"try the other button\"\n", time.Second)

		start := time.Now()
		resp, err := c.Request(context.Background(), sampleContext(), KindErrorRetry)
		require.NoError(t, err)

		assert.Equal(t, ActionContinue, resp.Action)
		assert.Equal(t, "try the other button", resp.AdditionalInstructions)
		assert.Less(t, time.Since(start), time.Second)
		assert.Contains(t, out.String(), "Unrecognized command")
		assert.Contains(t, out.String(), "Available commands")
		assert.Equal(t, 1, c.history.Len(), "only the resolving command is recorded")
	})

	t.Run("should fall back to continue on timeout", func(t *testing.T) {
		out := &bytes.Buffer{}
		c := NewConsole(20*time.Millisecond, NewHistory(), zerolog.Nop())
		pr, _ := io.Pipe() // never written: simulates an absent operator
		c.in = pr
		c.out = out

		resp, err := c.Request(context.Background(), sampleContext(), KindErrorRetry)
		require.NoError(t, err)
		assert.Equal(t, ActionContinue, resp.Action)

		records := c.history.Records()
		require.Len(t, records, 1)
		assert.Equal(t, actionTimeout, records[0].Response.Action)
	})

	t.Run("should fall back to continue when input closes", func(t *testing.T) {
		c, _ := newTestConsole(t, "", time.Second)

		resp, err := c.Request(context.Background(), sampleContext(), KindErrorRetry)
		require.NoError(t, err)
		assert.Equal(t, ActionContinue, resp.Action)
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		out := &bytes.Buffer{}
		c := NewConsole(time.Hour, NewHistory(), zerolog.Nop())
		pr, _ := io.Pipe()
		c.in = pr
		c.out = out

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := c.Request(ctx, sampleContext(), KindErrorRetry)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHistory(t *testing.T) {
	t.Run("should persist records as JSON", func(t *testing.T) {
		h := NewHistory()
		h.Append(Record{ID: "r1", StepNumber: 1, Response: Response{Action: ActionSkip}})
		h.Append(Record{ID: "r2", StepNumber: 4, Response: Response{Action: ActionGoto, SkipToStep: 2}})

		path := t.TempDir() + "/history.json"
		require.NoError(t, h.SaveTo(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"r2"`)
		assert.Contains(t, string(data), `"skip_to_step": 2`)
	})

	t.Run("should return copies that do not alias the log", func(t *testing.T) {
		h := NewHistory()
		h.Append(Record{ID: "r1"})

		records := h.Records()
		records[0].ID = "mutated"
		assert.Equal(t, "r1", h.Records()[0].ID)
	})
}
