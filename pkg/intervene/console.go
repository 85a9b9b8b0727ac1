package intervene

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Console is the interactive gateway: it prints the failure context to
// the terminal and reads operator commands line by line. One deadline
// covers the whole request, so invalid input does not buy extra time.
type Console struct {
	timeout time.Duration
	logger  zerolog.Logger
	history *History

	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

// NewConsole builds a console gateway on stdin/stdout. A zero timeout
// falls back to DefaultTimeout.
func NewConsole(timeout time.Duration, history *History, logger zerolog.Logger) *Console {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if history == nil {
		history = NewHistory()
	}
	return &Console{
		timeout: timeout,
		logger:  logger.With().Str("component", "intervene").Logger(),
		history: history,
		in:      os.Stdin,
		out:     os.Stdout,
		lines:   make(chan string),
	}
}

// Request blocks until the operator resolves the request or the
// timeout elapses. Timeout resolves to continue so the run keeps
// moving without an operator present.
func (c *Console) Request(ctx context.Context, ic Context, kind Kind) (Response, error) {
	c.once.Do(func() { go c.readLines() })

	id, err := gonanoid.New()
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate request id: %w", err)
	}

	c.logger.Info().
		Str("request_id", id).
		Int("step", ic.StepNumber).
		Str("title", ic.StepTitle).
		Str("type", string(kind)).
		Msg("Requesting human intervention")

	c.printContext(ic)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		fmt.Fprint(c.out, "command > ")

		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()

		case <-timer.C:
			c.logger.Warn().
				Str("request_id", id).
				Dur("timeout", c.timeout).
				Msg("Intervention timed out, continuing")
			resp := Response{Action: ActionContinue, Message: "intervention timed out"}
			c.record(id, ic, kind, Response{Action: actionTimeout, Message: resp.Message})
			return resp, nil

		case line, ok := <-c.lines:
			if !ok {
				// Input closed (EOF); nobody is answering.
				c.logger.Warn().Str("request_id", id).Msg("Operator input closed, continuing")
				resp := Response{Action: ActionContinue, Message: "operator input closed"}
				c.record(id, ic, kind, resp)
				return resp, nil
			}
			resp, feedback := parseCommand(line)
			if resp == nil {
				if feedback == "" {
					feedback = "Unrecognized command, try again (help lists commands)"
				}
				fmt.Fprintln(c.out, feedback)
				continue
			}
			c.record(id, ic, kind, *resp)
			return *resp, nil
		}
	}
}

func (c *Console) readLines() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	close(c.lines)
}

func (c *Console) printContext(ic Context) {
	w := c.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "Human intervention required")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Step:    %d - %s\n", ic.StepNumber, ic.StepTitle)
	fmt.Fprintf(w, "Error:   %s\n", ic.ErrorMessage)
	fmt.Fprintf(w, "Retries: %d\n", ic.RetryCount)
	if ic.PageURL != "" {
		fmt.Fprintf(w, "Page:    %s\n", ic.PageURL)
	}
	if ic.ScreenshotPath != "" {
		fmt.Fprintf(w, "Shot:    %s\n", ic.ScreenshotPath)
	}
	if len(ic.PreviousAttempts) > 0 {
		fmt.Fprintln(w, "Previous attempts:")
		for i, attempt := range ic.PreviousAttempts {
			fmt.Fprintf(w, "  %d. %s\n", i+1, attempt)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, commandHelp)
	fmt.Fprintln(w, strings.Repeat("-", 60))
}

func (c *Console) record(id string, ic Context, kind Kind, resp Response) {
	c.history.Append(Record{
		ID:           id,
		Timestamp:    time.Now(),
		Kind:         kind,
		StepNumber:   ic.StepNumber,
		StepTitle:    ic.StepTitle,
		ErrorMessage: ic.ErrorMessage,
		RetryCount:   ic.RetryCount,
		Response:     resp,
	})
}
