package intervene

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// remoteRequest is the wire shape pushed to a connected operator UI.
type remoteRequest struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id"`
	Kind      Kind    `json:"intervention_type"`
	Context   Context `json:"context"`
}

// Remote is a gateway backed by a single websocket operator
// connection. Requests are serialized: one intervention is in flight
// at a time, matching the runner's synchronous escalation.
type Remote struct {
	timeout time.Duration
	logger  zerolog.Logger
	history *History

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRemote wraps an established operator connection. A zero timeout
// falls back to DefaultTimeout.
func NewRemote(conn *websocket.Conn, timeout time.Duration, history *History, logger zerolog.Logger) *Remote {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if history == nil {
		history = NewHistory()
	}
	return &Remote{
		timeout: timeout,
		logger:  logger.With().Str("component", "intervene").Str("gateway", "remote").Logger(),
		history: history,
		conn:    conn,
	}
}

// Request pushes the failure context to the operator and waits for a
// decision. Read timeouts resolve to continue, same as the console.
func (r *Remote) Request(ctx context.Context, ic Context, kind Kind) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := gonanoid.New()
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate request id: %w", err)
	}

	r.logger.Info().
		Str("request_id", id).
		Int("step", ic.StepNumber).
		Str("title", ic.StepTitle).
		Msg("Pushing intervention request to operator")

	deadline := time.Now().Add(r.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = r.conn.SetWriteDeadline(deadline)
	req := remoteRequest{Type: "intervention_required", RequestID: id, Kind: kind, Context: ic}
	if err := r.conn.WriteJSON(req); err != nil {
		return Response{}, fmt.Errorf("failed to send intervention request: %w", err)
	}

	_ = r.conn.SetReadDeadline(deadline)
	var resp Response
	if err := r.conn.ReadJSON(&resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			r.logger.Warn().Str("request_id", id).Dur("timeout", r.timeout).Msg("Operator did not answer, continuing")
			resp = Response{Action: ActionContinue, Message: "intervention timed out"}
			r.record(id, ic, kind, Response{Action: actionTimeout, Message: resp.Message})
			return resp, nil
		}
		return Response{}, fmt.Errorf("failed to read intervention response: %w", err)
	}

	if resp.Action == "" {
		resp.Action = ActionContinue
	}
	r.record(id, ic, kind, resp)
	return resp, nil
}

func (r *Remote) record(id string, ic Context, kind Kind, resp Response) {
	r.history.Append(Record{
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
