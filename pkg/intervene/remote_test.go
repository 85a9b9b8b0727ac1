package intervene

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialOperator spins up a websocket endpoint driven by `operator` and
// returns the runner-side connection.
func dialOperator(t *testing.T, operator func(conn *websocket.Conn)) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		operator(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRemoteRequest(t *testing.T) {
	t.Run("should push context and apply the operator decision", func(t *testing.T) {
		var received remoteRequest
		conn := dialOperator(t, func(conn *websocket.Conn) {
			require.NoError(t, conn.ReadJSON(&received))
			require.NoError(t, conn.WriteJSON(Response{Action: ActionGoto, SkipToStep: 4}))
		})

		history := NewHistory()
		r := NewRemote(conn, time.Second, history, zerolog.Nop())

		resp, err := r.Request(context.Background(), sampleContext(), KindErrorRetry)
		require.NoError(t, err)
		assert.Equal(t, ActionGoto, resp.Action)
		assert.Equal(t, 4, resp.SkipToStep)

		assert.Equal(t, "intervention_required", received.Type)
		assert.Equal(t, 2, received.Context.StepNumber)
		assert.NotEmpty(t, received.RequestID)
		assert.Equal(t, 1, history.Len())
	})

	t.Run("should default an empty action to continue", func(t *testing.T) {
		conn := dialOperator(t, func(conn *websocket.Conn) {
			var req remoteRequest
			require.NoError(t, conn.ReadJSON(&req))
			require.NoError(t, conn.WriteJSON(map[string]string{"message": "looks fine"}))
		})

		r := NewRemote(conn, time.Second, NewHistory(), zerolog.Nop())
		resp, err := r.Request(context.Background(), sampleContext(), KindErrorRetry)
		require.NoError(t, err)
		assert.Equal(t, ActionContinue, resp.Action)
	})

	t.Run("should fall back to continue when the operator stays silent", func(t *testing.T) {
		conn := dialOperator(t, func(conn *websocket.Conn) {
			var req remoteRequest
			_ = conn.ReadJSON(&req)
			// never answer
			time.Sleep(500 * time.Millisecond)
		})

		history := NewHistory()
		r := NewRemote(conn, 30*time.Millisecond, history, zerolog.Nop())

		resp, err := r.Request(context.Background(), sampleContext(), KindErrorRetry)
		require.NoError(t, err)
		assert.Equal(t, ActionContinue, resp.Action)

		records := history.Records()
		require.Len(t, records, 1)
		assert.Equal(t, actionTimeout, records[0].Response.Action)
	})
}
