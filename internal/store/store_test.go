package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fikri/webpilot/pkg/intervene"
	"github.com/fikri/webpilot/pkg/runner"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, success bool) *runner.RunResult {
	return &runner.RunResult{
		RunID:       id,
		TestName:    "Checkout flow",
		Environment: "staging",
		Success:     success,
		StartedAt:   time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		TotalTime:   42 * time.Second,
		StepResults: []runner.StepResult{
			{StepNumber: 1, Title: "Open landing page", Success: true, ExecutionTime: 3 * time.Second},
			{
				StepNumber:       2,
				Title:            "Submit payment",
				Success:          false,
				ExecutionTime:    12 * time.Second,
				ErrorMessage:     "element not found: #pay",
				ScreenshotPath:   "screenshots/step_02_1.png",
				InterventionUsed: true,
				Intervention: &intervene.Response{
					Action:                 intervene.ActionContinue,
					AdditionalInstructions: "use the alternate pay button",
				},
			},
		},
		FinalMessage: "failed at step 2",
	}
}

func TestStore(t *testing.T) {
	t.Run("should save and list runs newest first", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		first := sampleRun("run-1", true)
		second := sampleRun("run-2", false)
		second.StartedAt = first.StartedAt.Add(time.Hour)

		require.NoError(t, s.SaveRun(ctx, first))
		require.NoError(t, s.SaveRun(ctx, second))

		records, err := s.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "run-2", records[0].RunID)
		assert.False(t, records[0].Success)
		assert.Equal(t, "run-1", records[1].RunID)
		assert.True(t, records[1].Success)
		assert.Equal(t, 2, records[0].Attempts)
		assert.Equal(t, "Checkout flow", records[0].TestName)
		assert.InDelta(t, 42.0, records[0].TotalSeconds, 0.001)
	})

	t.Run("should round-trip step attempts including interventions", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", false)))

		attempts, err := s.LoadAttempts(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, attempts, 2)

		assert.Equal(t, 1, attempts[0].StepNumber)
		assert.True(t, attempts[0].Success)
		assert.Nil(t, attempts[0].Intervention)

		assert.Equal(t, "Submit payment", attempts[1].Title)
		assert.Equal(t, "element not found: #pay", attempts[1].ErrorMessage)
		assert.True(t, attempts[1].InterventionUsed)
		require.NotNil(t, attempts[1].Intervention)
		assert.Equal(t, intervene.ActionContinue, attempts[1].Intervention.Action)
		assert.Equal(t, "use the alternate pay button", attempts[1].Intervention.AdditionalInstructions)
		assert.Equal(t, 12*time.Second, attempts[1].ExecutionTime)
	})

	t.Run("should reject duplicate run ids", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", true)))
		assert.Error(t, s.SaveRun(ctx, sampleRun("run-1", true)))
	})

	t.Run("should limit listed runs", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		base := sampleRun("seed", true)
		for i := 0; i < 5; i++ {
			r := *base
			r.RunID = filepath.Base(t.Name()) + string(rune('a'+i))
			r.StartedAt = base.StartedAt.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.SaveRun(ctx, &r))
		}

		records, err := s.ListRuns(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("should require a database path", func(t *testing.T) {
		_, err := Open("", zerolog.Nop())
		assert.Error(t, err)
	})
}
