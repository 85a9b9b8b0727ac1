package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fikri/webpilot/internal/config"
)

func resetRunFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		for _, name := range []string{"retries", "headless", "timeout"} {
			f := runCmd.Flags().Lookup(name)
			require.NotNil(t, f)
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		}
	})
}

func TestApplyRunFlags(t *testing.T) {
	t.Run("should propagate an explicit --retries 0", func(t *testing.T) {
		resetRunFlags(t)
		require.NoError(t, runCmd.Flags().Set("retries", "0"))

		cfg := config.DefaultConfig()
		applyRunFlags(runCmd, cfg)

		assert.Equal(t, 0, cfg.MaxRetries, "zero retries must survive into the engine config")
	})

	t.Run("should keep the configured retries when the flag is untouched", func(t *testing.T) {
		resetRunFlags(t)

		cfg := config.DefaultConfig()
		cfg.MaxRetries = 5
		applyRunFlags(runCmd, cfg)

		assert.Equal(t, 5, cfg.MaxRetries)
	})

	t.Run("should override step timeout only when set", func(t *testing.T) {
		resetRunFlags(t)
		require.NoError(t, runCmd.Flags().Set("timeout", "120"))

		cfg := config.DefaultConfig()
		applyRunFlags(runCmd, cfg)

		assert.Equal(t, 120, cfg.StepTimeout)
	})
}
