package intervene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Run("should parse bare commands", func(t *testing.T) {
		cases := map[string]string{
			"continue": ActionContinue,
			"skip":     ActionSkip,
			"retry":    ActionRetry,
			"status":   ActionStatus,
			"CONTINUE": ActionContinue,
			"  skip  ": ActionSkip,
		}
		for input, action := range cases {
			resp, feedback := parseCommand(input)
			require.NotNil(t, resp, input)
			assert.Equal(t, action, resp.Action, input)
			assert.Empty(t, feedback)
		}
	})

	t.Run("should turn hint into continue with guidance", func(t *testing.T) {
		resp, _ := parseCommand(`hint "click the settings button"`)
		require.NotNil(t, resp)
		assert.Equal(t, ActionContinue, resp.Action)
		assert.Equal(t, "click the settings button", resp.AdditionalInstructions)
	})

	t.Run("should reject hint without text", func(t *testing.T) {
		resp, feedback := parseCommand("hint")
		assert.Nil(t, resp)
		assert.Contains(t, feedback, "hint")
	})

	t.Run("should carry modify text as the replacement action", func(t *testing.T) {
		resp, _ := parseCommand(`modify 'use the left sidebar menu'`)
		require.NotNil(t, resp)
		assert.Equal(t, ActionModify, resp.Action)
		assert.Equal(t, "use the left sidebar menu", resp.Message)
	})

	t.Run("should parse goto with a step number", func(t *testing.T) {
		resp, _ := parseCommand("goto 3")
		require.NotNil(t, resp)
		assert.Equal(t, ActionGoto, resp.Action)
		assert.Equal(t, 3, resp.SkipToStep)
	})

	t.Run("should reject goto without a valid step number", func(t *testing.T) {
		for _, input := range []string{"goto", "goto abc", "goto 0", "goto -2"} {
			resp, feedback := parseCommand(input)
			assert.Nil(t, resp, input)
			assert.Contains(t, feedback, "goto")
		}
	})

	t.Run("should answer help with the command list", func(t *testing.T) {
		resp, feedback := parseCommand("help")
		assert.Nil(t, resp)
		assert.Contains(t, feedback, "continue")
		assert.Contains(t, feedback, "goto <step>")
	})

	t.Run("should not resolve unknown or empty input", func(t *testing.T) {
		for _, input := range []string{"", "   ", "abort", "quit now"} {
			resp, feedback := parseCommand(input)
			assert.Nil(t, resp, input)
			assert.Empty(t, feedback, input)
		}
	})
}

func TestUnquote(t *testing.T) {
	t.Run("should strip one matching quote layer only", func(t *testing.T) {
		assert.Equal(t, "plain", unquote("plain"))
		assert.Equal(t, "quoted", unquote(`"quoted"`))
		assert.Equal(t, "quoted", unquote("'quoted'"))
		assert.Equal(t, `"nested"`, unquote(`""nested""`))
		assert.Equal(t, `"mismatched'`, unquote(`"mismatched'`))
	})
}
