package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Run("should parse a valid JSON plan", func(t *testing.T) {
		content := []byte(`{
			"metadata": {"test_name": "checkout", "retry_count": 1},
			"objective": "Buy a widget",
			"steps": [
				{"step_number": 1, "title": "Open shop", "actions": ["Navigate to the shop"]},
				{"step_number": 2, "title": "Add to cart", "actions": ["Click add to cart"]}
			]
		}`)

		tp, err := ParseJSON(content)
		require.NoError(t, err)

		assert.Equal(t, "checkout", tp.Metadata.TestName)
		assert.Equal(t, "test", tp.Metadata.Environment)
		assert.Equal(t, 300, tp.Metadata.Timeout)
		require.NotNil(t, tp.Metadata.RetryCount)
		assert.Equal(t, 1, *tp.Metadata.RetryCount)
		require.Len(t, tp.Steps, 2)
		assert.Equal(t, "Open shop", tp.Steps[0].Title)
	})

	t.Run("should reject a plan missing required fields", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{"metadata": {"test_name": "x"}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid plan")
	})

	t.Run("should reject a step without actions", func(t *testing.T) {
		content := []byte(`{
			"metadata": {"test_name": "x"},
			"steps": [{"step_number": 1, "title": "t", "actions": []}]
		}`)

		_, err := ParseJSON(content)
		assert.Error(t, err)
	})

	t.Run("should reject malformed JSON", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{not json`))
		assert.Error(t, err)
	})

	t.Run("should reject non-contiguous step numbers", func(t *testing.T) {
		content := []byte(`{
			"metadata": {"test_name": "x"},
			"steps": [
				{"step_number": 2, "title": "t", "actions": ["a"]}
			]
		}`)

		_, err := ParseJSON(content)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step at position 0")
	})
}
