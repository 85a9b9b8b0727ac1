package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlan = `---
test_name: "login flow"
environment: "staging"
timeout: 120
retry_count: 2
---

## Login flow

**Objective:**
Sign in to the dashboard and verify the landing page.

### Step 1: Open the login page
- Navigate to https://example.com/login
- Wait for the login form to appear

### Step 2: Submit credentials
- Type the username into the username field
- Type the password into the password field
- Click the sign-in button
Expected result: The dashboard loads

### Step 3: Verify landing page
- Check that the page title contains "Dashboard"

Expected results:
- User is signed in
- Dashboard widgets are visible
`

func TestParse(t *testing.T) {
	p := NewParser()

	t.Run("should parse metadata from front matter", func(t *testing.T) {
		tp, err := p.Parse(samplePlan)
		require.NoError(t, err)

		assert.Equal(t, "login flow", tp.Metadata.TestName)
		assert.Equal(t, "staging", tp.Metadata.Environment)
		assert.Equal(t, 120, tp.Metadata.Timeout)
		require.NotNil(t, tp.Metadata.RetryCount)
		assert.Equal(t, 2, *tp.Metadata.RetryCount)
	})

	t.Run("should parse steps in order with contiguous numbers", func(t *testing.T) {
		tp, err := p.Parse(samplePlan)
		require.NoError(t, err)

		require.Len(t, tp.Steps, 3)
		assert.Equal(t, 1, tp.Steps[0].Number)
		assert.Equal(t, "Open the login page", tp.Steps[0].Title)
		assert.Equal(t, 2, tp.Steps[1].Number)
		assert.Equal(t, 3, tp.Steps[2].Number)
	})

	t.Run("should collect bullet actions per step", func(t *testing.T) {
		tp, err := p.Parse(samplePlan)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"Navigate to https://example.com/login",
			"Wait for the login form to appear",
		}, tp.Steps[0].Actions)
		assert.Len(t, tp.Steps[1].Actions, 3)
	})

	t.Run("should parse inline expected result", func(t *testing.T) {
		tp, err := p.Parse(samplePlan)
		require.NoError(t, err)

		assert.Equal(t, "The dashboard loads", tp.Steps[1].ExpectedResult)
		assert.Empty(t, tp.Steps[0].ExpectedResult)
	})

	t.Run("should parse objective", func(t *testing.T) {
		tp, err := p.Parse(samplePlan)
		require.NoError(t, err)

		assert.Contains(t, tp.Objective, "Sign in to the dashboard")
	})

	t.Run("should parse plan-level expected results", func(t *testing.T) {
		tp, err := p.Parse(samplePlan)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"User is signed in",
			"Dashboard widgets are visible",
		}, tp.ExpectedResults)
	})

	t.Run("should not leak the expected results trailer into the last step", func(t *testing.T) {
		tp, err := p.Parse(samplePlan)
		require.NoError(t, err)

		assert.NotContains(t, tp.Steps[2].Description, "Expected results")
		assert.Equal(t, []string{`Check that the page title contains "Dashboard"`}, tp.Steps[2].Actions)
	})

	t.Run("should apply defaults without front matter", func(t *testing.T) {
		tp, err := p.Parse("### Step 1: Only step\n- Do the thing\n")
		require.NoError(t, err)

		assert.Equal(t, "unnamed test", tp.Metadata.TestName)
		assert.Equal(t, "test", tp.Metadata.Environment)
		assert.Equal(t, 300, tp.Metadata.Timeout)
		assert.Nil(t, tp.Metadata.RetryCount, "absent retry_count leaves the budget to the runner config")
	})

	t.Run("should keep an explicit zero retry count", func(t *testing.T) {
		tp, err := p.Parse("---\ntest_name: strict\nretry_count: 0\n---\n\n### Step 1: Only step\n- Do the thing\n")
		require.NoError(t, err)

		require.NotNil(t, tp.Metadata.RetryCount)
		assert.Equal(t, 0, *tp.Metadata.RetryCount)
	})

	t.Run("should reject a plan without steps", func(t *testing.T) {
		_, err := p.Parse("just some prose\n")
		assert.Error(t, err)
	})

	t.Run("should reject non-contiguous step numbers", func(t *testing.T) {
		_, err := p.Parse("### Step 1: First\n- a\n### Step 3: Third\n- b\n")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step at position 1")
	})
}

func TestParseFile(t *testing.T) {
	p := NewParser()

	t.Run("should parse a markdown file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "plan.md")
		require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0644))

		tp, err := p.ParseFile(path)
		require.NoError(t, err)
		assert.Equal(t, "login flow", tp.Metadata.TestName)
	})

	t.Run("should fail for a missing file", func(t *testing.T) {
		_, err := p.ParseFile(filepath.Join(t.TempDir(), "absent.md"))
		assert.Error(t, err)
	})
}

func TestStepByNumber(t *testing.T) {
	p := NewParser()
	tp, err := p.Parse(samplePlan)
	require.NoError(t, err)

	t.Run("should find an existing step", func(t *testing.T) {
		step := tp.StepByNumber(2)
		require.NotNil(t, step)
		assert.Equal(t, "Submit credentials", step.Title)
	})

	t.Run("should return nil for an unknown number", func(t *testing.T) {
		assert.Nil(t, tp.StepByNumber(99))
	})
}
