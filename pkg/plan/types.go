package plan

import "fmt"

// Metadata holds plan-level settings parsed from the YAML front matter.
// RetryCount is a pointer so a plan can say retry_count: 0 (escalate on
// the first failure) and still leave the budget to the runner config
// when the key is absent.
type Metadata struct {
	TestName    string `json:"test_name" yaml:"test_name"`
	Environment string `json:"environment" yaml:"environment"`
	Timeout     int    `json:"timeout" yaml:"timeout"`         // seconds per step
	RetryCount  *int   `json:"retry_count,omitempty" yaml:"retry_count"` // automatic retries per step
}

// Step is one unit of work in a test plan. Steps are read-only after
// parsing; per-run mutable state (retry counters, operator guidance,
// replaced actions) lives in the runner's side table, keyed by Number.
type Step struct {
	Number         int      `json:"step_number"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Actions        []string `json:"actions"`
	ExpectedResult string   `json:"expected_result,omitempty"`
}

// TestPlan is an ordered sequence of steps driving one run.
type TestPlan struct {
	Metadata        Metadata `json:"metadata"`
	Objective       string   `json:"objective"`
	Steps           []Step   `json:"steps"`
	ExpectedResults []string `json:"expected_results,omitempty"`
}

// Validate checks the structural invariants of a parsed plan: at least
// one step, step numbers unique and contiguous from 1 in plan order.
func (p *TestPlan) Validate() error {
	if p.Metadata.TestName == "" {
		return fmt.Errorf("plan has no test name")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %q has no steps", p.Metadata.TestName)
	}
	for i, step := range p.Steps {
		if step.Number != i+1 {
			return fmt.Errorf("plan %q: step at position %d has number %d, want %d",
				p.Metadata.TestName, i, step.Number, i+1)
		}
		if len(step.Actions) == 0 {
			return fmt.Errorf("plan %q: step %d has no actions", p.Metadata.TestName, step.Number)
		}
	}
	return nil
}

// StepByNumber returns the step with the given number, or nil.
func (p *TestPlan) StepByNumber(n int) *Step {
	for i := range p.Steps {
		if p.Steps[i].Number == n {
			return &p.Steps[i]
		}
	}
	return nil
}
