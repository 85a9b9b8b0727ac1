package runner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fikri/webpilot/pkg/plan"
)

// stepState is the mutable per-step bookkeeping kept beside the plan:
// retry counters, operator guidance, and replacement actions. The plan
// itself is never modified.
type stepState struct {
	retries  int
	guidance []string
	actions  []string
}

var (
	longNumberPattern = regexp.MustCompile(`\b\d{7,15}\b`)
	shortCodePattern  = regexp.MustCompile(`\b\d{4,6}\b`)
)

// extractPinnedValues scans the whole plan for literal values the
// agent must reproduce exactly, such as phone numbers and verification
// codes. Pinning them in the task keeps the model from inventing its
// own data.
func extractPinnedValues(steps []plan.Step) map[string]string {
	values := map[string]string{}

	for _, step := range steps {
		for _, action := range step.Actions {
			lower := strings.ToLower(action)

			if strings.Contains(lower, "phone") || strings.Contains(lower, "mobile") {
				if m := longNumberPattern.FindString(action); m != "" {
					values["phone number"] = m
				}
			}

			if strings.Contains(lower, "code") {
				for _, m := range shortCodePattern.FindAllString(action, -1) {
					if !strings.Contains(values["phone number"], m) {
						values["verification code"] = m
						break
					}
				}
			}
		}
	}

	return values
}

// buildTask renders the full task description handed to the agent for
// one step: objective, pinned values, the step's actions (or their
// operator replacement), the expected result, and accumulated
// guidance.
func buildTask(step plan.Step, p *plan.TestPlan, state *stepState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Step %d: %s\n\n", step.Number, step.Title)
	b.WriteString("### Objective:\n")
	b.WriteString(p.Objective)
	b.WriteString("\n\n")

	pinned := extractPinnedValues(p.Steps)
	if len(pinned) > 0 {
		b.WriteString("### Pinned values (use these exactly, no substitutes):\n")
		for _, label := range []string{"phone number", "verification code"} {
			if v, ok := pinned[label]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", label, v)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("### Current step requirements:\n")
	actions := step.Actions
	if len(state.actions) > 0 {
		actions = state.actions
	}
	for _, action := range actions {
		fmt.Fprintf(&b, "- %s\n", directAction(action, pinned))
	}

	if step.ExpectedResult != "" {
		b.WriteString("\n### Expected result:\n")
		b.WriteString(step.ExpectedResult)
		b.WriteString("\n")
	}

	if len(state.guidance) > 0 {
		b.WriteString("\n### Operator guidance:\n")
		for _, g := range state.guidance {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}

	b.WriteString("\n### Other requirements:\n")
	b.WriteString("- Inspect the page content carefully before acting\n")
	b.WriteString("- Wait patiently for slow pages to finish loading\n")
	b.WriteString("- If an action fails, try a different approach\n")

	return b.String()
}

// directAction restates an action with its pinned value inlined, so
// the instruction does not rely on the model resolving references.
func directAction(action string, pinned map[string]string) string {
	lower := strings.ToLower(action)

	if v, ok := pinned["phone number"]; ok && (strings.Contains(lower, "phone") || strings.Contains(lower, "mobile")) {
		if strings.Contains(action, v) {
			return fmt.Sprintf("%s (enter exactly: %s)", action, v)
		}
	}
	if v, ok := pinned["verification code"]; ok && strings.Contains(lower, "code") {
		if strings.Contains(action, v) {
			return fmt.Sprintf("%s (enter exactly: %s)", action, v)
		}
	}
	return action
}
