package runner

import "fmt"

// stepOutcome tells the run loop what to do after a step attempt. It
// replaces string actions with a closed set of tags.
type stepOutcome struct {
	kind outcomeKind
	// target is the 1-based step number for outcomeGoto.
	target int
}

type outcomeKind int

const (
	// outcomeAdvance moves to the next step.
	outcomeAdvance outcomeKind = iota
	// outcomeRetry re-executes the current step.
	outcomeRetry
	// outcomeGoto jumps to an arbitrary step number.
	outcomeGoto
	// outcomeAbort ends the run.
	outcomeAbort
)

func advance() stepOutcome      { return stepOutcome{kind: outcomeAdvance} }
func retryStep() stepOutcome    { return stepOutcome{kind: outcomeRetry} }
func gotoStep(n int) stepOutcome { return stepOutcome{kind: outcomeGoto, target: n} }
func abort() stepOutcome        { return stepOutcome{kind: outcomeAbort} }

func (o stepOutcome) String() string {
	switch o.kind {
	case outcomeAdvance:
		return "advance"
	case outcomeRetry:
		return "retry"
	case outcomeGoto:
		return fmt.Sprintf("goto:%d", o.target)
	case outcomeAbort:
		return "abort"
	default:
		return "unknown"
	}
}
