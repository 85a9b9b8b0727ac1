package intervene

import (
	"strconv"
	"strings"
)

const commandHelp = `Available commands:
  continue              - resume the current step
  skip                  - skip the current step and move on
  retry                 - try the current step again
  hint "<text>"         - add extra guidance for the current step
  modify "<actions>"    - replace the current step's actions
  status                - show the current page state
  goto <step>           - jump to the given step number
  help                  - show this message`

// parseCommand turns one operator input line into a response. A nil
// response means the line did not resolve the request: the returned
// feedback (help or usage text, empty for unrecognized input) is shown
// and the operator is prompted again.
func parseCommand(line string) (*Response, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ""
	}

	cmd, arg, _ := strings.Cut(line, " ")
	cmd = strings.ToLower(cmd)
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "continue":
		return &Response{Action: ActionContinue}, ""

	case "skip":
		return &Response{Action: ActionSkip}, ""

	case "retry":
		return &Response{Action: ActionRetry}, ""

	case "hint":
		if arg == "" {
			return nil, `hint needs guidance text, e.g.: hint "click the settings button in the top right"`
		}
		return &Response{
			Action:                 ActionContinue,
			AdditionalInstructions: unquote(arg),
		}, ""

	case "modify":
		if arg == "" {
			return nil, `modify needs replacement actions, e.g.: modify "use the left sidebar menu instead"`
		}
		return &Response{
			Action:  ActionModify,
			Message: unquote(arg),
		}, ""

	case "status":
		return &Response{Action: ActionStatus}, ""

	case "goto":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return nil, "goto needs a step number, e.g.: goto 3"
		}
		return &Response{Action: ActionGoto, SkipToStep: n}, ""

	case "help":
		return nil, commandHelp

	default:
		return nil, ""
	}
}

// unquote strips one layer of surrounding quotes, matching how
// operators tend to paste quoted guidance.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
