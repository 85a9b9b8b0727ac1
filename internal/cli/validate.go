package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fikri/webpilot/pkg/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.md>",
	Short: "Validate a test plan without running it",
	Long: `Parse a markdown test plan and check its structure: front matter,
objective, numbered steps, and expected results. Nothing is executed.`,
	Args:         cobra.ExactArgs(1),
	RunE:         runValidate,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := plan.NewParser().ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse test plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid test plan: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Plan OK: %s\n", p.Metadata.TestName)
	if p.Metadata.Environment != "" {
		fmt.Fprintf(out, "  Environment: %s\n", p.Metadata.Environment)
	}
	fmt.Fprintf(out, "  Steps: %d\n", len(p.Steps))
	for _, step := range p.Steps {
		fmt.Fprintf(out, "    %d. %s\n", step.Number, step.Title)
	}
	fmt.Fprintf(out, "  Expected results: %d\n", len(p.ExpectedResults))
	return nil
}
