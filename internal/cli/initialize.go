package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fikri/webpilot/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write the default configuration to the config path so you can fill
in API keys and browser settings. Refuses to overwrite an existing file.`,
	RunE:         runInit,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	if _, err := os.Stat(loader.Path()); err == nil {
		return fmt.Errorf("config already exists at %s", loader.Path())
	}

	cfg := config.DefaultConfig()
	cfg.AI.Profiles = []config.ProfileConfig{
		{ID: "main", Provider: "anthropic", APIKey: "sk-ant-REPLACE-ME"},
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration written to: %s\n", loader.Path())
	fmt.Fprintln(out, "Edit the ai.profiles section with a real API key, then run:")
	fmt.Fprintln(out, "  webpilot run <plan.md>")
	return nil
}
