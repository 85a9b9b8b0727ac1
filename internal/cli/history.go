package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fikri/webpilot/internal/config"
	"github.com/fikri/webpilot/internal/logger"
	"github.com/fikri/webpilot/internal/store"
)

var (
	historyLimit int
	historyRunID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived test runs",
	Long: `List past test runs from the local archive. Use --run to show the
step-by-step attempts of a single run.`,
	RunE:         runHistory,
	SilenceUsage: true,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "show step attempts for one run id")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: "error", Console: true})
	if err != nil {
		return err
	}
	defer log.Close()

	archive, err := store.Open(cfg.HistoryDB, *log.Zerolog())
	if err != nil {
		return fmt.Errorf("failed to open run archive: %w", err)
	}
	defer archive.Close()

	out := cmd.OutOrStdout()

	if historyRunID != "" {
		attempts, err := archive.LoadAttempts(cmd.Context(), historyRunID)
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			fmt.Fprintf(out, "No attempts found for run %s\n", historyRunID)
			return nil
		}
		for _, a := range attempts {
			status := "PASS"
			if !a.Success {
				status = "FAIL"
			}
			fmt.Fprintf(out, "%s  step %d  %-30s  %s", status, a.StepNumber, a.Title, a.ExecutionTime.Round(time.Millisecond))
			if a.ErrorMessage != "" {
				fmt.Fprintf(out, "  (%s)", a.ErrorMessage)
			}
			if a.InterventionUsed && a.Intervention != nil {
				fmt.Fprintf(out, "  [operator: %s]", a.Intervention.Action)
			}
			fmt.Fprintln(out)
		}
		return nil
	}

	records, err := archive.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No archived runs yet.")
		return nil
	}

	for _, r := range records {
		status := "PASS"
		if !r.Success {
			status = "FAIL"
		}
		fmt.Fprintf(out, "%s  %s  %-30s  %s  %.1fs  %d attempts\n",
			status, r.StartedAt.Format("2006-01-02 15:04"), r.TestName, r.RunID, r.TotalSeconds, r.Attempts)
	}
	return nil
}
