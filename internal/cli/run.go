package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fikri/webpilot/internal/config"
	"github.com/fikri/webpilot/internal/logger"
	"github.com/fikri/webpilot/internal/store"
	"github.com/fikri/webpilot/pkg/agent"
	"github.com/fikri/webpilot/pkg/browser"
	"github.com/fikri/webpilot/pkg/intervene"
	"github.com/fikri/webpilot/pkg/plan"
	"github.com/fikri/webpilot/pkg/report"
	"github.com/fikri/webpilot/pkg/runner"
)

var (
	runHeadless   bool
	runNoVision   bool
	runEnv        string
	runRetries    int
	runTimeout    int
	runWatch      bool
	runSchedule   string
	runRemote     string
	runReportsDir string
)

var runCmd = &cobra.Command{
	Use:   "run <plan.md>",
	Short: "Execute a test plan",
	Long: `Execute a markdown test plan in a browser session.

Each step is handed to the AI agent with the plan objective and any
operator guidance collected so far. Failed steps retry automatically;
once retries are exhausted the run pauses and asks you what to do
(continue, skip, retry, hint, modify, goto, status). JSON and HTML
reports are written when the run finishes.`,
	Args:         cobra.ExactArgs(1),
	RunE:         runRun,
	SilenceUsage: true,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run the browser headless")
	runCmd.Flags().BoolVar(&runNoVision, "no-vision", false, "disable screenshot context for the agent")
	runCmd.Flags().StringVar(&runEnv, "env", "", "environment label override for the report")
	runCmd.Flags().IntVar(&runRetries, "retries", 0, "automatic retries per step, 0 escalates immediately (overrides config)")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "step timeout in seconds (overrides config)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "re-run whenever the plan file changes")
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "run on a cron schedule instead of once")
	runCmd.Flags().StringVar(&runRemote, "remote", "", "websocket URL of a remote operator for interventions")
	runCmd.Flags().StringVar(&runReportsDir, "reports-dir", "", "directory for generated reports (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case runSchedule != "":
		return runOnSchedule(ctx, cfg, *log.Zerolog(), planPath)
	case runWatch:
		return runOnChange(ctx, cfg, *log.Zerolog(), planPath)
	default:
		return executePlan(ctx, cfg, *log.Zerolog(), planPath)
	}
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = runHeadless
	}
	if runNoVision {
		cfg.UseVision = false
	}
	if cmd.Flags().Changed("retries") && runRetries >= 0 {
		cfg.MaxRetries = runRetries
	}
	if runTimeout > 0 {
		cfg.StepTimeout = runTimeout
	}
	if runReportsDir != "" {
		cfg.ReportsDir = runReportsDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

// executePlan runs one plan start to finish and writes all artifacts.
// A failed run returns an error so the process exits non-zero.
func executePlan(ctx context.Context, cfg *config.Config, log zerolog.Logger, planPath string) error {
	p, err := plan.NewParser().ParseFile(planPath)
	if err != nil {
		return fmt.Errorf("failed to parse test plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid test plan: %w", err)
	}
	if runEnv != "" {
		p.Metadata.Environment = runEnv
	}

	session := browser.NewManager(browser.Config{
		Headless:       cfg.Browser.Headless,
		NoSandbox:      cfg.Browser.NoSandbox,
		ChromePath:     cfg.Browser.ChromePath,
		UserDataDir:    cfg.Browser.UserDataDir,
		CDPPort:        cfg.Browser.CDPPort,
		ScreenshotsDir: cfg.ScreenshotsDir,
	}, log)

	invoker, err := agent.NewInvoker(agent.InvokerConfig{
		Profiles: agentProfiles(cfg),
		Model: agent.ModelConfig{
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
		},
		Browser: session,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	history := intervene.NewHistory()
	gateway, closeGateway, err := buildGateway(cfg, history, log)
	if err != nil {
		return err
	}
	defer closeGateway()

	engine := runner.NewEngine(runner.Config{
		MaxRetries:  cfg.MaxRetries,
		StepTimeout: time.Duration(cfg.StepTimeout) * time.Second,
		UseVision:   cfg.UseVision,
	}, &sessionAdapter{session}, invoker, gateway, log)

	result, runErr := engine.Run(ctx, p)
	if result != nil {
		writeArtifacts(ctx, cfg, log, p, result, history)
	}
	if runErr != nil {
		return runErr
	}

	if !result.Success {
		return fmt.Errorf("test failed: %s", result.FinalMessage)
	}
	fmt.Printf("Test passed: %s (%s)\n", p.Metadata.TestName, result.TotalTime.Round(time.Millisecond))
	return nil
}

// writeArtifacts persists reports, the run archive, and the
// intervention history. Artifact failures are logged, not fatal; the
// run outcome matters more than its paperwork.
func writeArtifacts(ctx context.Context, cfg *config.Config, log zerolog.Logger, p *plan.TestPlan, result *runner.RunResult, history *intervene.History) {
	gen := report.NewGenerator(log)
	if path, err := gen.WriteJSON(p, result, cfg.ReportsDir); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON report")
	} else {
		fmt.Printf("Report: %s\n", path)
	}
	if path, err := gen.WriteHTML(p, result, cfg.ReportsDir); err != nil {
		log.Error().Err(err).Msg("Failed to write HTML report")
	} else {
		fmt.Printf("Report: %s\n", path)
	}

	if history.Len() > 0 {
		path := filepath.Join(cfg.ReportsDir, fmt.Sprintf("interventions_%s.json", result.RunID))
		if err := history.SaveTo(path); err != nil {
			log.Error().Err(err).Msg("Failed to save intervention history")
		}
	}

	archive, err := store.Open(cfg.HistoryDB, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open run archive")
		return
	}
	defer archive.Close()
	if err := archive.SaveRun(ctx, result); err != nil {
		log.Error().Err(err).Msg("Failed to archive run")
	}
}

// buildGateway picks the intervention channel: the local console by
// default, a remote operator over websocket when --remote is set.
func buildGateway(cfg *config.Config, history *intervene.History, log zerolog.Logger) (intervene.Gateway, func(), error) {
	timeout := time.Duration(cfg.InterventionTimeout) * time.Second
	if runRemote == "" {
		return intervene.NewConsole(timeout, history, log), func() {}, nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(runRemote, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to remote operator: %w", err)
	}
	return intervene.NewRemote(conn, timeout, history, log), func() { conn.Close() }, nil
}

func agentProfiles(cfg *config.Config) []agent.AuthProfile {
	profiles := make([]agent.AuthProfile, 0, len(cfg.AI.Profiles))
	for _, p := range cfg.AI.Profiles {
		profiles = append(profiles, agent.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Priority: p.Priority,
		})
	}
	return profiles
}

// sessionAdapter narrows *browser.Manager to the runner's session
// interface. Only Protect needs adapting; the concrete guard type
// cannot satisfy an interface return directly.
type sessionAdapter struct {
	*browser.Manager
}

func (a *sessionAdapter) Protect() runner.Guard {
	return a.Manager.Protect()
}

// runOnChange executes the plan once, then re-executes on every write
// to the plan file until the context is cancelled.
func runOnChange(ctx context.Context, cfg *config.Config, log zerolog.Logger, planPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory; editors replace files on save, which drops
	// a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(planPath)); err != nil {
		return fmt.Errorf("failed to watch plan directory: %w", err)
	}

	if err := executePlan(ctx, cfg, log, planPath); err != nil {
		log.Error().Err(err).Msg("Run failed")
	}
	fmt.Println("Watching for plan changes. Press Ctrl+C to stop.")

	var debounce *time.Timer
	runs := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(planPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				select {
				case runs <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		case <-runs:
			log.Info().Str("plan", planPath).Msg("Plan changed, re-running")
			if err := executePlan(ctx, cfg, log, planPath); err != nil {
				log.Error().Err(err).Msg("Run failed")
			}
		}
	}
}

// runOnSchedule executes the plan on a cron schedule until cancelled.
func runOnSchedule(ctx context.Context, cfg *config.Config, log zerolog.Logger, planPath string) error {
	c := cron.New()
	_, err := c.AddFunc(runSchedule, func() {
		log.Info().Str("plan", planPath).Str("schedule", runSchedule).Msg("Scheduled run starting")
		if err := executePlan(ctx, cfg, log, planPath); err != nil {
			log.Error().Err(err).Msg("Scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", runSchedule, err)
	}

	c.Start()
	fmt.Printf("Scheduled %s with %q. Press Ctrl+C to stop.\n", planPath, runSchedule)
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
