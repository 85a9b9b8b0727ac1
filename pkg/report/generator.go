package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/fikri/webpilot/pkg/plan"
	"github.com/fikri/webpilot/pkg/runner"
)

const generatorVersion = "1.0.0"

// Data is the full report payload shared by the JSON and HTML outputs.
type Data struct {
	ReportInfo ReportInfo    `json:"report_info"`
	TestCase   TestCaseInfo  `json:"test_case"`
	Execution  ExecutionInfo `json:"execution_result"`
}

type ReportInfo struct {
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"generator_version"`
}

type TestCaseInfo struct {
	Name            string   `json:"name"`
	Environment     string   `json:"environment"`
	Objective       string   `json:"objective"`
	ExpectedResults []string `json:"expected_results,omitempty"`
	TotalSteps      int      `json:"total_steps"`
}

type ExecutionInfo struct {
	RunID        string              `json:"run_id"`
	Success      bool                `json:"success"`
	TotalTime    float64             `json:"total_time_seconds"`
	FinalMessage string              `json:"final_message"`
	StepResults  []runner.StepResult `json:"step_results"`
	Conversation []string            `json:"conversation_history,omitempty"`
	Summary      runner.Summary      `json:"summary"`
}

// Generator renders run results as JSON and HTML reports.
type Generator struct {
	logger zerolog.Logger
}

func NewGenerator(logger zerolog.Logger) *Generator {
	return &Generator{logger: logger.With().Str("component", "report").Logger()}
}

// Build assembles the report payload from a plan and its run result.
func (g *Generator) Build(p *plan.TestPlan, result *runner.RunResult) Data {
	return Data{
		ReportInfo: ReportInfo{
			GeneratedAt: time.Now(),
			Version:     generatorVersion,
		},
		TestCase: TestCaseInfo{
			Name:            p.Metadata.TestName,
			Environment:     p.Metadata.Environment,
			Objective:       p.Objective,
			ExpectedResults: p.ExpectedResults,
			TotalSteps:      len(p.Steps),
		},
		Execution: ExecutionInfo{
			RunID:        result.RunID,
			Success:      result.Success,
			TotalTime:    result.TotalTime.Seconds(),
			FinalMessage: result.FinalMessage,
			StepResults:  result.StepResults,
			Conversation: result.Conversation,
			Summary:      runner.Aggregate(result),
		},
	}
}

// WriteJSON writes test_report.json into dir and returns its path.
func (g *Generator) WriteJSON(p *plan.TestPlan, result *runner.RunResult, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(g.Build(p, result), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, "test_report.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	g.logger.Info().Str("path", path).Msg("JSON report written")
	return path, nil
}

// WriteHTML writes test_report.html into dir and returns its path.
func (g *Generator) WriteHTML(p *plan.TestPlan, result *runner.RunResult, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, "test_report.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := htmlTemplate.Execute(f, g.Build(p, result)); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	g.logger.Info().Str("path", path).Msg("HTML report written")
	return path, nil
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"seconds": func(d time.Duration) string { return fmt.Sprintf("%.2fs", d.Seconds()) },
	"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Test Report - {{.TestCase.Name}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
.container { max-width: 1100px; margin: 0 auto; background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,.1); overflow: hidden; }
.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: #fff; padding: 30px; text-align: center; }
.badge { display: inline-block; padding: 8px 16px; border-radius: 20px; font-weight: bold; margin-top: 15px; }
.pass { background: #4CAF50; color: #fff; }
.fail { background: #f44336; color: #fff; }
.content { padding: 30px; }
.grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 16px; margin-bottom: 30px; }
.card { background: #f8f9fa; padding: 16px; border-radius: 8px; border-left: 4px solid #667eea; }
.card h3 { margin: 0 0 8px; color: #667eea; font-size: .95em; }
.card .value { font-size: 1.6em; font-weight: bold; }
.step { border: 1px solid #eee; border-radius: 6px; margin-bottom: 10px; padding: 14px 18px; }
.step.ok { border-left: 4px solid #4CAF50; }
.step.err { border-left: 4px solid #f44336; }
.step .error { background: #f8d7da; color: #721c24; padding: 8px; border-radius: 4px; margin-top: 8px; }
.step .output { background: #f8f9fa; padding: 8px; border-radius: 4px; margin-top: 8px; }
.footer { text-align: center; padding: 16px; background: #f8f9fa; color: #666; border-top: 1px solid #eee; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Test Report</h1>
    <div>{{.TestCase.Name}}</div>
    {{if .Execution.Success}}<div class="badge pass">PASSED</div>{{else}}<div class="badge fail">FAILED</div>{{end}}
    <div style="margin-top:12px;opacity:.85">
      <div>Total time: {{printf "%.2f" .Execution.TotalTime}}s</div>
      <div>Generated: {{.ReportInfo.GeneratedAt.Format "2006-01-02 15:04:05"}}</div>
    </div>
  </div>
  <div class="content">
    <h2>Summary</h2>
    <div class="grid">
      <div class="card"><h3>Attempts</h3><div class="value">{{.Execution.Summary.TotalSteps}}</div></div>
      <div class="card"><h3>Passed</h3><div class="value" style="color:#4CAF50">{{.Execution.Summary.Passed}}</div></div>
      <div class="card"><h3>Failed</h3><div class="value" style="color:#f44336">{{.Execution.Summary.Failed}}</div></div>
      <div class="card"><h3>Pass rate</h3><div class="value">{{percent .Execution.Summary.PassRate}}</div></div>
      <div class="card"><h3>Interventions</h3><div class="value">{{.Execution.Summary.Interventions}}</div></div>
    </div>
    <h2>Objective</h2>
    <p>{{.TestCase.Objective}}</p>
    <h2>Step attempts</h2>
    {{range .Execution.StepResults}}
    <div class="step {{if .Success}}ok{{else}}err{{end}}">
      <strong>Step {{.StepNumber}}: {{.Title}}</strong>
      <span style="float:right">{{seconds .ExecutionTime}}</span>
      {{if .ErrorMessage}}<div class="error">{{.ErrorMessage}}</div>{{end}}
      {{if .InterventionUsed}}<div class="output">Human intervention: {{.Intervention.Action}}{{if .Intervention.AdditionalInstructions}} ({{.Intervention.AdditionalInstructions}}){{end}}</div>{{end}}
      {{if .AgentOutput}}<div class="output">{{.AgentOutput}}</div>{{end}}
    </div>
    {{end}}
  </div>
  <div class="footer">Generated by webpilot v{{.ReportInfo.Version}}</div>
</div>
</body>
</html>
`))
