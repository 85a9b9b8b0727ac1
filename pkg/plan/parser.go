package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	frontMatterPattern = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*\n`)
	stepPattern        = regexp.MustCompile(`(?m)^#{1,3}\s+Step\s+(\d+)\s*:\s*(.+)$`)
	objectivePattern   = regexp.MustCompile(`(?s)\*\*\s*Objective\s*:?\s*\*\*:?\s*\n(.+?)(?:\n[-*]|\n#{1,3}|\n\*\*|\z)`)
	expectedPattern    = regexp.MustCompile(`(?s)Expected results\s*:\s*\n(.*?)(?:\n#{1,3}|\z)`)
)

// Parser parses markdown test plans. The format is a YAML front matter
// block followed by an objective, "### Step N: title" headings with
// bullet-list actions, and an optional "Expected results:" trailer.
type Parser struct{}

// NewParser creates a markdown plan parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses a plan from disk. Files ending in .json
// are routed to the schema-validated JSON parser.
func (p *Parser) ParseFile(path string) (*TestPlan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	if filepath.Ext(path) == ".json" {
		return ParseJSON(content)
	}
	return p.Parse(string(content))
}

// Parse parses a markdown test plan from a string.
func (p *Parser) Parse(content string) (*TestPlan, error) {
	meta, err := p.parseMetadata(content)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(frontMatterPattern.ReplaceAllString(content, ""))

	tp := &TestPlan{
		Metadata:        meta,
		Objective:       p.parseObjective(body),
		Steps:           p.parseSteps(body),
		ExpectedResults: p.parseExpectedResults(body),
	}

	if err := tp.Validate(); err != nil {
		return nil, err
	}
	return tp, nil
}

func (p *Parser) parseMetadata(content string) (Metadata, error) {
	meta := Metadata{
		TestName:    "unnamed test",
		Environment: "test",
		Timeout:     300,
	}

	m := frontMatterPattern.FindStringSubmatch(content)
	if m == nil {
		return meta, nil
	}

	if err := yaml.Unmarshal([]byte(m[1]), &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse plan front matter: %w", err)
	}
	if meta.TestName == "" {
		meta.TestName = "unnamed test"
	}
	if meta.Environment == "" {
		meta.Environment = "test"
	}
	return meta, nil
}

func (p *Parser) parseObjective(body string) string {
	if m := objectivePattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func (p *Parser) parseSteps(body string) []Step {
	matches := stepPattern.FindAllStringSubmatchIndex(body, -1)
	steps := make([]Step, 0, len(matches))

	for i, loc := range matches {
		number, _ := strconv.Atoi(body[loc[2]:loc[3]])
		title := strings.TrimSpace(body[loc[4]:loc[5]])

		start := loc[1]
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		section := strings.TrimSpace(body[start:end])

		// The expected-results trailer belongs to the plan, not the
		// final step.
		if trailer := expectedPattern.FindStringIndex(section); trailer != nil {
			section = strings.TrimSpace(section[:trailer[0]])
		}

		steps = append(steps, Step{
			Number:         number,
			Title:          title,
			Description:    section,
			Actions:        parseBullets(section),
			ExpectedResult: parseStepExpected(section),
		})
	}

	return steps
}

func (p *Parser) parseExpectedResults(body string) []string {
	m := expectedPattern.FindStringSubmatch(body)
	if m == nil {
		return nil
	}

	var results []string
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			line = strings.TrimSpace(line[1:])
		}
		if line != "" {
			results = append(results, line)
		}
	}
	return results
}

// parseBullets extracts "-" and "*" list items as action strings.
func parseBullets(section string) []string {
	var actions []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			if action := strings.TrimSpace(line[1:]); action != "" {
				actions = append(actions, action)
			}
		}
	}
	return actions
}

// parseStepExpected extracts an inline "Expected result:" line from a
// step section, if present.
func parseStepExpected(section string) string {
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Expected result:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
