package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// planSchema validates the JSON plan format before unmarshalling, so
// structural problems surface as one readable error instead of a
// half-populated plan.
const planSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["metadata", "steps"],
	"properties": {
		"metadata": {
			"type": "object",
			"required": ["test_name"],
			"properties": {
				"test_name": {"type": "string", "minLength": 1},
				"environment": {"type": "string"},
				"timeout": {"type": "integer", "minimum": 1},
				"retry_count": {"type": "integer", "minimum": 0}
			}
		},
		"objective": {"type": "string"},
		"steps": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["step_number", "title", "actions"],
				"properties": {
					"step_number": {"type": "integer", "minimum": 1},
					"title": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"actions": {
						"type": "array",
						"minItems": 1,
						"items": {"type": "string", "minLength": 1}
					},
					"expected_result": {"type": "string"}
				}
			}
		},
		"expected_results": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

// ParseJSON parses and validates a JSON test plan.
func ParseJSON(content []byte) (*TestPlan, error) {
	schemaLoader := gojsonschema.NewStringLoader(planSchema)
	docLoader := gojsonschema.NewBytesLoader(content)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate plan: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("invalid plan: %s", strings.Join(problems, "; "))
	}

	var tp TestPlan
	if err := json.Unmarshal(content, &tp); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if tp.Metadata.Environment == "" {
		tp.Metadata.Environment = "test"
	}
	if tp.Metadata.Timeout == 0 {
		tp.Metadata.Timeout = 300
	}

	if err := tp.Validate(); err != nil {
		return nil, err
	}
	return &tp, nil
}
