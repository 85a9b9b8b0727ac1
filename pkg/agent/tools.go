package agent

import (
	"context"
	"fmt"
	"time"
)

// Browser is the subset of browser session operations the model can
// drive through tool calls.
type Browser interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string, timeout time.Duration) error
	ExtractText(ctx context.Context) (string, error)
	ScreenshotBase64(ctx context.Context) (string, error)
	CurrentURL() string
	PageTitle() string
}

// actionTimeout bounds a single browser action inside a tool call.
const actionTimeout = 30 * time.Second

func browserTools() []ToolSpec {
	return []ToolSpec{
		{
			Name:        "navigate",
			Description: "Navigate the browser to a URL and wait for the page to load",
			InputSchema: objectSchema(map[string]interface{}{
				"url": map[string]interface{}{"type": "string", "description": "Absolute URL to open"},
			}, "url"),
		},
		{
			Name:        "click",
			Description: "Click the first element matching a CSS selector",
			InputSchema: objectSchema(map[string]interface{}{
				"selector": map[string]interface{}{"type": "string", "description": "CSS selector of the element to click"},
			}, "selector"),
		},
		{
			Name:        "type",
			Description: "Type text into the element matching a CSS selector",
			InputSchema: objectSchema(map[string]interface{}{
				"selector": map[string]interface{}{"type": "string", "description": "CSS selector of the input element"},
				"text":     map[string]interface{}{"type": "string", "description": "Text to type"},
			}, "selector", "text"),
		},
		{
			Name:        "extract_text",
			Description: "Extract the visible text content of the current page",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
		{
			Name:        "screenshot",
			Description: "Capture a screenshot of the current page for visual inspection",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
		{
			Name:        "page_info",
			Description: "Get the current page URL and title",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// executeTool dispatches one model tool call to the browser.
func executeTool(ctx context.Context, b Browser, call ToolCall) ToolResult {
	result := ToolResult{ToolCallID: call.ID}

	str := func(key string) string {
		v, _ := call.Parameters[key].(string)
		return v
	}

	switch call.Name {
	case "navigate":
		if err := b.Navigate(ctx, str("url"), actionTimeout); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Output = fmt.Sprintf("navigated to %s", b.CurrentURL())

	case "click":
		if err := b.Click(ctx, str("selector"), actionTimeout); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Output = fmt.Sprintf("clicked %s", str("selector"))

	case "type":
		if err := b.Type(ctx, str("selector"), str("text"), actionTimeout); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Output = fmt.Sprintf("typed into %s", str("selector"))

	case "extract_text":
		text, err := b.ExtractText(ctx)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Output = text

	case "screenshot":
		img, err := b.ScreenshotBase64(ctx)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Output = "screenshot captured"
		result.Image = img

	case "page_info":
		result.Output = fmt.Sprintf("url: %s, title: %s", b.CurrentURL(), b.PageTitle())

	default:
		result.Error = fmt.Sprintf("unknown tool: %s", call.Name)
	}

	return result
}
