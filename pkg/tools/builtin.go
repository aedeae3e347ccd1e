package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/microsoft/playwright-mcp-sub003/pkg/engine"
)

const waitPollInterval = 100 * time.Millisecond

// RegisterBuiltins installs the engine-backed automation tools.
func RegisterBuiltins(r *Registry) error {
	for _, t := range []Tool{
		&NavigateTool{},
		&ClickTool{},
		&TypeTool{},
		&EvaluateTool{},
		&WaitForSelectorTool{},
	} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// NavigateTool loads a URL. It requires an engine that supports navigation.
type NavigateTool struct{}

func (t *NavigateTool) Name() string        { return "browser_navigate" }
func (t *NavigateTool) Description() string { return "Navigate the page to a URL" }

func (t *NavigateTool) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"url": map[string]interface{}{
			"type":        "string",
			"description": "The URL to navigate to",
		},
	}, []string{"url"})
}

func (t *NavigateTool) DefaultExpectation() map[string]interface{} {
	return map[string]interface{}{"includeSnapshot": true}
}

func (t *NavigateTool) Handle(ctx context.Context, tctx *Context, args map[string]interface{}, sink Sink) (interface{}, error) {
	url, _ := args["url"].(string)
	nav, ok := tctx.Engine.(engine.Navigator)
	if !ok {
		return nil, fmt.Errorf("engine does not support navigation")
	}
	if err := nav.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	sink.AddText(fmt.Sprintf("Navigated to %s", url))
	return map[string]interface{}{"url": url}, nil
}

// ClickTool clicks the first element matching a CSS selector.
type ClickTool struct{}

func (t *ClickTool) Name() string        { return "browser_click" }
func (t *ClickTool) Description() string { return "Click the first element matching a CSS selector" }

func (t *ClickTool) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"selector": map[string]interface{}{
			"type":        "string",
			"description": "CSS selector of the element to click",
		},
	}, []string{"selector"})
}

func (t *ClickTool) DefaultExpectation() map[string]interface{} {
	return map[string]interface{}{"includeSnapshot": true}
}

func (t *ClickTool) Handle(ctx context.Context, tctx *Context, args map[string]interface{}, sink Sink) (interface{}, error) {
	selector, _ := args["selector"].(string)
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, selector)

	found, err := tctx.Engine.Evaluate(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("click on %s failed: %w", selector, err)
	}
	if clicked, _ := found.(bool); !clicked {
		return nil, fmt.Errorf("no element matches selector %s", selector)
	}
	sink.AddText(fmt.Sprintf("Clicked %s", selector))
	return map[string]interface{}{"selector": selector}, nil
}

// TypeTool fills a form control and fires an input event so framework
// bindings observe the change.
type TypeTool struct{}

func (t *TypeTool) Name() string        { return "browser_type" }
func (t *TypeTool) Description() string { return "Type text into the element matching a CSS selector" }

func (t *TypeTool) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"selector": map[string]interface{}{
			"type":        "string",
			"description": "CSS selector of the input element",
		},
		"text": map[string]interface{}{
			"type":        "string",
			"description": "Text to type",
		},
	}, []string{"selector", "text"})
}

func (t *TypeTool) DefaultExpectation() map[string]interface{} {
	return map[string]interface{}{"includeSnapshot": false}
}

func (t *TypeTool) Handle(ctx context.Context, tctx *Context, args map[string]interface{}, sink Sink) (interface{}, error) {
	selector, _ := args["selector"].(string)
	text, _ := args["text"].(string)
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.focus();
		el.value = %q;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, selector, text)

	found, err := tctx.Engine.Evaluate(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("typing into %s failed: %w", selector, err)
	}
	if typed, _ := found.(bool); !typed {
		return nil, fmt.Errorf("no element matches selector %s", selector)
	}
	sink.AddText(fmt.Sprintf("Typed into %s", selector))
	return map[string]interface{}{"selector": selector, "text": text}, nil
}

// EvaluateTool runs arbitrary JavaScript in the page and returns its result.
type EvaluateTool struct{}

func (t *EvaluateTool) Name() string        { return "browser_evaluate" }
func (t *EvaluateTool) Description() string { return "Evaluate a JavaScript expression in the page" }

func (t *EvaluateTool) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"expression": map[string]interface{}{
			"type":        "string",
			"description": "JavaScript expression to evaluate",
		},
	}, []string{"expression"})
}

func (t *EvaluateTool) DefaultExpectation() map[string]interface{} {
	return map[string]interface{}{"includeSnapshot": false}
}

func (t *EvaluateTool) Handle(ctx context.Context, tctx *Context, args map[string]interface{}, sink Sink) (interface{}, error) {
	expression, _ := args["expression"].(string)
	value, err := tctx.Engine.Evaluate(ctx, expression)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	sink.SetResult(value)
	return value, nil
}

// WaitForSelectorTool polls until an element matching the selector exists or
// the timeout elapses.
type WaitForSelectorTool struct{}

func (t *WaitForSelectorTool) Name() string { return "browser_wait_for" }
func (t *WaitForSelectorTool) Description() string {
	return "Wait until an element matching a CSS selector appears"
}

func (t *WaitForSelectorTool) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"selector": map[string]interface{}{
			"type":        "string",
			"description": "CSS selector to wait for",
		},
		"timeoutMs": map[string]interface{}{
			"type":        "number",
			"description": "Maximum time to wait in milliseconds (default 5000)",
		},
	}, []string{"selector"})
}

func (t *WaitForSelectorTool) DefaultExpectation() map[string]interface{} {
	return map[string]interface{}{"includeSnapshot": false}
}

func (t *WaitForSelectorTool) Handle(ctx context.Context, tctx *Context, args map[string]interface{}, sink Sink) (interface{}, error) {
	selector, _ := args["selector"].(string)
	timeout := 5000.0
	if v, ok := numberValue(args["timeoutMs"]); ok && v > 0 {
		timeout = v
	}
	deadline := time.Now().Add(time.Duration(timeout) * time.Millisecond)
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)

	for {
		found, err := tctx.Engine.Evaluate(ctx, script)
		if err != nil {
			return nil, fmt.Errorf("wait for %s failed: %w", selector, err)
		}
		if present, _ := found.(bool); present {
			sink.AddText(fmt.Sprintf("Element %s appeared", selector))
			return map[string]interface{}{"selector": selector}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out after %dms waiting for %s", int(timeout), selector)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitPollInterval):
		}
	}
}
