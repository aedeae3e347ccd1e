// Package tools defines the tool registry consumed by the batch executor:
// named tools with declared JSON schemas, a shared automation context with
// per-execution scratch slots, and the response-sink boundary.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is one invocable capability. Arguments are JSON-shaped maps validated
// against the declared schema before any execution.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Schema returns the JSON schema for this tool's input parameters.
	Schema() map[string]interface{}

	// DefaultExpectation returns the tool's default response expectation,
	// overridden by batch-global and step-level expectations. May be nil.
	DefaultExpectation() map[string]interface{}

	// Handle runs the tool against the shared automation context.
	Handle(ctx context.Context, tctx *Context, args map[string]interface{}, sink Sink) (interface{}, error)
}

// Registry maps tool names to tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool; duplicate names are an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BaseSchema creates a common JSON schema structure with the given
// properties and required fields.
func BaseSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ValidateArgs checks args against a tool schema: every required field must
// be present, every provided field must be declared, and declared types must
// match.
func ValidateArgs(schema, args map[string]interface{}) error {
	props, _ := schema["properties"].(map[string]interface{})

	if required, ok := schema["required"].([]string); ok {
		for _, field := range required {
			if _, present := args[field]; !present {
				return fmt.Errorf("missing required argument %q", field)
			}
		}
	}

	for key, value := range args {
		prop, declared := props[key]
		if !declared {
			return fmt.Errorf("unknown argument %q", key)
		}
		propSchema, _ := prop.(map[string]interface{})
		declaredType, _ := propSchema["type"].(string)
		if declaredType == "" || value == nil {
			continue
		}
		if err := checkType(key, declaredType, value); err != nil {
			return err
		}
	}
	return nil
}

// numberValue coerces the numeric representations accepted for "number"
// arguments. JSON decodes numbers as float64 while YAML decodes whole
// numbers as int, so both must land on the same value.
func numberValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func checkType(key, declaredType string, value interface{}) error {
	ok := false
	switch declaredType {
	case "string":
		_, ok = value.(string)
	case "boolean":
		_, ok = value.(bool)
	case "number", "integer":
		switch value.(type) {
		case int, int64, float64:
			ok = true
		}
	case "object":
		_, ok = value.(map[string]interface{})
	case "array":
		_, ok = value.([]interface{})
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("argument %q must be of type %s", key, declaredType)
	}
	return nil
}
