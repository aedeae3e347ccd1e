package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Sink collects a tool's response as it executes. Finish seals the sink;
// Serialize renders the collected response for the caller.
type Sink interface {
	// AddText appends a line of human-readable output.
	AddText(text string)

	// SetResult attaches the structured result payload.
	SetResult(result interface{})

	// Finish seals the sink. Writes after Finish are ignored.
	Finish()

	// Serialize renders the collected response.
	Serialize() string
}

// SinkFactory constructs a sink for one tool invocation. The expectation map
// is the merged response expectation (tool default, then batch-global, then
// per-step overrides).
type SinkFactory interface {
	Construct(tctx *Context, toolName string, args map[string]interface{}, expectation map[string]interface{}) Sink
}

type textSinkFactory struct{}

// NewTextSinkFactory returns a factory producing plain text/JSON sinks.
func NewTextSinkFactory() SinkFactory {
	return textSinkFactory{}
}

func (textSinkFactory) Construct(_ *Context, toolName string, _ map[string]interface{}, expectation map[string]interface{}) Sink {
	return &textSink{toolName: toolName, expectation: expectation}
}

type textSink struct {
	mu          sync.Mutex
	toolName    string
	expectation map[string]interface{}
	lines       []string
	result      interface{}
	finished    bool
}

func (s *textSink) AddText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.lines = append(s.lines, text)
}

func (s *textSink) SetResult(result interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.result = result
}

func (s *textSink) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

func (s *textSink) Serialize() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, line := range s.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if s.result != nil {
		data, err := json.Marshal(s.result)
		if err != nil {
			b.WriteString(fmt.Sprintf("result: %v", s.result))
		} else {
			b.Write(data)
		}
	}
	return b.String()
}
