// Package enrich augments raw failures with diagnostic context: alternative
// target candidates, a structure snapshot, and synthesized suggestions. The
// pipeline wraps the original failure, never replaces it, and its own
// failures never propagate past the package boundary — a collaborator error
// falls back to the unenriched original.
package enrich

import (
	"time"

	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/analysis"
)

// Alternative is a candidate element that may match the intended target.
type Alternative struct {
	Selector   string  `json:"selector"`
	Tag        string  `json:"tag"`
	Text       string  `json:"text,omitempty"`
	AriaLabel  string  `json:"ariaLabel,omitempty"`
	Confidence float64 `json:"confidence"`
}

// StructureSnapshot is a lightweight capture of the environment taken at
// failure time.
type StructureSnapshot struct {
	IframeCount         int                 `json:"iframeCount"`
	Modal               analysis.ModalState `json:"modal"`
	InteractiveElements int                 `json:"interactiveElements"`
	MissingAriaRole     int                 `json:"missingAriaRole"`
	CapturedAt          time.Time           `json:"capturedAt"`
}

// BatchContext records which batch step failed and what ran before it, for
// multi-step root-cause diagnosis.
type BatchContext struct {
	FailedStepIndex int      `json:"failedStepIndex"`
	FailedTool      string   `json:"failedTool"`
	ExecutedTools   []string `json:"executedTools"`
}

// Criteria narrows the alternative search for a not-found target.
type Criteria struct {
	Role string
	Text string
}

// EnrichedError wraps an original failure with diagnostic context. It never
// replaces the original: Error and Unwrap both defer to it.
type EnrichedError struct {
	Original     error              `json:"-"`
	Alternatives []Alternative      `json:"alternatives,omitempty"`
	Snapshot     *StructureSnapshot `json:"structureSnapshot,omitempty"`
	Suggestions  []string           `json:"suggestions"`
	BatchContext *BatchContext      `json:"batchContext,omitempty"`
}

func (e *EnrichedError) Error() string {
	return e.Original.Error()
}

func (e *EnrichedError) Unwrap() error {
	return e.Original
}
