// Package batch executes ordered sequences of tool invocations with
// wholesale pre-validation, per-step timing, and continue-on-error control.
package batch

import (
	"fmt"

	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/enrich"
)

// StopReason records why a batch stopped executing.
type StopReason string

const (
	// StopCompleted means every step was attempted.
	StopCompleted StopReason = "completed"
	// StopError means a step failed without continueOnError set.
	StopError StopReason = "error"
)

// Step is one entry in a batch: a tool name, its arguments, an optional
// response expectation override, and whether a failure of this step should
// stop the batch.
type Step struct {
	Tool            string                 `json:"tool" yaml:"tool"`
	Arguments       map[string]interface{} `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Expectation     map[string]interface{} `json:"expectation,omitempty" yaml:"expectation,omitempty"`
	ContinueOnError bool                   `json:"continueOnError,omitempty" yaml:"continueOnError,omitempty"`
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	StepIndex       int         `json:"stepIndex"`
	ToolName        string      `json:"toolName"`
	Success         bool        `json:"success"`
	Result          interface{} `json:"result,omitempty"`
	Error           string      `json:"error,omitempty"`
	ExecutionTimeMs int64       `json:"executionTimeMs"`

	// Enrichment carries diagnostic context for a failed step when the
	// enrichment pipeline is enabled.
	Enrichment *enrich.EnrichedError `json:"enrichment,omitempty"`
}

// Result is the aggregate outcome of a batch run. Well-formed batches always
// produce a Result; per-step failures live in Steps, never as a run error.
type Result struct {
	BatchID              string       `json:"batchId"`
	Steps                []StepResult `json:"steps"`
	TotalSteps           int          `json:"totalSteps"`
	SuccessfulSteps      int          `json:"successfulSteps"`
	FailedSteps          int          `json:"failedSteps"`
	TotalExecutionTimeMs int64        `json:"totalExecutionTimeMs"`
	StopReason           StopReason   `json:"stopReason"`
}

// UnknownToolError rejects a batch referencing a tool that is not registered.
type UnknownToolError struct {
	StepIndex int
	Tool      string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("step %d references unknown tool %q", e.StepIndex, e.Tool)
}

// ValidationError rejects a batch whose step arguments fail the tool's
// declared schema.
type ValidationError struct {
	StepIndex int
	Tool      string
	Cause     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d (%s): invalid arguments: %v", e.StepIndex, e.Tool, e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }
