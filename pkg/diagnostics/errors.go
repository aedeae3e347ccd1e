// Package diagnostics provides the orchestrator façade over the diagnostic
// components: staged initialization, timeout-raced operation execution with
// bounded history and adaptive-threshold feedback, health classification, and
// best-effort teardown.
package diagnostics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
)

// TimeoutError reports an operation that exceeded its budget. A timeout is a
// reporting and threshold-tuning signal, not a hard cancellation: the
// underlying engine call is not interrupted and may still complete later.
type TimeoutError struct {
	Operation string
	Component config.Component
	Budget    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q on %s exceeded its %s budget", e.Operation, e.Component, e.Budget)
}

// DiagnosticError is the generic structured wrap applied to operation
// failures.
type DiagnosticError struct {
	Component     config.Component
	Operation     string
	Timestamp     time.Time
	ExecutionTime time.Duration
	Suggestions   []string
	Cause         error
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("%s operation %q failed after %s: %v", e.Component, e.Operation, e.ExecutionTime, e.Cause)
}

func (e *DiagnosticError) Unwrap() error {
	return e.Cause
}

// wrapDiagnostic wraps err into a DiagnosticError unless it already carries
// one — an existing structured error is preserved rather than double-wrapped.
func wrapDiagnostic(component config.Component, operation string, executionTime time.Duration, err error) error {
	var existing *DiagnosticError
	if errors.As(err, &existing) {
		return err
	}
	return &DiagnosticError{
		Component:     component,
		Operation:     operation,
		Timestamp:     time.Now(),
		ExecutionTime: executionTime,
		Cause:         err,
	}
}

// StagedInitializationFailure names the stage that failed and the components
// that had already been constructed (and were torn down).
type StagedInitializationFailure struct {
	Stage     Stage
	Succeeded []string
	Cause     error
}

func (e *StagedInitializationFailure) Error() string {
	if len(e.Succeeded) == 0 {
		return fmt.Sprintf("initialization failed at stage %q: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("initialization failed at stage %q (already built: %s): %v",
		e.Stage, strings.Join(e.Succeeded, ", "), e.Cause)
}

func (e *StagedInitializationFailure) Unwrap() error {
	return e.Cause
}
