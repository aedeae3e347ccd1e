package diagnostics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/analysis"
	"github.com/microsoft/playwright-mcp-sub003/pkg/engine/enginetest"
)

func newTestManager(t *testing.T) *config.Manager {
	t.Helper()
	m, err := config.NewManager(config.Default(), nil)
	require.NoError(t, err)
	return m
}

func newReadyOrchestrator(t *testing.T, eng *enginetest.Fake) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(eng, newTestManager(t), nil, nil)
	require.NoError(t, o.Initialize(context.Background()))
	require.Equal(t, StateReady, o.State())
	return o
}

// fullPageEvaluate answers every analysis script with minimal valid shapes.
func fullPageEvaluate(_ context.Context, script string) (interface{}, error) {
	switch {
	case strings.Contains(script, "dialog[open]"):
		return map[string]interface{}{"dialogOpen": false}, nil
	case strings.Contains(script, "missingAriaRole"):
		return map[string]interface{}{"total": 20}, nil
	default:
		return map[string]interface{}{
			"dom":         map[string]interface{}{"totalElements": 20, "maxDepth": 3},
			"interaction": map[string]interface{}{},
			"resource":    map[string]interface{}{},
			"layout":      map[string]interface{}{},
		}, nil
	}
}

// TestInitializeStaged tests the happy path through all three stages.
func TestInitializeStaged(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})

	assert.NotNil(t, o.Tracker())
	assert.NotNil(t, o.Analyzer())
	assert.NotNil(t, o.Enrichment())
	assert.NotNil(t, o.History())

	// Re-initialization of a ready orchestrator is a no-op.
	assert.NoError(t, o.Initialize(context.Background()))
}

// TestInitializeFailsWithoutEngine tests the staged failure contract: the
// page-dependent stage fails, core components are torn down, and the failed
// state is terminal until disposal.
func TestInitializeFailsWithoutEngine(t *testing.T) {
	o := NewOrchestrator(nil, newTestManager(t), nil, nil)

	err := o.Initialize(context.Background())
	var staged *StagedInitializationFailure
	require.ErrorAs(t, err, &staged)
	assert.Equal(t, StagePageDependent, staged.Stage)
	assert.Contains(t, staged.Succeeded, "resource-tracker")
	assert.Equal(t, StateFailed, o.State())
	assert.Nil(t, o.Tracker())

	// Repeated initialization reports the original failure.
	again := o.Initialize(context.Background())
	assert.ErrorAs(t, again, &staged)

	// Operations against a failed orchestrator fail without panicking.
	result := o.ExecuteOperation(context.Background(), "noop", config.ComponentAnalyzer, func(context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.False(t, result.Success)
	assert.ErrorContains(t, result.Error, "not ready")
}

// TestInitializeFailsWithoutConfig tests a core-stage failure.
func TestInitializeFailsWithoutConfig(t *testing.T) {
	o := NewOrchestrator(&enginetest.Fake{}, nil, nil, nil)

	err := o.Initialize(context.Background())
	var staged *StagedInitializationFailure
	require.ErrorAs(t, err, &staged)
	assert.Equal(t, StageCore, staged.Stage)
	assert.Empty(t, staged.Succeeded)
}

// TestExecuteOperation tests result discrimination and history recording.
func TestExecuteOperation(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})
	ctx := context.Background()

	t.Run("success carries data", func(t *testing.T) {
		result := o.ExecuteOperation(ctx, "probe", config.ComponentAnalyzer, func(context.Context) (interface{}, error) {
			return 42, nil
		})
		assert.True(t, result.Success)
		assert.Equal(t, 42, result.Data)
		assert.NoError(t, result.Error)
	})

	t.Run("failure is wrapped structurally", func(t *testing.T) {
		cause := errors.New("selector vanished")
		result := o.ExecuteOperation(ctx, "probe", config.ComponentAnalyzer, func(context.Context) (interface{}, error) {
			return nil, cause
		})
		assert.False(t, result.Success)

		var diag *DiagnosticError
		require.ErrorAs(t, result.Error, &diag)
		assert.Equal(t, config.ComponentAnalyzer, diag.Component)
		assert.Equal(t, "probe", diag.Operation)
		assert.ErrorIs(t, result.Error, cause)
	})

	t.Run("history records both outcomes", func(t *testing.T) {
		snapshot := o.History().Snapshot()
		require.GreaterOrEqual(t, len(snapshot), 2)
		last := snapshot[len(snapshot)-1]
		assert.Equal(t, "probe", last.Operation)
		assert.False(t, last.Success)
	})
}

// TestExecuteOperationTimeout tests the timeout race: the budget elapsing
// yields a TimeoutError without cancelling the underlying call.
func TestExecuteOperationTimeout(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})

	blocked := make(chan struct{})
	result := o.ExecuteOperation(context.Background(), "slow-op", config.ComponentAnalyzer,
		func(context.Context) (interface{}, error) {
			<-blocked
			return nil, nil
		},
		ExecuteOptions{Timeout: 20 * time.Millisecond},
	)
	close(blocked)

	assert.False(t, result.Success)
	var timeout *TimeoutError
	require.ErrorAs(t, result.Error, &timeout)
	assert.Equal(t, "slow-op", timeout.Operation)
	assert.Equal(t, 20*time.Millisecond, timeout.Budget)
}

// TestExecuteOperationAdaptiveFeedback tests that enough fast successful
// operations in the window lower the component's timeout budget.
func TestExecuteOperationAdaptiveFeedback(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result := o.ExecuteOperation(ctx, "fast-op", config.ComponentAnalyzer, func(context.Context) (interface{}, error) {
			return nil, nil
		})
		require.True(t, result.Success)
	}

	// Ten near-instant successes: avg is far below half the 10s budget at a
	// perfect success rate, so the budget drops by 10%.
	got := o.cfg.Get().Thresholds.OperationTimeoutsMs[config.ComponentAnalyzer]
	assert.Equal(t, 9000, got)
}

// TestRunAnalysis tests the merged analysis result through the wrapper, in
// both parallel and sequential modes.
func TestRunAnalysis(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			eng := &enginetest.Fake{EvaluateFunc: fullPageEvaluate}
			o := newReadyOrchestrator(t, eng)
			_, err := o.cfg.Update(map[string]interface{}{
				"featureFlags": map[string]interface{}{"parallelAnalysis": parallel},
			})
			require.NoError(t, err)

			result := o.RunAnalysis(context.Background())
			require.True(t, result.Success, "analysis failed: %v", result.Error)

			merged, ok := result.Data.(analysis.Result)
			require.True(t, ok)
			assert.Empty(t, merged.Errors)
			assert.Equal(t, 20, merged.Performance.DOM.TotalElements)
		})
	}
}

// TestDisposeResetsLifecycle tests that disposal tears everything down and
// permits a fresh initialization.
func TestDisposeResetsLifecycle(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})

	o.Dispose(context.Background())
	assert.Equal(t, StateUninitialized, o.State())
	assert.Nil(t, o.Tracker())
	assert.Nil(t, o.Analyzer())

	require.NoError(t, o.Initialize(context.Background()))
	assert.Equal(t, StateReady, o.State())
}
