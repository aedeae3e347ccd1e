package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/playwright-mcp-sub003/pkg/engine/enginetest"
)

func appendRecords(o *Orchestrator, total, failures, execMs int) {
	for i := 0; i < total; i++ {
		o.History().Append(record("op", time.Minute, execMs, i >= failures))
	}
}

// TestHealthCheckHealthy tests the quiet baseline.
func TestHealthCheckHealthy(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})

	report := o.PerformHealthCheck()
	assert.Equal(t, HealthHealthy, report.Status)
	assert.Empty(t, report.Issues)
	assert.Equal(t, StateReady, report.State)
}

// TestHealthCheckNotReady tests the lifecycle warning for an uninitialized
// subsystem.
func TestHealthCheckNotReady(t *testing.T) {
	o := NewOrchestrator(&enginetest.Fake{}, newTestManager(t), nil, nil)

	report := o.PerformHealthCheck()
	assert.Equal(t, HealthWarning, report.Status)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "lifecycle", report.Issues[0].Signal)
}

// TestHealthCheckDisabled tests that the feature flag silences every signal:
// conditions that would otherwise be critical produce a bare healthy report.
func TestHealthCheckDisabled(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})
	_, err := o.cfg.Update(map[string]interface{}{
		"featureFlags": map[string]interface{}{"healthChecks": false},
	})
	require.NoError(t, err)
	appendRecords(o, 10, 2, 3000) // 20% errors, 3s average latency

	report := o.PerformHealthCheck()
	assert.Equal(t, HealthHealthy, report.Status)
	assert.Empty(t, report.Issues)
	assert.Equal(t, StateReady, report.State)
}

// TestHealthCheckErrorRate tests the warning and critical error-rate tiers.
func TestHealthCheckErrorRate(t *testing.T) {
	t.Run("above 5 percent warns", func(t *testing.T) {
		o := newReadyOrchestrator(t, &enginetest.Fake{})
		appendRecords(o, 25, 2, 10) // 8%

		report := o.PerformHealthCheck()
		assert.Equal(t, HealthWarning, report.Status)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, "error-rate", report.Issues[0].Signal)
		assert.Equal(t, HealthWarning, report.Issues[0].Severity)
	})

	t.Run("above 10 percent is critical", func(t *testing.T) {
		o := newReadyOrchestrator(t, &enginetest.Fake{})
		appendRecords(o, 10, 2, 10) // 20%

		report := o.PerformHealthCheck()
		assert.Equal(t, HealthCritical, report.Status)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, HealthCritical, report.Issues[0].Severity)
	})

	t.Run("exactly 10 percent only warns", func(t *testing.T) {
		o := newReadyOrchestrator(t, &enginetest.Fake{})
		appendRecords(o, 10, 1, 10) // 10%

		report := o.PerformHealthCheck()
		assert.Equal(t, HealthWarning, report.Status)
	})
}

// TestHealthCheckLatency tests the average-latency warning.
func TestHealthCheckLatency(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})
	appendRecords(o, 5, 0, 3000)

	report := o.PerformHealthCheck()
	assert.Equal(t, HealthWarning, report.Status)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "latency", report.Issues[0].Signal)
	assert.Equal(t, 3*time.Second, report.AverageLatency)
}

// TestHealthCheckSaturation tests the handle-saturation warning.
func TestHealthCheckSaturation(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})
	_, err := o.cfg.Update(map[string]interface{}{
		"thresholds": map[string]interface{}{"maxTrackedHandles": 10},
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		o.Tracker().Track(&enginetest.FakeHandle{}, "element-handle")
	}

	report := o.PerformHealthCheck()
	assert.Equal(t, HealthWarning, report.Status)
	assert.Equal(t, 10, report.ActiveHandles)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "handle-saturation", report.Issues[0].Signal)

	o.Dispose(context.Background())
}

// TestHealthCheckEscalation tests that more than two simultaneous warnings
// escalate the overall status to critical.
func TestHealthCheckEscalation(t *testing.T) {
	o := newReadyOrchestrator(t, &enginetest.Fake{})
	_, err := o.cfg.Update(map[string]interface{}{
		"thresholds": map[string]interface{}{"maxTrackedHandles": 10},
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		o.Tracker().Track(&enginetest.FakeHandle{}, "element-handle")
	}
	appendRecords(o, 25, 2, 3000) // 8% errors, 3s average latency

	report := o.PerformHealthCheck()
	require.Len(t, report.Issues, 3)
	assert.Equal(t, HealthCritical, report.Status)

	o.Dispose(context.Background())
}
