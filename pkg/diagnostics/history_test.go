package diagnostics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
)

func record(op string, age time.Duration, execMs int, success bool) OperationRecord {
	return OperationRecord{
		Operation:     op,
		Component:     config.ComponentAnalyzer,
		Timestamp:     time.Now().Add(-age),
		ExecutionTime: time.Duration(execMs) * time.Millisecond,
		Success:       success,
	}
}

// TestHistoryBounded tests that the oldest entries are trimmed past the
// configured maximum.
func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(record("op", time.Duration(5-i)*time.Minute, 10, true))
	}

	assert.Equal(t, 3, h.Len())
	snapshot := h.Snapshot()
	assert.Len(t, snapshot, 3)
	// Oldest two were trimmed; remaining entries are the most recent ones.
	for _, rec := range snapshot {
		assert.True(t, rec.Timestamp.After(time.Now().Add(-4*time.Minute)))
	}
}

// TestWindowStats tests per-operation windowed statistics.
func TestWindowStats(t *testing.T) {
	h := NewHistory(100)
	h.Append(record("click", 10*time.Minute, 500, true)) // outside window
	h.Append(record("fill", time.Minute, 900, true))     // different operation
	h.Append(record("click", 2*time.Minute, 100, true))
	h.Append(record("click", time.Minute, 300, false))

	count, avgMs, successRate := h.WindowStats("click", 5*time.Minute)
	assert.Equal(t, 2, count)
	assert.InDelta(t, 200, avgMs, 0.1)
	assert.InDelta(t, 0.5, successRate, 0.001)

	count, avgMs, successRate = h.WindowStats("hover", 5*time.Minute)
	assert.Zero(t, count)
	assert.Zero(t, avgMs)
	assert.Zero(t, successRate)
}

// TestTotals tests the overall error rate and average latency.
func TestTotals(t *testing.T) {
	h := NewHistory(100)

	errorRate, avgLatency := h.Totals()
	assert.Zero(t, errorRate)
	assert.Zero(t, avgLatency)

	h.Append(record("click", time.Minute, 100, true))
	h.Append(record("click", time.Minute, 200, false))
	h.Append(record("fill", time.Minute, 300, true))
	h.Append(record("fill", time.Minute, 400, true))

	errorRate, avgLatency = h.Totals()
	assert.InDelta(t, 0.25, errorRate, 0.001)
	assert.Equal(t, 250*time.Millisecond, avgLatency)
}
