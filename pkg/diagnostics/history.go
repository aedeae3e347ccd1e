package diagnostics

import (
	"sync"
	"time"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
)

// OperationRecord is one entry in the bounded operation history.
type OperationRecord struct {
	Operation     string           `json:"operation"`
	Component     config.Component `json:"component"`
	Timestamp     time.Time        `json:"timestamp"`
	ExecutionTime time.Duration    `json:"executionTime"`
	Success       bool             `json:"success"`
}

// History is a bounded ring of operation records: once the count exceeds the
// configured maximum the oldest entries are trimmed.
type History struct {
	mu      sync.Mutex
	records []OperationRecord
	max     int
}

// NewHistory creates a history bounded to max entries.
func NewHistory(max int) *History {
	if max < 1 {
		max = 1
	}
	return &History{max: max}
}

// Append records an operation, trimming the oldest entries past the bound.
func (h *History) Append(rec OperationRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	if over := len(h.records) - h.max; over > 0 {
		h.records = append([]OperationRecord(nil), h.records[over:]...)
	}
}

// Len returns the current record count.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Snapshot returns a copy of the records, oldest first.
func (h *History) Snapshot() []OperationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]OperationRecord(nil), h.records...)
}

// WindowStats summarizes same-named operations within the trailing window.
func (h *History) WindowStats(operation string, window time.Duration) (count int, avgMs float64, successRate float64) {
	cutoff := time.Now().Add(-window)

	h.mu.Lock()
	defer h.mu.Unlock()

	var totalMs float64
	successes := 0
	for _, rec := range h.records {
		if rec.Operation != operation || rec.Timestamp.Before(cutoff) {
			continue
		}
		count++
		totalMs += float64(rec.ExecutionTime.Milliseconds())
		if rec.Success {
			successes++
		}
	}
	if count == 0 {
		return 0, 0, 0
	}
	return count, totalMs / float64(count), float64(successes) / float64(count)
}

// Totals returns the overall error rate and average latency across all
// recorded operations.
func (h *History) Totals() (errorRate float64, avgLatency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) == 0 {
		return 0, 0
	}

	failures := 0
	var total time.Duration
	for _, rec := range h.records {
		if !rec.Success {
			failures++
		}
		total += rec.ExecutionTime
	}
	return float64(failures) / float64(len(h.records)), total / time.Duration(len(h.records))
}
