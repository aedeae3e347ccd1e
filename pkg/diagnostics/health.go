package diagnostics

import (
	"fmt"
	"time"
)

// HealthStatus classifies overall subsystem health.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// Health-check thresholds. Saturation and latency contribute warnings; an
// error rate past the critical bound contributes directly to critical.
const (
	healthSaturationRatio  = 0.9
	healthErrorRateWarn    = 0.05
	healthErrorRateCrit    = 0.10
	healthLatencyThreshold = 2 * time.Second
)

// HealthIssue is one detected problem.
type HealthIssue struct {
	Signal   string       `json:"signal"`
	Severity HealthStatus `json:"severity"`
	Detail   string       `json:"detail"`
}

// HealthReport is the read-only, JSON-shaped health-check result.
type HealthReport struct {
	Status         HealthStatus  `json:"status"`
	Issues         []HealthIssue `json:"issues"`
	ActiveHandles  int           `json:"activeHandles"`
	PeakHandles    int           `json:"peakHandles"`
	LeakedHandles  int           `json:"leakedHandles"`
	ErrorRate      float64       `json:"errorRate"`
	AverageLatency time.Duration `json:"averageLatency"`
	State          State         `json:"state"`
}

// PerformHealthCheck classifies overall status from three independent
// signals: handle-registry saturation, operation error rate, and average
// recorded latency. More than two simultaneous issues escalates the status
// to critical regardless of individual severities.
func (o *Orchestrator) PerformHealthCheck() HealthReport {
	o.mu.Lock()
	state := o.state
	tracker := o.tracker
	history := o.history
	o.mu.Unlock()

	report := HealthReport{
		Status: HealthHealthy,
		Issues: []HealthIssue{},
		State:  state,
	}

	// With the feature disabled only the lifecycle state is reported; no
	// signal is evaluated and no issue can be raised.
	if !o.cfg.Get().FeatureFlags.HealthChecks {
		return report
	}

	if state != StateReady {
		report.Status = HealthWarning
		report.Issues = append(report.Issues, HealthIssue{
			Signal:   "lifecycle",
			Severity: HealthWarning,
			Detail:   fmt.Sprintf("orchestrator state is %s", state),
		})
		return report
	}

	maxHandles := o.cfg.Get().Thresholds.MaxTrackedHandles
	stats := tracker.Stats()
	report.ActiveHandles = stats.Active
	report.PeakHandles = stats.Peak
	report.LeakedHandles = stats.Leaks

	if maxHandles > 0 && float64(stats.Active) > healthSaturationRatio*float64(maxHandles) {
		report.Issues = append(report.Issues, HealthIssue{
			Signal:   "handle-saturation",
			Severity: HealthWarning,
			Detail:   fmt.Sprintf("%d of %d tracked handles in use", stats.Active, maxHandles),
		})
	}

	errorRate, avgLatency := history.Totals()
	report.ErrorRate = errorRate
	report.AverageLatency = avgLatency

	switch {
	case errorRate > healthErrorRateCrit:
		report.Issues = append(report.Issues, HealthIssue{
			Signal:   "error-rate",
			Severity: HealthCritical,
			Detail:   fmt.Sprintf("error rate %.1f%% exceeds %.0f%%", errorRate*100, healthErrorRateCrit*100),
		})
	case errorRate > healthErrorRateWarn:
		report.Issues = append(report.Issues, HealthIssue{
			Signal:   "error-rate",
			Severity: HealthWarning,
			Detail:   fmt.Sprintf("error rate %.1f%% exceeds %.0f%%", errorRate*100, healthErrorRateWarn*100),
		})
	}

	if avgLatency > healthLatencyThreshold {
		report.Issues = append(report.Issues, HealthIssue{
			Signal:   "latency",
			Severity: HealthWarning,
			Detail:   fmt.Sprintf("average operation latency %s exceeds %s", avgLatency, healthLatencyThreshold),
		})
	}

	for _, issue := range report.Issues {
		if issue.Severity == HealthCritical {
			report.Status = HealthCritical
		} else if report.Status == HealthHealthy {
			report.Status = HealthWarning
		}
	}
	if len(report.Issues) > 2 {
		report.Status = HealthCritical
	}

	return report
}
