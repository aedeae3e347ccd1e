package diagnostics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes in-process counters for diagnostic operations. Pass a nil
// registerer to keep metrics private to this instance (tests, embedded use).
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationFailures *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	BatchStepsTotal   *prometheus.CounterVec
}

// NewMetrics registers the diagnostic metric family.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "browserdiag",
			Name:      "operations_total",
			Help:      "Diagnostic operations executed, by component and operation.",
		}, []string{"component", "operation"}),
		OperationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "browserdiag",
			Name:      "operation_failures_total",
			Help:      "Diagnostic operations that failed, by component and operation.",
		}, []string{"component", "operation"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "browserdiag",
			Name:      "operation_duration_seconds",
			Help:      "Diagnostic operation wall-clock duration.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"component", "operation"}),
		BatchStepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "browserdiag",
			Name:      "batch_steps_total",
			Help:      "Batch steps executed, by tool and outcome.",
		}, []string{"tool", "outcome"}),
	}
}
