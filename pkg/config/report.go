package config

import (
	"fmt"
	"sort"
)

// Risk classifies how far the running configuration has drifted from the
// defaults.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Override describes one value that differs from the default configuration.
type Override struct {
	Path    string `json:"path"`
	Default string `json:"default"`
	Current string `json:"current"`
	Warning string `json:"warning,omitempty"`
}

// ImpactReport is a read-only, JSON-shaped diff of the current configuration
// against the defaults with an overall risk classification.
type ImpactReport struct {
	Overrides []Override `json:"overrides"`
	Warnings  []string   `json:"warnings"`
	Risk      Risk       `json:"risk"`
}

// Summary condenses the impact report into counts for quick inspection.
type Summary struct {
	OverrideCount int  `json:"overrideCount"`
	WarningCount  int  `json:"warningCount"`
	Risk          Risk `json:"risk"`
}

// ImpactReport diffs the current configuration against the defaults.
// Risk is classified from the warning count and the magnitude of overrides:
// any override beyond 3x its default (or a disabled safety flag) is a
// warning; two or more warnings is high risk, one is medium.
func (m *Manager) ImpactReport() ImpactReport {
	m.mu.RLock()
	current := m.current.Clone()
	defaults := m.defaults.Clone()
	m.mu.RUnlock()

	var report ImpactReport

	addInt := func(path string, def, cur int) {
		if def == cur {
			return
		}
		o := Override{
			Path:    path,
			Default: fmt.Sprintf("%d", def),
			Current: fmt.Sprintf("%d", cur),
		}
		if def > 0 && (cur >= def*3 || cur*3 <= def) {
			o.Warning = fmt.Sprintf("%s overridden beyond 3x its default", path)
			report.Warnings = append(report.Warnings, o.Warning)
		}
		report.Overrides = append(report.Overrides, o)
	}
	addBool := func(path string, def, cur bool, safety bool) {
		if def == cur {
			return
		}
		o := Override{
			Path:    path,
			Default: fmt.Sprintf("%t", def),
			Current: fmt.Sprintf("%t", cur),
		}
		if safety && !cur {
			o.Warning = fmt.Sprintf("%s disabled", path)
			report.Warnings = append(report.Warnings, o.Warning)
		}
		report.Overrides = append(report.Overrides, o)
	}

	dt, ct := defaults.Thresholds, current.Thresholds
	addInt("thresholds.elementWarning", dt.ElementWarning, ct.ElementWarning)
	addInt("thresholds.elementDanger", dt.ElementDanger, ct.ElementDanger)
	addInt("thresholds.iframeWarning", dt.IframeWarning, ct.IframeWarning)
	addInt("thresholds.iframeDanger", dt.IframeDanger, ct.IframeDanger)
	addInt("thresholds.domDepthWarning", dt.DOMDepthWarning, ct.DOMDepthWarning)
	addInt("thresholds.domDepthDanger", dt.DOMDepthDanger, ct.DOMDepthDanger)
	addInt("thresholds.zIndexWarning", dt.ZIndexWarning, ct.ZIndexWarning)
	addInt("thresholds.zIndexDanger", dt.ZIndexDanger, ct.ZIndexDanger)
	addInt("thresholds.largeSubtreeElements", dt.LargeSubtreeElements, ct.LargeSubtreeElements)
	addInt("thresholds.leakThresholdMB", dt.LeakThresholdMB, ct.LeakThresholdMB)
	addInt("thresholds.maxMemoryMB", dt.MaxMemoryMB, ct.MaxMemoryMB)
	addInt("thresholds.autoDisposeTimeoutMs", dt.AutoDisposeTimeoutMs, ct.AutoDisposeTimeoutMs)
	addInt("thresholds.maxTrackedHandles", dt.MaxTrackedHandles, ct.MaxTrackedHandles)
	addInt("thresholds.maxOperationHistory", dt.MaxOperationHistory, ct.MaxOperationHistory)

	components := make([]Component, 0, len(ct.OperationTimeoutsMs))
	for component := range ct.OperationTimeoutsMs {
		components = append(components, component)
	}
	sort.Slice(components, func(i, j int) bool { return components[i] < components[j] })
	for _, component := range components {
		addInt(
			fmt.Sprintf("thresholds.operationTimeoutsMs.%s", component),
			dt.OperationTimeoutsMs[component],
			ct.OperationTimeoutsMs[component],
		)
	}

	df, cf := defaults.FeatureFlags, current.FeatureFlags
	addBool("featureFlags.adaptiveThresholds", df.AdaptiveThresholds, cf.AdaptiveThresholds, false)
	addBool("featureFlags.parallelAnalysis", df.ParallelAnalysis, cf.ParallelAnalysis, false)
	addBool("featureFlags.errorEnrichment", df.ErrorEnrichment, cf.ErrorEnrichment, true)
	addBool("featureFlags.smartHandles", df.SmartHandles, cf.SmartHandles, true)
	addBool("featureFlags.healthChecks", df.HealthChecks, cf.HealthChecks, true)

	de, ce := defaults.ErrorHandling, current.ErrorHandling
	addInt("errorHandling.maxRetries", de.MaxRetries, ce.MaxRetries)
	addInt("errorHandling.maxAlternatives", de.MaxAlternatives, ce.MaxAlternatives)
	addBool("errorHandling.captureStructureOnError", de.CaptureStructureOnError, ce.CaptureStructureOnError, false)
	addBool("errorHandling.suggestAlternatives", de.SuggestAlternatives, ce.SuggestAlternatives, false)

	switch {
	case len(report.Warnings) >= 2:
		report.Risk = RiskHigh
	case len(report.Warnings) == 1:
		report.Risk = RiskMedium
	default:
		report.Risk = RiskLow
	}

	return report
}

// Summary condenses the impact report.
func (m *Manager) Summary() Summary {
	report := m.ImpactReport()
	return Summary{
		OverrideCount: len(report.Overrides),
		WarningCount:  len(report.Warnings),
		Risk:          report.Risk,
	}
}
