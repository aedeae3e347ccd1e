package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestImpactReport tests the defaults diff and risk classification.
func TestImpactReport(t *testing.T) {
	t.Run("pristine configuration has no overrides", func(t *testing.T) {
		m := newTestManager(t)

		report := m.ImpactReport()
		assert.Empty(t, report.Overrides)
		assert.Empty(t, report.Warnings)
		assert.Equal(t, RiskLow, report.Risk)
	})

	t.Run("mild override is low risk", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.Update(map[string]interface{}{
			"thresholds": map[string]interface{}{
				"elementWarning": 2000,
			},
		})
		require.NoError(t, err)

		report := m.ImpactReport()
		require.Len(t, report.Overrides, 1)
		assert.Equal(t, "thresholds.elementWarning", report.Overrides[0].Path)
		assert.Equal(t, "1500", report.Overrides[0].Default)
		assert.Equal(t, "2000", report.Overrides[0].Current)
		assert.Equal(t, RiskLow, report.Risk)
	})

	t.Run("extreme override is medium risk", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.Update(map[string]interface{}{
			"thresholds": map[string]interface{}{
				"elementWarning": 6000,
				"elementDanger":  7000,
			},
		})
		require.NoError(t, err)

		report := m.ImpactReport()
		assert.Len(t, report.Warnings, 1)
		assert.Equal(t, RiskMedium, report.Risk)
	})

	t.Run("disabled safety flags escalate to high risk", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.Update(map[string]interface{}{
			"featureFlags": map[string]interface{}{
				"errorEnrichment": false,
				"healthChecks":    false,
			},
		})
		require.NoError(t, err)

		report := m.ImpactReport()
		assert.Len(t, report.Warnings, 2)
		assert.Equal(t, RiskHigh, report.Risk)

		summary := m.Summary()
		assert.Equal(t, 2, summary.OverrideCount)
		assert.Equal(t, 2, summary.WarningCount)
		assert.Equal(t, RiskHigh, summary.Risk)
	})
}
