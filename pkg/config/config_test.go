package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultIsValid tests that the baseline configuration passes its own
// invariants.
func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

// TestComponentValid tests the closed component set.
func TestComponentValid(t *testing.T) {
	for _, c := range Components() {
		assert.True(t, c.Valid(), "component %q should be valid", c)
	}
	assert.False(t, Component("renderer").Valid())
	assert.False(t, Component("").Valid())
}

// TestValidateRejectsInvariantViolations tests the structural invariants.
func TestValidateRejectsInvariantViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "element danger below warning",
			mutate: func(c *Config) {
				c.Thresholds.ElementWarning = 3000
				c.Thresholds.ElementDanger = 1500
			},
		},
		{
			name: "element danger equal to warning",
			mutate: func(c *Config) {
				c.Thresholds.ElementDanger = c.Thresholds.ElementWarning
			},
		},
		{
			name: "iframe danger below warning",
			mutate: func(c *Config) {
				c.Thresholds.IframeDanger = c.Thresholds.IframeWarning - 1
			},
		},
		{
			name: "leak threshold above memory ceiling",
			mutate: func(c *Config) {
				c.Thresholds.LeakThresholdMB = c.Thresholds.MaxMemoryMB + 1
			},
		},
		{
			name: "leak threshold equal to memory ceiling",
			mutate: func(c *Config) {
				c.Thresholds.LeakThresholdMB = c.Thresholds.MaxMemoryMB
			},
		},
		{
			name: "timeout below floor",
			mutate: func(c *Config) {
				c.Thresholds.OperationTimeoutsMs[ComponentBatch] = 50
			},
		},
		{
			name: "unknown component timeout key",
			mutate: func(c *Config) {
				c.Thresholds.OperationTimeoutsMs[Component("renderer")] = 5000
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestCloneIsDeep tests that mutating a clone never leaks into the original.
func TestCloneIsDeep(t *testing.T) {
	original := Default()
	clone := original.Clone()

	clone.Thresholds.ElementWarning = 1
	clone.Thresholds.OperationTimeoutsMs[ComponentTracker] = 99999

	assert.Equal(t, 1500, original.Thresholds.ElementWarning)
	assert.Equal(t, 5000, original.Thresholds.OperationTimeoutsMs[ComponentTracker])
}

// TestLoadFile tests YAML loading over the defaults.
func TestLoadFile(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("partial file merges over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "diag.yaml")
		data := []byte(`
thresholds:
  elementWarning: 2000
  elementDanger: 4000
featureFlags:
  parallelAnalysis: false
`)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2000, cfg.Thresholds.ElementWarning)
		assert.Equal(t, 4000, cfg.Thresholds.ElementDanger)
		assert.False(t, cfg.FeatureFlags.ParallelAnalysis)
		// Untouched fields keep their defaults.
		assert.Equal(t, 15, cfg.Thresholds.IframeDanger)
		assert.True(t, cfg.FeatureFlags.ErrorEnrichment)
	})

	t.Run("invalid file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		data := []byte(`
thresholds:
  elementDanger: 100
`)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}

func TestSaveFile(t *testing.T) {
	t.Run("round trips through LoadFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "diag.yaml")

		cfg := Default()
		cfg.Thresholds.ElementWarning = 2500
		cfg.FeatureFlags.ParallelAnalysis = false
		require.NoError(t, SaveFile(path, cfg))

		loaded, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, loaded)
	})

	t.Run("invalid config is rejected before touching disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "diag.yaml")

		cfg := Default()
		cfg.Thresholds.ElementDanger = cfg.Thresholds.ElementWarning - 1
		assert.Error(t, SaveFile(path, cfg))

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
}
