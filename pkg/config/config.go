// Package config holds the adaptive configuration tree consulted by every
// diagnostic component: numeric warning/danger thresholds, feature flags, and
// the error-handling policy. Reads always return deep copies; updates are
// recursive merges validated atomically before they take effect.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Component identifies a diagnostic component for role-scoped configuration
// and adaptive threshold feedback. The set is closed; switches over it are
// exhaustive.
type Component string

const (
	ComponentTracker      Component = "resource-tracker"
	ComponentAnalyzer     Component = "structure-analyzer"
	ComponentEnrichment   Component = "error-enrichment"
	ComponentOrchestrator Component = "orchestrator"
	ComponentBatch        Component = "batch-executor"
)

// Components lists every known component in a stable order.
func Components() []Component {
	return []Component{
		ComponentTracker,
		ComponentAnalyzer,
		ComponentEnrichment,
		ComponentOrchestrator,
		ComponentBatch,
	}
}

// Valid reports whether c is a known component.
func (c Component) Valid() bool {
	switch c {
	case ComponentTracker, ComponentAnalyzer, ComponentEnrichment,
		ComponentOrchestrator, ComponentBatch:
		return true
	}
	return false
}

// Thresholds holds the numeric operating limits. Danger tiers must strictly
// exceed their warning tiers, and the leak threshold must stay below the
// memory ceiling; both invariants are enforced on every update.
type Thresholds struct {
	ElementWarning int `json:"elementWarning" yaml:"elementWarning" validate:"min=1"`
	ElementDanger  int `json:"elementDanger" yaml:"elementDanger" validate:"gtfield=ElementWarning"`

	IframeWarning int `json:"iframeWarning" yaml:"iframeWarning" validate:"min=1"`
	IframeDanger  int `json:"iframeDanger" yaml:"iframeDanger" validate:"gtfield=IframeWarning"`

	DOMDepthWarning int `json:"domDepthWarning" yaml:"domDepthWarning" validate:"min=1"`
	DOMDepthDanger  int `json:"domDepthDanger" yaml:"domDepthDanger" validate:"gtfield=DOMDepthWarning"`

	ZIndexWarning int `json:"zIndexWarning" yaml:"zIndexWarning" validate:"min=1"`
	ZIndexDanger  int `json:"zIndexDanger" yaml:"zIndexDanger" validate:"gtfield=ZIndexWarning"`

	// LargeSubtreeElements is the descendant count at which a subtree is
	// reported as large by the performance analyzer.
	LargeSubtreeElements int `json:"largeSubtreeElements" yaml:"largeSubtreeElements" validate:"min=1"`

	// LeakThresholdMB must stay strictly below MaxMemoryMB.
	LeakThresholdMB int `json:"leakThresholdMB" yaml:"leakThresholdMB" validate:"min=1,ltfield=MaxMemoryMB"`
	MaxMemoryMB     int `json:"maxMemoryMB" yaml:"maxMemoryMB" validate:"min=1"`

	// AutoDisposeTimeoutMs is the lifetime budget after which a still-live
	// handle counts as a leak. Flagging never force-disposes.
	AutoDisposeTimeoutMs int `json:"autoDisposeTimeoutMs" yaml:"autoDisposeTimeoutMs" validate:"min=1"`

	MaxTrackedHandles   int `json:"maxTrackedHandles" yaml:"maxTrackedHandles" validate:"min=1"`
	MaxOperationHistory int `json:"maxOperationHistory" yaml:"maxOperationHistory" validate:"min=1"`

	// OperationTimeoutsMs maps each component to its per-operation timeout
	// budget in milliseconds. This is the value the adaptive loop tunes.
	OperationTimeoutsMs map[Component]int `json:"operationTimeoutsMs" yaml:"operationTimeoutsMs" validate:"dive,min=100"`
}

// FeatureFlags toggle optional behaviors.
type FeatureFlags struct {
	AdaptiveThresholds bool `json:"adaptiveThresholds" yaml:"adaptiveThresholds"`
	ParallelAnalysis   bool `json:"parallelAnalysis" yaml:"parallelAnalysis"`
	ErrorEnrichment    bool `json:"errorEnrichment" yaml:"errorEnrichment"`
	SmartHandles       bool `json:"smartHandles" yaml:"smartHandles"`
	HealthChecks       bool `json:"healthChecks" yaml:"healthChecks"`
}

// ErrorHandling is the failure-enrichment policy.
type ErrorHandling struct {
	MaxRetries              int  `json:"maxRetries" yaml:"maxRetries" validate:"min=0"`
	CaptureStructureOnError bool `json:"captureStructureOnError" yaml:"captureStructureOnError"`
	SuggestAlternatives     bool `json:"suggestAlternatives" yaml:"suggestAlternatives"`
	MaxAlternatives         int  `json:"maxAlternatives" yaml:"maxAlternatives" validate:"min=1"`
}

// Config is the full configuration tree.
type Config struct {
	Thresholds    Thresholds    `json:"thresholds" yaml:"thresholds"`
	FeatureFlags  FeatureFlags  `json:"featureFlags" yaml:"featureFlags"`
	ErrorHandling ErrorHandling `json:"errorHandling" yaml:"errorHandling"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Thresholds: Thresholds{
			ElementWarning:       1500,
			ElementDanger:        3000,
			IframeWarning:        5,
			IframeDanger:         15,
			DOMDepthWarning:      15,
			DOMDepthDanger:       25,
			ZIndexWarning:        1000,
			ZIndexDanger:         9999,
			LargeSubtreeElements: 500,
			LeakThresholdMB:      50,
			MaxMemoryMB:          512,
			AutoDisposeTimeoutMs: 60000,
			MaxTrackedHandles:    1000,
			MaxOperationHistory:  500,
			OperationTimeoutsMs: map[Component]int{
				ComponentTracker:      5000,
				ComponentAnalyzer:     10000,
				ComponentEnrichment:   5000,
				ComponentOrchestrator: 30000,
				ComponentBatch:        30000,
			},
		},
		FeatureFlags: FeatureFlags{
			AdaptiveThresholds: true,
			ParallelAnalysis:   true,
			ErrorEnrichment:    true,
			SmartHandles:       true,
			HealthChecks:       true,
		},
		ErrorHandling: ErrorHandling{
			MaxRetries:              2,
			CaptureStructureOnError: true,
			SuggestAlternatives:     true,
			MaxAlternatives:         5,
		},
	}
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	out := c
	if c.Thresholds.OperationTimeoutsMs != nil {
		timeouts := make(map[Component]int, len(c.Thresholds.OperationTimeoutsMs))
		for k, v := range c.Thresholds.OperationTimeoutsMs {
			timeouts[k] = v
		}
		out.Thresholds.OperationTimeoutsMs = timeouts
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural invariants: every danger tier strictly above
// its warning tier, leak threshold below the memory ceiling, no timeout below
// the 100ms floor, and no unknown component keys.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for component := range c.Thresholds.OperationTimeoutsMs {
		if !component.Valid() {
			return fmt.Errorf("invalid configuration: unknown component %q in operation timeouts", component)
		}
	}
	return nil
}

// LoadFile reads a YAML configuration file and merges it over the defaults.
// A missing file is not an error; the defaults are returned unchanged.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var partial map[string]interface{}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	merged, err := mergeInto(cfg, partial)
	if err != nil {
		return Config{}, fmt.Errorf("failed to apply config file %s: %w", path, err)
	}
	if err := merged.Validate(); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return merged, nil
}

// SaveFile writes a configuration to a YAML file. The write goes through a
// temp file and a rename so a crash never leaves a half-written config.
func SaveFile(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
