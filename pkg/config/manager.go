package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/microsoft/playwright-mcp-sub003/pkg/logging"
)

// Listener observes accepted configuration updates. Listeners receive their
// own deep copy and may fail (or panic) without affecting other listeners.
type Listener func(Config) error

// ListenerOutcome reports how a single listener handled an update. Fan-out
// never swallows failures silently; the emitter gets the full outcome list.
type ListenerOutcome struct {
	ID  int
	Err error
}

// Manager owns the live configuration. It is constructed once at the
// composition root and passed explicitly to every component; there is no
// hidden global instance.
//
// Configuration is not on the correctness-critical path, so updates are
// last-writer-wins under a plain mutex.
type Manager struct {
	mu        sync.RWMutex
	current   Config
	defaults  Config
	listeners map[int]Listener
	nextID    int
	logger    *logging.Logger
}

// NewManager creates a manager seeded with the given configuration.
func NewManager(cfg Config, logger *logging.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard("config")
	}
	return &Manager{
		current:   cfg.Clone(),
		defaults:  Default(),
		listeners: make(map[int]Listener),
		logger:    logger,
	}, nil
}

// Get returns a deep copy of the current configuration. Callers never mutate
// shared state through the returned value.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Subscribe registers a listener for accepted updates and returns its id.
func (m *Manager) Subscribe(l Listener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return id
}

// Unsubscribe removes a previously registered listener. Unknown ids are a
// no-op.
func (m *Manager) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// Update merges a partial configuration into the current tree. Maps merge
// key-wise; scalar values and arrays replace wholesale. The merged result is
// validated atomically: on any invariant violation the update is rejected and
// the prior configuration is retained.
//
// Registered listeners are notified of an accepted update; a listener's own
// failure never blocks the others and is reported in the returned outcomes.
func (m *Manager) Update(partial map[string]interface{}) ([]ListenerOutcome, error) {
	m.mu.Lock()

	merged, err := mergeInto(m.current, partial)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to merge configuration update: %w", err)
	}
	if err := merged.Validate(); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("configuration update rejected: %w", err)
	}

	m.current = merged

	// Snapshot listeners and value before releasing the lock so slow
	// listeners never stall readers.
	snapshot := m.current.Clone()
	ids := make([]int, 0, len(m.listeners))
	listeners := make([]Listener, 0, len(m.listeners))
	for id, l := range m.listeners {
		ids = append(ids, id)
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	outcomes := make([]ListenerOutcome, 0, len(listeners))
	for i, l := range listeners {
		outcomes = append(outcomes, ListenerOutcome{ID: ids[i], Err: runListener(l, snapshot.Clone())})
	}
	for _, o := range outcomes {
		if o.Err != nil {
			m.logger.Warnf("configuration listener %d failed: %v", o.ID, o.Err)
		}
	}
	return outcomes, nil
}

// runListener invokes a listener, converting a panic into an error so one
// misbehaving observer cannot take down the update path.
func runListener(l Listener, cfg Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l(cfg)
}

// AdjustThresholds is the adaptive control loop. Given the observed average
// execution time and success rate for a component, it drifts the component's
// operation timeout toward the observed operating point:
//
//   - avg > 0.8×current and successRate > 0.9: raise by the lesser of 20%
//     or +1000ms (operations are healthy but close to the budget).
//   - avg < 0.5×current and successRate > 0.95: lower by 10%, floored at
//     100ms (budget is far looser than needed).
//
// It returns the new timeout and whether anything changed. Gated on the
// AdaptiveThresholds feature flag.
func (m *Manager) AdjustThresholds(component Component, avgExecutionMs float64, successRate float64) (int, bool) {
	if !component.Valid() {
		return 0, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.FeatureFlags.AdaptiveThresholds {
		return m.current.Thresholds.OperationTimeoutsMs[component], false
	}

	current, ok := m.current.Thresholds.OperationTimeoutsMs[component]
	if !ok {
		return 0, false
	}

	switch {
	case avgExecutionMs > 0.8*float64(current) && successRate > 0.9:
		raised := min(int(float64(current)*1.2), current+1000)
		m.current.Thresholds.OperationTimeoutsMs[component] = raised
		m.logger.Infof("adaptive threshold raised for %s: %dms -> %dms (avg=%.0fms rate=%.2f)",
			component, current, raised, avgExecutionMs, successRate)
		return raised, true

	case avgExecutionMs < 0.5*float64(current) && successRate > 0.95:
		lowered := max(int(float64(current)*0.9), 100)
		m.current.Thresholds.OperationTimeoutsMs[component] = lowered
		m.logger.Infof("adaptive threshold lowered for %s: %dms -> %dms (avg=%.0fms rate=%.2f)",
			component, current, lowered, avgExecutionMs, successRate)
		return lowered, true
	}

	return current, false
}

// ComponentView is a role-scoped slice of the configuration: the component's
// timeout budget plus the flags relevant to it. Consumers read this instead
// of the global tree.
type ComponentView struct {
	Component          Component
	OperationTimeoutMs int
	AdaptiveThresholds bool
	ParallelAnalysis   bool
	ErrorEnrichment    bool
	SmartHandles       bool
	HealthChecks       bool
}

// View derives the role-scoped configuration for a component.
func (m *Manager) View(component Component) (ComponentView, error) {
	if !component.Valid() {
		return ComponentView{}, fmt.Errorf("unknown component %q", component)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	view := ComponentView{
		Component:          component,
		OperationTimeoutMs: m.current.Thresholds.OperationTimeoutsMs[component],
		AdaptiveThresholds: m.current.FeatureFlags.AdaptiveThresholds,
	}

	switch component {
	case ComponentTracker:
		view.SmartHandles = m.current.FeatureFlags.SmartHandles
	case ComponentAnalyzer:
		view.ParallelAnalysis = m.current.FeatureFlags.ParallelAnalysis
	case ComponentEnrichment:
		view.ErrorEnrichment = m.current.FeatureFlags.ErrorEnrichment
	case ComponentOrchestrator:
		view.ParallelAnalysis = m.current.FeatureFlags.ParallelAnalysis
		view.ErrorEnrichment = m.current.FeatureFlags.ErrorEnrichment
		view.HealthChecks = m.current.FeatureFlags.HealthChecks
	case ComponentBatch:
		view.ErrorEnrichment = m.current.FeatureFlags.ErrorEnrichment
	}

	return view, nil
}

// mergeInto converts the base configuration to its map form, recursively
// merges the partial tree over it, and decodes the result back into a typed
// Config. Maps merge key-wise; everything else (scalars, arrays) replaces.
func mergeInto(base Config, partial map[string]interface{}) (Config, error) {
	raw, err := json.Marshal(base)
	if err != nil {
		return Config{}, fmt.Errorf("failed to encode base config: %w", err)
	}

	var tree map[string]interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return Config{}, fmt.Errorf("failed to decode base config: %w", err)
	}

	deepMerge(tree, partial)

	merged, err := json.Marshal(tree)
	if err != nil {
		return Config{}, fmt.Errorf("failed to encode merged config: %w", err)
	}

	var out Config
	if err := json.Unmarshal(merged, &out); err != nil {
		return Config{}, fmt.Errorf("failed to decode merged config: %w", err)
	}
	return out, nil
}

// deepMerge merges src into dst in place. Nested maps merge recursively;
// any other value overwrites.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := toStringMap(srcVal); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = normalize(srcVal)
	}
}

// toStringMap accepts both JSON-style and YAML-style nested maps.
func toStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprintf("%v", k)] = val
		}
		return out, true
	}
	return nil, false
}

// normalize rewrites YAML interface-keyed maps into string-keyed ones so the
// merged tree always round-trips through JSON.
func normalize(v interface{}) interface{} {
	if m, ok := toStringMap(v); ok {
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = normalize(val)
		}
		return out
	}
	if s, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(s))
		for i, val := range s {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}
