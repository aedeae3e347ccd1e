package config

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Default(), nil)
	require.NoError(t, err)
	return m
}

// TestManagerGetReturnsDeepCopy tests that readers cannot mutate shared state.
func TestManagerGetReturnsDeepCopy(t *testing.T) {
	m := newTestManager(t)

	snapshot := m.Get()
	snapshot.Thresholds.ElementWarning = 1
	snapshot.Thresholds.OperationTimeoutsMs[ComponentBatch] = 1

	fresh := m.Get()
	assert.Equal(t, 1500, fresh.Thresholds.ElementWarning)
	assert.Equal(t, 30000, fresh.Thresholds.OperationTimeoutsMs[ComponentBatch])
}

// TestManagerUpdate tests recursive merge and atomic validation.
func TestManagerUpdate(t *testing.T) {
	t.Run("partial update merges key-wise", func(t *testing.T) {
		m := newTestManager(t)

		_, err := m.Update(map[string]interface{}{
			"thresholds": map[string]interface{}{
				"elementWarning": 2000,
				"elementDanger":  4000,
			},
		})
		require.NoError(t, err)

		cfg := m.Get()
		assert.Equal(t, 2000, cfg.Thresholds.ElementWarning)
		assert.Equal(t, 4000, cfg.Thresholds.ElementDanger)
		assert.Equal(t, 5, cfg.Thresholds.IframeWarning)
	})

	t.Run("timeout map merges per component", func(t *testing.T) {
		m := newTestManager(t)

		_, err := m.Update(map[string]interface{}{
			"thresholds": map[string]interface{}{
				"operationTimeoutsMs": map[string]interface{}{
					"structure-analyzer": 20000,
				},
			},
		})
		require.NoError(t, err)

		cfg := m.Get()
		assert.Equal(t, 20000, cfg.Thresholds.OperationTimeoutsMs[ComponentAnalyzer])
		assert.Equal(t, 5000, cfg.Thresholds.OperationTimeoutsMs[ComponentTracker])
	})

	t.Run("invalid update is rejected wholesale", func(t *testing.T) {
		m := newTestManager(t)
		before := m.Get()

		_, err := m.Update(map[string]interface{}{
			"thresholds": map[string]interface{}{
				"elementWarning": 5000, // above unchanged danger of 3000
			},
		})
		require.Error(t, err)
		assert.Equal(t, before, m.Get())
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		m := newTestManager(t)
		before := m.Get()

		_, err := m.Update(map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, before, m.Get())
	})

	t.Run("re-applying the current config is a no-op", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.Update(map[string]interface{}{
			"thresholds":   map[string]interface{}{"elementWarning": 2000},
			"featureFlags": map[string]interface{}{"parallelAnalysis": false},
		})
		require.NoError(t, err)
		before := m.Get()

		raw, err := json.Marshal(before)
		require.NoError(t, err)
		var tree map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &tree))

		_, err = m.Update(tree)
		require.NoError(t, err)
		assert.Equal(t, before, m.Get())
	})
}

// TestManagerListeners tests the fan-out outcome contract.
func TestManagerListeners(t *testing.T) {
	t.Run("all listeners notified with outcomes", func(t *testing.T) {
		m := newTestManager(t)

		var got []int
		okID := m.Subscribe(func(cfg Config) error {
			got = append(got, cfg.Thresholds.ElementWarning)
			return nil
		})
		failID := m.Subscribe(func(Config) error {
			return errors.New("listener refused")
		})

		outcomes, err := m.Update(map[string]interface{}{
			"thresholds": map[string]interface{}{"elementWarning": 2000},
		})
		require.NoError(t, err)
		require.Len(t, outcomes, 2)

		byID := map[int]error{}
		for _, o := range outcomes {
			byID[o.ID] = o.Err
		}
		assert.NoError(t, byID[okID])
		assert.Error(t, byID[failID])
		assert.Equal(t, []int{2000}, got)
	})

	t.Run("panicking listener reported as error", func(t *testing.T) {
		m := newTestManager(t)
		m.Subscribe(func(Config) error { panic("boom") })

		outcomes, err := m.Update(map[string]interface{}{
			"featureFlags": map[string]interface{}{"smartHandles": false},
		})
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.ErrorContains(t, outcomes[0].Err, "panicked")
	})

	t.Run("rejected update notifies nobody", func(t *testing.T) {
		m := newTestManager(t)
		called := false
		m.Subscribe(func(Config) error {
			called = true
			return nil
		})

		_, err := m.Update(map[string]interface{}{
			"thresholds": map[string]interface{}{"elementWarning": 5000},
		})
		require.Error(t, err)
		assert.False(t, called)
	})

	t.Run("unsubscribed listener not notified", func(t *testing.T) {
		m := newTestManager(t)
		called := false
		id := m.Subscribe(func(Config) error {
			called = true
			return nil
		})
		m.Unsubscribe(id)

		outcomes, err := m.Update(map[string]interface{}{
			"featureFlags": map[string]interface{}{"smartHandles": false},
		})
		require.NoError(t, err)
		assert.Empty(t, outcomes)
		assert.False(t, called)
	})
}

// TestAdjustThresholds tests the adaptive control loop bounds.
func TestAdjustThresholds(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		avgMs       float64
		successRate float64
		want        int
		wantChanged bool
	}{
		{"raise capped at 20 percent", 2000, 1900, 0.95, 2400, true},
		{"raise capped at plus 1000ms", 20000, 19000, 0.95, 21000, true},
		{"no raise when success rate low", 2000, 1900, 0.85, 2000, false},
		{"lower by 10 percent", 10000, 2000, 0.99, 9000, true},
		{"lower floored at 100ms", 110, 10, 0.99, 100, true},
		{"no lower when success rate low", 10000, 2000, 0.95, 10000, false},
		{"steady state untouched", 2000, 1300, 0.99, 2000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			_, err := m.Update(map[string]interface{}{
				"thresholds": map[string]interface{}{
					"operationTimeoutsMs": map[string]interface{}{
						string(ComponentAnalyzer): tt.current,
					},
				},
			})
			require.NoError(t, err)

			got, changed := m.AdjustThresholds(ComponentAnalyzer, tt.avgMs, tt.successRate)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}

	t.Run("disabled by feature flag", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.Update(map[string]interface{}{
			"featureFlags": map[string]interface{}{"adaptiveThresholds": false},
		})
		require.NoError(t, err)

		got, changed := m.AdjustThresholds(ComponentAnalyzer, 9500, 0.99)
		assert.Equal(t, 10000, got)
		assert.False(t, changed)
	})

	t.Run("unknown component ignored", func(t *testing.T) {
		m := newTestManager(t)
		_, changed := m.AdjustThresholds(Component("renderer"), 9500, 0.99)
		assert.False(t, changed)
	})
}

// TestView tests role-scoped configuration slices.
func TestView(t *testing.T) {
	m := newTestManager(t)

	view, err := m.View(ComponentBatch)
	require.NoError(t, err)
	assert.Equal(t, ComponentBatch, view.Component)
	assert.Equal(t, 30000, view.OperationTimeoutMs)
	assert.True(t, view.ErrorEnrichment)
	assert.False(t, view.ParallelAnalysis)

	_, err = m.View(Component("renderer"))
	assert.Error(t, err)
}
