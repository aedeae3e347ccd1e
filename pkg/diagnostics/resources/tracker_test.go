package resources

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
)

// fakeDisposable counts disposals and optionally fails.
type fakeDisposable struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeDisposable) Dispose(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeDisposable) disposeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	m, err := config.NewManager(config.Default(), nil)
	require.NoError(t, err)
	return NewTracker(m, nil)
}

// TestTrackUntrack tests the basic registry lifecycle.
func TestTrackUntrack(t *testing.T) {
	tracker := newTestTracker(t)
	res := &fakeDisposable{}

	id := tracker.Track(res, "frame-handle")
	assert.NotEmpty(t, id)
	assert.True(t, tracker.Tracked(id))

	require.NoError(t, tracker.Untrack(context.Background(), id))
	assert.False(t, tracker.Tracked(id))
	assert.Equal(t, 1, res.disposeCalls())

	stats := tracker.Stats()
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 1, stats.Peak)
	assert.Equal(t, 1, stats.Disposed)
}

// TestUntrackIdempotent tests that repeated untracks dispose exactly once.
func TestUntrackIdempotent(t *testing.T) {
	tracker := newTestTracker(t)
	res := &fakeDisposable{}

	id := tracker.Track(res, "frame-handle")
	require.NoError(t, tracker.Untrack(context.Background(), id))
	require.NoError(t, tracker.Untrack(context.Background(), id))
	require.NoError(t, tracker.Untrack(context.Background(), "no-such-id"))

	assert.Equal(t, 1, res.disposeCalls())
	assert.Equal(t, 1, tracker.Stats().Disposed)
}

// TestUntrackPropagatesDisposerError tests that the first untrack surfaces
// the disposer failure but still removes the record.
func TestUntrackPropagatesDisposerError(t *testing.T) {
	tracker := newTestTracker(t)
	res := &fakeDisposable{err: errors.New("page closed")}

	id := tracker.Track(res, "frame-handle")
	err := tracker.Untrack(context.Background(), id)
	assert.ErrorContains(t, err, "page closed")
	assert.False(t, tracker.Tracked(id))
}

// TestPeakOnlyGrows tests peak accounting across churn.
func TestPeakOnlyGrows(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, tracker.Track(&fakeDisposable{}, "frame-handle"))
	}
	for _, id := range ids[:4] {
		require.NoError(t, tracker.Untrack(ctx, id))
	}
	tracker.Track(&fakeDisposable{}, "frame-handle")

	stats := tracker.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 5, stats.Peak)
}

// TestLeakAccounting tests that handles past the auto-dispose budget are
// counted as leaks but never force-disposed.
func TestLeakAccounting(t *testing.T) {
	tracker := newTestTracker(t)
	base := time.Now()
	tracker.now = func() time.Time { return base }

	old := &fakeDisposable{}
	tracker.Track(old, "frame-handle")

	// Advance the clock past the 60s default budget; the second handle is
	// tracked at the later time and stays fresh.
	tracker.now = func() time.Time { return base.Add(61 * time.Second) }
	fresh := &fakeDisposable{}
	tracker.Track(fresh, "frame-handle")

	stats := tracker.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Leaks)
	assert.Equal(t, 0, old.disposeCalls(), "leak flagging must not dispose")
}

// TestCategories tests per-category active counts.
func TestCategories(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	tracker.Track(&fakeDisposable{}, "frame-handle")
	tracker.Track(&fakeDisposable{}, "frame-handle")
	id := tracker.Track(&fakeDisposable{}, "element-handle")

	assert.Equal(t, map[string]int{"frame-handle": 2, "element-handle": 1}, tracker.Categories())

	require.NoError(t, tracker.Untrack(ctx, id))
	assert.Equal(t, map[string]int{"frame-handle": 2}, tracker.Categories())
}

// TestDisposeAllSettles tests settle-all semantics: every disposer runs even
// when siblings fail, and all failures are aggregated.
func TestDisposeAllSettles(t *testing.T) {
	tracker := newTestTracker(t)

	good1 := &fakeDisposable{}
	bad1 := &fakeDisposable{err: errors.New("gone")}
	good2 := &fakeDisposable{}
	bad2 := &fakeDisposable{err: errors.New("also gone")}
	for _, res := range []*fakeDisposable{good1, bad1, good2, bad2} {
		tracker.Track(res, "frame-handle")
	}

	errs := tracker.DisposeAll(context.Background())
	assert.Len(t, errs, 2)

	for _, res := range []*fakeDisposable{good1, bad1, good2, bad2} {
		assert.Equal(t, 1, res.disposeCalls())
	}

	stats := tracker.Stats()
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 4, stats.Disposed)
}

// TestDisposeAllEmpty tests the empty-registry case.
func TestDisposeAllEmpty(t *testing.T) {
	tracker := newTestTracker(t)
	assert.Empty(t, tracker.DisposeAll(context.Background()))
}
