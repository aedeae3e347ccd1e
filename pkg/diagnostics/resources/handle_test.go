package resources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSmartHandleLifecycle tests accessor guards across the disposal boundary.
func TestSmartHandleLifecycle(t *testing.T) {
	tracker := newTestTracker(t)
	res := &fakeDisposable{}

	handle := NewSmartHandle(tracker, "payload", res, "element-handle")
	assert.False(t, handle.Disposed())
	assert.True(t, tracker.Tracked(handle.ID()))

	value, err := handle.Resource()
	require.NoError(t, err)
	assert.Equal(t, "payload", value)

	used := false
	require.NoError(t, handle.Use(func(v string) error {
		used = true
		assert.Equal(t, "payload", v)
		return nil
	}))
	assert.True(t, used)

	require.NoError(t, handle.Dispose(context.Background()))
	assert.True(t, handle.Disposed())
	assert.Equal(t, 1, res.disposeCalls())

	_, err = handle.Resource()
	var disposedErr *DisposedStateError
	assert.ErrorAs(t, err, &disposedErr)
	assert.ErrorContains(t, err, "has been disposed")

	err = handle.Use(func(string) error { return nil })
	assert.ErrorAs(t, err, &disposedErr)
}

// TestSmartHandleDisposeIdempotent tests that repeated disposal releases the
// resource exactly once.
func TestSmartHandleDisposeIdempotent(t *testing.T) {
	tracker := newTestTracker(t)
	res := &fakeDisposable{}

	handle := NewSmartHandle(tracker, 42, res, "element-handle")
	require.NoError(t, handle.Dispose(context.Background()))
	require.NoError(t, handle.Dispose(context.Background()))
	assert.Equal(t, 1, res.disposeCalls())
}

// TestSmartHandleInvalidatedByDisposeAll tests that tracker-side disposal
// invalidates the wrapper too.
func TestSmartHandleInvalidatedByDisposeAll(t *testing.T) {
	tracker := newTestTracker(t)
	res := &fakeDisposable{}

	handle := NewSmartHandle(tracker, "payload", res, "element-handle")
	tracker.DisposeAll(context.Background())

	assert.True(t, handle.Disposed())
	_, err := handle.Resource()
	assert.Error(t, err)

	// Disposing the wrapper afterwards stays a no-op for the resource.
	require.NoError(t, handle.Dispose(context.Background()))
	assert.Equal(t, 1, res.disposeCalls())
}
