package resources

import (
	"context"
	"sync"
)

// SmartHandle wraps a tracked resource with an explicit disposed-state guard.
// Every accessor checks the flag and fails with a DisposedStateError after
// disposal; there is no dynamic interception. Disposal routes exclusively
// through the tracker.
type SmartHandle[T any] struct {
	mu       sync.Mutex
	id       string
	tracker  *Tracker
	resource T
	disposed bool
}

// NewSmartHandle tracks the resource and returns a guarded wrapper for it.
// The disposer releases the underlying resource when the handle is untracked;
// when the resource itself is Disposable, pass it as both arguments.
func NewSmartHandle[T any](tracker *Tracker, resource T, disposer Disposable, category string) *SmartHandle[T] {
	id := tracker.Track(disposer, category)
	return &SmartHandle[T]{
		id:       id,
		tracker:  tracker,
		resource: resource,
	}
}

// ID returns the tracker id of the handle.
func (h *SmartHandle[T]) ID() string {
	return h.id
}

// Resource returns the wrapped resource, or a DisposedStateError after
// disposal. Disposal through the tracker (Untrack or DisposeAll) also
// invalidates the handle.
func (h *SmartHandle[T]) Resource() (T, error) {
	var zero T
	if h.isDisposed() {
		return zero, &DisposedStateError{Resource: h.id}
	}
	return h.resource, nil
}

// Use runs fn against the resource under the disposed-state guard.
func (h *SmartHandle[T]) Use(fn func(T) error) error {
	resource, err := h.Resource()
	if err != nil {
		return err
	}
	return fn(resource)
}

// Dispose releases the handle through the tracker. Idempotent.
func (h *SmartHandle[T]) Dispose(ctx context.Context) error {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return nil
	}
	h.disposed = true
	h.mu.Unlock()

	return h.tracker.Untrack(ctx, h.id)
}

// Disposed reports whether the handle is no longer usable.
func (h *SmartHandle[T]) Disposed() bool {
	return h.isDisposed()
}

func (h *SmartHandle[T]) isDisposed() bool {
	h.mu.Lock()
	local := h.disposed
	h.mu.Unlock()
	if local {
		return true
	}
	// The tracker may have released the id out from under us (DisposeAll).
	return !h.tracker.Tracked(h.id)
}
