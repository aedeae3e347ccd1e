// Package enginetest provides in-memory fakes for the engine boundary, used
// by tests across the diagnostic packages.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/microsoft/playwright-mcp-sub003/pkg/engine"
)

// Fake is a scriptable in-memory Engine. Zero value is usable: Evaluate
// returns nil and FindAll returns no handles.
type Fake struct {
	mu sync.Mutex

	// EvaluateFunc, when set, answers Evaluate calls.
	EvaluateFunc func(ctx context.Context, script string) (interface{}, error)

	// FindAllFunc, when set, answers FindAll calls.
	FindAllFunc func(ctx context.Context, selector string) ([]engine.Handle, error)

	// DisposeErr is returned by Dispose when set.
	DisposeErr error

	evaluateCalls []string
	findAllCalls  []string
	disposeCalls  int
}

var _ engine.Engine = (*Fake)(nil)

// Evaluate records the call and delegates to EvaluateFunc.
func (f *Fake) Evaluate(ctx context.Context, script string) (interface{}, error) {
	f.mu.Lock()
	f.evaluateCalls = append(f.evaluateCalls, script)
	fn := f.EvaluateFunc
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, script)
}

// FindAll records the call and delegates to FindAllFunc.
func (f *Fake) FindAll(ctx context.Context, selector string) ([]engine.Handle, error) {
	f.mu.Lock()
	f.findAllCalls = append(f.findAllCalls, selector)
	fn := f.FindAllFunc
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, selector)
}

// Dispose records the call and returns DisposeErr.
func (f *Fake) Dispose(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposeCalls++
	return f.DisposeErr
}

// EvaluateCalls returns the scripts evaluated so far.
func (f *Fake) EvaluateCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.evaluateCalls...)
}

// FindAllCalls returns the selectors queried so far.
func (f *Fake) FindAllCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.findAllCalls...)
}

// DisposeCalls returns how many times Dispose was invoked.
func (f *Fake) DisposeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposeCalls
}

// FakeHandle is a scriptable in-memory Handle.
type FakeHandle struct {
	mu sync.Mutex

	// EvaluateFunc, when set, answers Evaluate calls.
	EvaluateFunc func(ctx context.Context, script string) (interface{}, error)

	// DisposeErr is returned by the first Dispose call when set.
	DisposeErr error

	disposed     bool
	disposeCalls int
}

var _ engine.Handle = (*FakeHandle)(nil)

// Evaluate delegates to EvaluateFunc, failing if the handle was disposed.
func (h *FakeHandle) Evaluate(ctx context.Context, script string) (interface{}, error) {
	h.mu.Lock()
	disposed := h.disposed
	fn := h.EvaluateFunc
	h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if disposed {
		return nil, fmt.Errorf("fake handle disposed")
	}
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, script)
}

// Dispose marks the handle disposed. Idempotent; DisposeErr is only returned
// on the first call.
func (h *FakeHandle) Dispose(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disposeCalls++
	if h.disposed {
		return nil
	}
	h.disposed = true
	return h.DisposeErr
}

// Disposed reports whether Dispose has been called.
func (h *FakeHandle) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

// DisposeCalls returns how many times Dispose was invoked.
func (h *FakeHandle) DisposeCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposeCalls
}
