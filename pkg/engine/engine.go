// Package engine defines the boundary to the browser-automation engine. The
// diagnostic core treats the engine as an opaque capability: it can evaluate
// scripts, enumerate element handles, and be disposed. Nothing above this
// package assumes a specific transport or browser.
package engine

import "context"

// Engine is the opaque automation-engine capability consumed by the
// diagnostic core. Every call is a suspension point; callers wrap calls in
// their own timeout races. A timed-out call is not interrupted and may still
// complete after the deadline — its handles must still be disposed.
type Engine interface {
	// Evaluate runs a script in the environment and returns its
	// JSON-shaped result.
	Evaluate(ctx context.Context, script string) (interface{}, error)

	// FindAll returns handles for every element matching the selector.
	// Each returned handle must be disposed by the caller.
	FindAll(ctx context.Context, selector string) ([]Handle, error)

	// Dispose releases the engine and everything it owns.
	Dispose(ctx context.Context) error
}

// Handle is a reference to an externally-owned, disposable element. It must
// be released exactly once.
type Handle interface {
	// Evaluate runs a script against the element, receiving the element
	// as its argument.
	Evaluate(ctx context.Context, script string) (interface{}, error)

	// Dispose releases the handle. Implementations are idempotent.
	Dispose(ctx context.Context) error
}

// Navigator is implemented by engines that can drive top-level navigation.
// The diagnostic core never requires it; built-in tools probe for it.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}
