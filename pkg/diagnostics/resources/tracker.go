// Package resources tracks live disposable handles: leak accounting, peak
// statistics, and best-effort mass disposal. The tracker holds non-owning
// registry entries; the resources themselves are owned by whichever component
// created them.
package resources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
	"github.com/microsoft/playwright-mcp-sub003/pkg/logging"
)

// Disposable releases an externally-owned resource. engine.Handle satisfies
// this interface.
type Disposable interface {
	Dispose(ctx context.Context) error
}

// DisposedStateError reports use of a resource after its disposal. Always
// fatal to that call.
type DisposedStateError struct {
	Resource string
}

func (e *DisposedStateError) Error() string {
	return fmt.Sprintf("resource %s has been disposed", e.Resource)
}

// record is one registry entry.
type record struct {
	id        string
	category  string
	trackedAt time.Time
	disposer  Disposable
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	// Active is the number of currently tracked handles.
	Active int `json:"active"`

	// Peak is the highest Active ever observed; it only grows.
	Peak int `json:"peak"`

	// Disposed is the total number of handles released through the tracker.
	Disposed int `json:"disposed"`

	// Leaks counts handles alive past the auto-dispose budget. Leaked
	// handles are surfaced, never force-disposed: a resource past its
	// budget may still be legitimately in use.
	Leaks int `json:"leaks"`
}

// Tracker is the shared handle registry for one automation context. Any
// component may track and untrack concurrently; disposal of a given id routes
// exclusively through the tracker.
type Tracker struct {
	mu       sync.Mutex
	cfg      *config.Manager
	records  map[string]*record
	peak     int
	disposed int
	logger   *logging.Logger

	// now is swappable for leak-accounting tests.
	now func() time.Time
}

// NewTracker creates an empty registry.
func NewTracker(cfg *config.Manager, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.Discard("resource-tracker")
	}
	return &Tracker{
		cfg:     cfg,
		records: make(map[string]*record),
		logger:  logger,
		now:     time.Now,
	}
}

// Track registers a disposable resource and returns its handle id. Tracking
// beyond the configured registry size is allowed but logged; saturation is
// surfaced through health checks rather than enforced here.
func (t *Tracker) Track(resource Disposable, category string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.New().String()
	t.records[id] = &record{
		id:        id,
		category:  category,
		trackedAt: t.now(),
		disposer:  resource,
	}

	if active := len(t.records); active > t.peak {
		t.peak = active
	}
	if maxHandles := t.cfg.Get().Thresholds.MaxTrackedHandles; len(t.records) > maxHandles {
		t.logger.Warnf("handle registry over capacity: %d tracked, max %d", len(t.records), maxHandles)
	}
	return id
}

// Untrack disposes a handle and removes it from the registry. A second call
// for the same id is a no-op, never an error.
func (t *Tracker) Untrack(ctx context.Context, id string) error {
	t.mu.Lock()
	rec, ok := t.records[id]
	if ok {
		delete(t.records, id)
		t.disposed++
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}
	if err := rec.disposer.Dispose(ctx); err != nil {
		return fmt.Errorf("failed to dispose handle %s (%s): %w", id, rec.category, err)
	}
	return nil
}

// Tracked reports whether an id is still registered.
func (t *Tracker) Tracked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.records[id]
	return ok
}

// Stats returns current registry statistics. The leak count is computed on
// read from each record's age against the configured auto-dispose budget.
func (t *Tracker) Stats() Stats {
	budget := time.Duration(t.cfg.Get().Thresholds.AutoDisposeTimeoutMs) * time.Millisecond

	t.mu.Lock()
	defer t.mu.Unlock()

	leaks := 0
	now := t.now()
	for _, rec := range t.records {
		if now.Sub(rec.trackedAt) > budget {
			leaks++
		}
	}

	return Stats{
		Active:   len(t.records),
		Peak:     t.peak,
		Disposed: t.disposed,
		Leaks:    leaks,
	}
}

// Categories returns the count of active handles per category.
func (t *Tracker) Categories() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int)
	for _, rec := range t.records {
		out[rec.category]++
	}
	return out
}

// DisposeAll releases every tracked handle concurrently with settle-all
// semantics: every disposer runs to completion regardless of sibling
// failures. Failures are aggregated into the returned slice and logged, never
// thrown mid-fan-out.
func (t *Tracker) DisposeAll(ctx context.Context) []error {
	t.mu.Lock()
	pending := make([]*record, 0, len(t.records))
	for _, rec := range t.records {
		pending = append(pending, rec)
	}
	t.records = make(map[string]*record)
	t.disposed += len(pending)
	t.mu.Unlock()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, rec := range pending {
		wg.Add(1)
		go func(rec *record) {
			defer wg.Done()
			if err := rec.disposer.Dispose(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("failed to dispose handle %s (%s): %w", rec.id, rec.category, err))
				errMu.Unlock()
			}
		}(rec)
	}
	wg.Wait()

	for _, err := range errs {
		t.logger.Errorf("dispose-all: %v", err)
	}
	if len(pending) > 0 {
		t.logger.Infof("dispose-all released %d handles (%d failures)", len(pending), len(errs))
	}
	return errs
}
