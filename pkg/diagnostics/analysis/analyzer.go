package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/resources"
	"github.com/microsoft/playwright-mcp-sub003/pkg/engine"
	"github.com/microsoft/playwright-mcp-sub003/pkg/logging"
)

const (
	// frameAccessTimeout bounds content access per frame during the census.
	frameAccessTimeout = 2 * time.Second

	// frameCensusConcurrency bounds the census fan-out.
	frameCensusConcurrency = 4
)

// Analyzer performs single-pass inspections of an environment snapshot.
type Analyzer struct {
	engine  engine.Engine
	tracker *resources.Tracker
	cfg     *config.Manager
	logger  *logging.Logger

	mu       sync.Mutex
	disposed bool
	frameIDs map[string]struct{}
}

// NewAnalyzer creates an analyzer over the given engine. Frame handles opened
// during analysis are registered with the tracker and released as soon as
// each frame has been inspected.
func NewAnalyzer(eng engine.Engine, tracker *resources.Tracker, cfg *config.Manager, logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Discard("structure-analyzer")
	}
	return &Analyzer{
		engine:   eng,
		tracker:  tracker,
		cfg:      cfg,
		logger:   logger,
		frameIDs: make(map[string]struct{}),
	}
}

func (a *Analyzer) checkLive() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return &resources.DisposedStateError{Resource: "structure-analyzer"}
	}
	return nil
}

// AnalyzeStructure gathers the nested-frame census, modal-state heuristics,
// and element tallies. The three gathers are independent reads and run
// concurrently; the first failure aborts the pass.
func (a *Analyzer) AnalyzeStructure(ctx context.Context) (StructureReport, error) {
	if err := a.checkLive(); err != nil {
		return StructureReport{}, err
	}

	var report StructureReport
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		frames, err := a.frameCensus(gctx)
		if err != nil {
			return fmt.Errorf("frame census failed: %w", err)
		}
		report.Iframes = frames
		return nil
	})
	g.Go(func() error {
		raw, err := a.engine.Evaluate(gctx, modalStateScript)
		if err != nil {
			return fmt.Errorf("modal-state detection failed: %w", err)
		}
		return decodeInto(raw, &report.Modal)
	})
	g.Go(func() error {
		raw, err := a.engine.Evaluate(gctx, elementMetricsScript)
		if err != nil {
			return fmt.Errorf("element tally failed: %w", err)
		}
		return decodeInto(raw, &report.Elements)
	})

	if err := g.Wait(); err != nil {
		return StructureReport{}, err
	}
	if report.Iframes == nil {
		report.Iframes = []FrameInfo{}
	}
	return report, nil
}

// frameCensus inspects each nested frame under a short timeout, classifying
// it accessible or inaccessible with a reason. Every frame handle is tracked
// and disposed immediately after inspection; a frame whose inspection fails
// is a census entry, never a census error.
func (a *Analyzer) frameCensus(ctx context.Context) ([]FrameInfo, error) {
	handles, err := a.engine.FindAll(ctx, "iframe")
	if err != nil {
		return nil, err
	}

	infos := make([]FrameInfo, len(handles))
	g := new(errgroup.Group)
	g.SetLimit(frameCensusConcurrency)

	smartHandles := a.cfg.Get().FeatureFlags.SmartHandles
	for i, h := range handles {
		g.Go(func() error {
			var id string
			inspect := func() (interface{}, error) {
				return evaluateHandleWithTimeout(ctx, h, frameStatsScript, frameAccessTimeout)
			}
			if smartHandles {
				smart := resources.NewSmartHandle(a.tracker, h, h, "iframe-handle")
				id = smart.ID()
				inspect = func() (interface{}, error) {
					var raw interface{}
					err := smart.Use(func(handle engine.Handle) error {
						var uerr error
						raw, uerr = evaluateHandleWithTimeout(ctx, handle, frameStatsScript, frameAccessTimeout)
						return uerr
					})
					return raw, err
				}
			} else {
				id = a.tracker.Track(h, "iframe-handle")
			}
			a.rememberFrame(id)
			// Dispose even when the caller's context has been cancelled;
			// a timed-out inspection must not leak its handle. Untracking
			// also invalidates the smart wrapper.
			defer func() {
				if err := a.tracker.Untrack(context.WithoutCancel(ctx), id); err != nil {
					a.logger.Warnf("failed to release frame handle %s: %v", id, err)
				}
				a.forgetFrame(id)
			}()

			raw, err := inspect()
			if err != nil {
				infos[i] = FrameInfo{Index: i, Accessible: false, Reason: err.Error()}
				return nil
			}
			var info FrameInfo
			if err := decodeInto(raw, &info); err != nil {
				infos[i] = FrameInfo{Index: i, Accessible: false, Reason: err.Error()}
				return nil
			}
			info.Index = i
			infos[i] = info
			return nil
		})
	}

	// Census goroutines never return errors; Wait is for completion only.
	_ = g.Wait()
	return infos, nil
}

func (a *Analyzer) rememberFrame(id string) {
	a.mu.Lock()
	a.frameIDs[id] = struct{}{}
	a.mu.Unlock()
}

func (a *Analyzer) forgetFrame(id string) {
	a.mu.Lock()
	delete(a.frameIDs, id)
	a.mu.Unlock()
}

// AnalyzePerformance runs one full environment evaluation and compares each
// metric against its configured warning/danger pair.
func (a *Analyzer) AnalyzePerformance(ctx context.Context) (PerformanceMetrics, error) {
	if err := a.checkLive(); err != nil {
		return PerformanceMetrics{}, err
	}

	thresholds := a.cfg.Get().Thresholds
	script := performanceScript(
		thresholds.LargeSubtreeElements,
		thresholds.ZIndexWarning,
		thresholds.ZIndexDanger,
	)

	raw, err := a.engine.Evaluate(ctx, script)
	if err != nil {
		return PerformanceMetrics{}, fmt.Errorf("performance evaluation failed: %w", err)
	}

	var metrics PerformanceMetrics
	if err := decodeInto(raw, &metrics); err != nil {
		return PerformanceMetrics{}, fmt.Errorf("failed to decode performance metrics: %w", err)
	}

	for i := range metrics.DOM.LargeSubtrees {
		st := &metrics.DOM.LargeSubtrees[i]
		st.Label = subtreeLabel(st.Tag, st.ClassName)
	}
	for i := range metrics.Layout.FixedElements {
		fe := &metrics.Layout.FixedElements[i]
		fe.Purpose = fixedPurpose(fe.Tag, fe.ClassName)
	}

	metrics.Warnings = buildWarnings(metrics, thresholds)
	return metrics, nil
}

// buildWarnings compares each metric against its warning/danger pair.
func buildWarnings(m PerformanceMetrics, t config.Thresholds) []Warning {
	warnings := []Warning{}

	add := func(metric string, value, warn, danger int, format string) {
		switch {
		case value >= danger:
			warnings = append(warnings, Warning{
				Metric:    metric,
				Severity:  SeverityDanger,
				Value:     value,
				Threshold: danger,
				Message:   fmt.Sprintf(format, value, danger),
			})
		case value >= warn:
			warnings = append(warnings, Warning{
				Metric:    metric,
				Severity:  SeverityWarning,
				Value:     value,
				Threshold: warn,
				Message:   fmt.Sprintf(format, value, warn),
			})
		}
	}

	add("totalElements", m.DOM.TotalElements, t.ElementWarning, t.ElementDanger,
		"element count %d exceeds threshold %d")
	add("maxDepth", m.DOM.MaxDepth, t.DOMDepthWarning, t.DOMDepthDanger,
		"DOM depth %d exceeds threshold %d")
	add("iframeCount", m.DOM.IframeCount, t.IframeWarning, t.IframeDanger,
		"iframe count %d exceeds threshold %d")

	if m.Layout.ExcessiveZIndex > 0 {
		warnings = append(warnings, Warning{
			Metric:    "zIndex",
			Severity:  SeverityDanger,
			Value:     m.Layout.ExcessiveZIndex,
			Threshold: t.ZIndexDanger,
			Message:   fmt.Sprintf("%d elements at z-index >= %d", m.Layout.ExcessiveZIndex, t.ZIndexDanger),
		})
	} else if m.Layout.ElevatedZIndex > 0 {
		warnings = append(warnings, Warning{
			Metric:    "zIndex",
			Severity:  SeverityWarning,
			Value:     m.Layout.ElevatedZIndex,
			Threshold: t.ZIndexWarning,
			Message:   fmt.Sprintf("%d elements at z-index >= %d", m.Layout.ElevatedZIndex, t.ZIndexWarning),
		})
	}

	estimatedMB := m.Resources.EstimatedBytes / (1024 * 1024)
	add("resourceBytes", estimatedMB, t.LeakThresholdMB, t.MaxMemoryMB,
		"estimated resource size %dMB exceeds threshold %dMB")

	return warnings
}

// RecommendParallel is a cheap pre-check combining element, iframe, and form
// counts into a complexity score. The result is a hint, never a requirement.
func (a *Analyzer) RecommendParallel(ctx context.Context) (ParallelRecommendation, error) {
	if err := a.checkLive(); err != nil {
		return ParallelRecommendation{}, err
	}

	raw, err := a.engine.Evaluate(ctx, complexityScript)
	if err != nil {
		return ParallelRecommendation{}, fmt.Errorf("complexity pre-check failed: %w", err)
	}

	var counts struct {
		Elements int `json:"elements"`
		Iframes  int `json:"iframes"`
		Forms    int `json:"forms"`
	}
	if err := decodeInto(raw, &counts); err != nil {
		return ParallelRecommendation{}, err
	}

	score := counts.Elements + counts.Iframes*200 + counts.Forms*50
	rec := ParallelRecommendation{ComplexityScore: score}
	if score >= a.cfg.Get().Thresholds.ElementWarning {
		rec.Recommended = true
		rec.Rationale = fmt.Sprintf(
			"complexity score %d (%d elements, %d iframes, %d forms) justifies concurrent analysis passes",
			score, counts.Elements, counts.Iframes, counts.Forms)
	} else {
		rec.Rationale = fmt.Sprintf(
			"complexity score %d (%d elements, %d iframes, %d forms) is low; sequential analysis is cheaper",
			score, counts.Elements, counts.Iframes, counts.Forms)
	}
	return rec, nil
}

// Dispose releases any frame handles still registered and marks the analyzer
// unusable. Idempotent; later analysis calls fail with a disposed-state
// error.
func (a *Analyzer) Dispose(ctx context.Context) error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	a.disposed = true
	remaining := make([]string, 0, len(a.frameIDs))
	for id := range a.frameIDs {
		remaining = append(remaining, id)
	}
	a.frameIDs = make(map[string]struct{})
	a.mu.Unlock()

	for _, id := range remaining {
		if err := a.tracker.Untrack(ctx, id); err != nil {
			a.logger.Warnf("failed to release frame handle %s during dispose: %v", id, err)
		}
	}
	return nil
}

// evaluateHandleWithTimeout races a handle evaluation against a deadline. The
// underlying engine call is not interrupted on timeout; it may still complete
// later, which is why handle disposal is deferred by the caller rather than
// tied to this race.
func evaluateHandleWithTimeout(ctx context.Context, h engine.Handle, script string, timeout time.Duration) (interface{}, error) {
	type outcome struct {
		value interface{}
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := h.Evaluate(ctx, script)
		ch <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		return o.value, o.err
	case <-timer.C:
		return nil, fmt.Errorf("frame content access timed out after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// decodeInto converts a JSON-shaped engine result into a typed struct.
func decodeInto(raw interface{}, out interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode engine result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode engine result: %w", err)
	}
	return nil
}
