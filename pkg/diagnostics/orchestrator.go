package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/analysis"
	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/enrich"
	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/resources"
	"github.com/microsoft/playwright-mcp-sub003/pkg/engine"
	"github.com/microsoft/playwright-mcp-sub003/pkg/logging"
)

// Stage names the initialization tiers. Each stage must fully succeed before
// the next begins.
type Stage string

const (
	StageCore          Stage = "core"
	StagePageDependent Stage = "page-dependent"
	StageAdvanced      Stage = "advanced"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// adaptiveWindow and adaptiveMinSamples gate the feedback loop: at least this
// many same-named operations within the trailing window before the observed
// average and success rate are fed back into the configuration.
const (
	adaptiveWindow     = 5 * time.Minute
	adaptiveMinSamples = 10
)

// OperationResult is the discriminated result of one diagnostic operation.
// Well-formed calls never produce a panic or a bare error; failures are
// carried in Error with Success false.
type OperationResult struct {
	Success       bool          `json:"success"`
	Data          interface{}   `json:"data,omitempty"`
	Error         error         `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"executionTime"`
}

// ExecuteOptions tune a single operation.
type ExecuteOptions struct {
	// Timeout overrides the component's configured budget when positive.
	Timeout time.Duration
}

// Orchestrator stages component initialization, wraps every diagnostic
// operation with timeout racing, history recording, adaptive feedback, and
// enrichment, and exposes health and stat introspection.
type Orchestrator struct {
	engine  engine.Engine
	cfg     *config.Manager
	logger  *logging.Logger
	metrics *Metrics

	initGroup singleflight.Group

	mu          sync.Mutex
	state       State
	stage       Stage
	initErr     error
	tracker     *resources.Tracker
	analyzer    *analysis.Analyzer
	enrichment  *enrich.Pipeline
	coordinator *analysis.ParallelCoordinator
	history     *History
}

// NewOrchestrator creates an uninitialized orchestrator. Call Initialize
// before executing operations.
func NewOrchestrator(eng engine.Engine, cfg *config.Manager, logger *logging.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = logging.Discard("orchestrator")
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Orchestrator{
		engine:  eng,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		state:   StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Initialize builds the component tiers in order: core (resource tracking),
// page-dependent (analyzer, enrichment), advanced (parallel coordination).
// On a stage failure every component constructed so far is disposed and a
// StagedInitializationFailure is returned; the orchestrator lands in the
// failed terminal state. Initialization is memoized — concurrent callers
// share one in-flight attempt.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case StateReady:
		o.mu.Unlock()
		return nil
	case StateFailed:
		err := o.initErr
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	_, err, _ := o.initGroup.Do("initialize", func() (interface{}, error) {
		return nil, o.initialize(ctx)
	})
	return err
}

func (o *Orchestrator) initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateReady {
		o.mu.Unlock()
		return nil
	}
	if o.state == StateFailed {
		err := o.initErr
		o.mu.Unlock()
		return err
	}
	o.state = StateInitializing
	o.mu.Unlock()

	var succeeded []string

	fail := func(stage Stage, cause error) error {
		o.teardown(ctx)
		err := &StagedInitializationFailure{Stage: stage, Succeeded: succeeded, Cause: cause}
		o.mu.Lock()
		o.state = StateFailed
		o.initErr = err
		o.mu.Unlock()
		o.logger.Errorf("initialization failed: %v", err)
		return err
	}

	// Stage 1: core — resource tracking has no dependencies beyond config.
	o.setStage(StageCore)
	if o.cfg == nil {
		return fail(StageCore, errors.New("configuration manager is required"))
	}
	history := NewHistory(o.cfg.Get().Thresholds.MaxOperationHistory)
	tracker := resources.NewTracker(o.cfg, o.logger)
	o.mu.Lock()
	o.history = history
	o.tracker = tracker
	o.mu.Unlock()
	succeeded = append(succeeded, "resource-tracker")

	// Stage 2: page-dependent — components that hold the engine.
	o.setStage(StagePageDependent)
	if err := ctx.Err(); err != nil {
		return fail(StagePageDependent, err)
	}
	if o.engine == nil {
		return fail(StagePageDependent, errors.New("automation engine is required"))
	}
	analyzer := analysis.NewAnalyzer(o.engine, tracker, o.cfg, o.logger)
	enrichment := enrich.NewPipeline(o.engine, o.cfg, o.logger)
	o.mu.Lock()
	o.analyzer = analyzer
	o.enrichment = enrichment
	o.mu.Unlock()
	succeeded = append(succeeded, "structure-analyzer", "error-enrichment")

	// Stage 3: advanced — concurrent analysis coordination.
	o.setStage(StageAdvanced)
	if err := ctx.Err(); err != nil {
		return fail(StageAdvanced, err)
	}
	coordinator := analysis.NewParallelCoordinator(analyzer, tracker, o.logger)
	o.mu.Lock()
	o.coordinator = coordinator
	o.state = StateReady
	o.mu.Unlock()

	o.logger.Infof("orchestrator ready: %d components initialized", len(succeeded)+1)
	return nil
}

func (o *Orchestrator) setStage(stage Stage) {
	o.mu.Lock()
	o.stage = stage
	o.mu.Unlock()
	o.logger.Debugf("initialization stage: %s", stage)
}

// Tracker returns the handle registry. Nil before initialization.
func (o *Orchestrator) Tracker() *resources.Tracker {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tracker
}

// Analyzer returns the structure analyzer. Nil before initialization.
func (o *Orchestrator) Analyzer() *analysis.Analyzer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.analyzer
}

// Enrichment returns the enrichment pipeline. Nil before initialization.
func (o *Orchestrator) Enrichment() *enrich.Pipeline {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enrichment
}

// History returns the bounded operation history. Nil before initialization.
func (o *Orchestrator) History() *History {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history
}

// ExecuteOperation races fn against the component's timeout budget, records
// the outcome into bounded history, feeds the adaptive-threshold loop, and
// wraps failures into structured diagnostic errors (enriched best-effort).
// It returns a discriminated result and never a bare error for a well-formed
// call.
func (o *Orchestrator) ExecuteOperation(ctx context.Context, name string, component config.Component, fn func(context.Context) (interface{}, error), opts ...ExecuteOptions) OperationResult {
	start := time.Now()

	o.mu.Lock()
	ready := o.state == StateReady
	history := o.history
	enrichment := o.enrichment
	o.mu.Unlock()

	if !ready {
		return OperationResult{
			Success:       false,
			Error:         wrapDiagnostic(component, name, 0, fmt.Errorf("orchestrator not ready (state %s)", o.State())),
			ExecutionTime: time.Since(start),
		}
	}

	budget := o.budgetFor(component, opts...)
	data, err := raceTimeout(ctx, name, component, budget, fn)
	elapsed := time.Since(start)

	success := err == nil
	history.Append(OperationRecord{
		Operation:     name,
		Component:     component,
		Timestamp:     time.Now(),
		ExecutionTime: elapsed,
		Success:       success,
	})
	o.metrics.OperationsTotal.WithLabelValues(string(component), name).Inc()
	o.metrics.OperationDuration.WithLabelValues(string(component), name).Observe(elapsed.Seconds())
	o.feedAdaptive(name, component, history)

	if success {
		return OperationResult{Success: true, Data: data, ExecutionTime: elapsed}
	}

	o.metrics.OperationFailures.WithLabelValues(string(component), name).Inc()
	wrapped := wrapDiagnostic(component, name, elapsed, err)

	// Best-effort enrichment for timeouts; the pipeline already guarantees
	// its own failures fall back to the input error.
	var timeout *TimeoutError
	if errors.As(wrapped, &timeout) && enrichment != nil && o.cfg.Get().FeatureFlags.ErrorEnrichment {
		wrapped = enrichment.EnrichTimeout(ctx, wrapped, name, "")
	}

	return OperationResult{Success: false, Error: wrapped, ExecutionTime: elapsed}
}

func (o *Orchestrator) budgetFor(component config.Component, opts ...ExecuteOptions) time.Duration {
	for _, opt := range opts {
		if opt.Timeout > 0 {
			return opt.Timeout
		}
	}
	view, err := o.cfg.View(component)
	if err != nil || view.OperationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(view.OperationTimeoutMs) * time.Millisecond
}

// feedAdaptive feeds the trailing average and success rate to the adaptive
// loop once enough same-named operations have accumulated in the window.
func (o *Orchestrator) feedAdaptive(name string, component config.Component, history *History) {
	count, avgMs, successRate := history.WindowStats(name, adaptiveWindow)
	if count < adaptiveMinSamples {
		return
	}
	if _, changed := o.cfg.AdjustThresholds(component, avgMs, successRate); changed {
		o.logger.Debugf("adaptive feedback applied for %s/%s: avg=%.0fms rate=%.2f over %d ops",
			component, name, avgMs, successRate, count)
	}
}

// raceTimeout runs fn against a deadline. The underlying call is not
// interrupted on timeout; it keeps running and its handles remain the
// callee's responsibility to dispose.
func raceTimeout(ctx context.Context, name string, component config.Component, budget time.Duration, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	type outcome struct {
		data interface{}
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		data, err := fn(ctx)
		ch <- outcome{data: data, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.data, out.err
	case <-timer.C:
		return nil, &TimeoutError{Operation: name, Component: component, Budget: budget}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RunAnalysis executes the full analysis under the orchestrator's wrapper.
// The parallel coordinator is used when the feature flag allows; otherwise
// the two passes run sequentially into the same merged shape.
func (o *Orchestrator) RunAnalysis(ctx context.Context) OperationResult {
	return o.ExecuteOperation(ctx, "analyze-environment", config.ComponentAnalyzer, func(ctx context.Context) (interface{}, error) {
		o.mu.Lock()
		coordinator := o.coordinator
		o.mu.Unlock()

		if o.cfg.Get().FeatureFlags.ParallelAnalysis {
			return coordinator.Run(ctx), nil
		}
		return coordinator.RunSequential(ctx), nil
	})
}

// Dispose tears down all constructed components concurrently, best-effort:
// errors are logged, never returned as failures of sibling teardowns. The
// orchestrator returns to the uninitialized state afterwards.
func (o *Orchestrator) Dispose(ctx context.Context) {
	o.teardown(ctx)

	o.mu.Lock()
	o.state = StateUninitialized
	o.initErr = nil
	o.mu.Unlock()
	o.initGroup.Forget("initialize")
}

func (o *Orchestrator) teardown(ctx context.Context) {
	o.mu.Lock()
	analyzer := o.analyzer
	tracker := o.tracker
	o.analyzer = nil
	o.enrichment = nil
	o.coordinator = nil
	o.tracker = nil
	o.mu.Unlock()

	var wg sync.WaitGroup
	if analyzer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := analyzer.Dispose(ctx); err != nil {
				o.logger.Errorf("analyzer teardown failed: %v", err)
			}
		}()
	}
	if tracker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// DisposeAll already aggregates and logs per-handle failures.
			tracker.DisposeAll(ctx)
		}()
	}
	wg.Wait()
}
