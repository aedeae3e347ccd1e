package batch

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics"
	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/enrich"
	"github.com/microsoft/playwright-mcp-sub003/pkg/logging"
	"github.com/microsoft/playwright-mcp-sub003/pkg/tools"
)

// ScratchKeyBatch is the tool-context scratch slot holding the active batch
// scope while a step runs. The executor saves whatever was there before the
// step and puts it back afterwards, so nested tooling never observes a stale
// batch id.
const ScratchKeyBatch = "activeBatch"

// Scope is what tools find in the batch scratch slot during a step.
type Scope struct {
	BatchID   string
	StepIndex int
}

// Executor runs batches of tool invocations against a shared tool context.
type Executor struct {
	registry   *tools.Registry
	sinks      tools.SinkFactory
	cfg        *config.Manager
	enrichment *enrich.Pipeline
	metrics    *diagnostics.Metrics
	logger     *logging.Logger
}

// NewExecutor wires a batch executor. The enrichment pipeline and metrics
// are optional.
func NewExecutor(registry *tools.Registry, sinks tools.SinkFactory, cfg *config.Manager, enrichment *enrich.Pipeline, metrics *diagnostics.Metrics, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Discard("batch-executor")
	}
	if sinks == nil {
		sinks = tools.NewTextSinkFactory()
	}
	return &Executor{
		registry:   registry,
		sinks:      sinks,
		cfg:        cfg,
		enrichment: enrichment,
		metrics:    metrics,
		logger:     logger,
	}
}

// Validate checks every step of a batch before anything runs: each tool must
// be registered and each step's arguments must pass the tool's schema. The
// first violation is returned and nothing executes.
func (e *Executor) Validate(steps []Step) error {
	for i, step := range steps {
		tool, ok := e.registry.Get(step.Tool)
		if !ok {
			return &UnknownToolError{StepIndex: i, Tool: step.Tool}
		}
		if err := tools.ValidateArgs(tool.Schema(), step.Arguments); err != nil {
			return &ValidationError{StepIndex: i, Tool: step.Tool, Cause: err}
		}
	}
	return nil
}

// Execute runs the batch in strict order. A malformed batch is rejected
// wholesale before any step runs. For a well-formed batch the returned error
// is always nil: step failures are recorded in the Result, and only a step's
// own ContinueOnError decides whether execution proceeds past it.
func (e *Executor) Execute(ctx context.Context, tctx *tools.Context, steps []Step, globalExpectation map[string]interface{}) (*Result, error) {
	if err := e.Validate(steps); err != nil {
		return nil, err
	}

	batchID := ulid.Make().String()
	started := time.Now()
	result := &Result{
		BatchID:    batchID,
		Steps:      make([]StepResult, 0, len(steps)),
		TotalSteps: len(steps),
		StopReason: StopCompleted,
	}

	e.logger.Infof("batch %s starting with %d steps", batchID, len(steps))

	var executed []string
	for i, step := range steps {
		tool, _ := e.registry.Get(step.Tool)
		stepResult := e.runStep(ctx, tctx, tool, step, batchID, i, globalExpectation, executed)
		result.Steps = append(result.Steps, stepResult)
		// Every attempted step counts as executed for later failure context,
		// tolerated failures included.
		executed = append(executed, step.Tool)

		if stepResult.Success {
			result.SuccessfulSteps++
			continue
		}

		result.FailedSteps++
		if !step.ContinueOnError {
			result.StopReason = StopError
			e.logger.Warnf("batch %s stopped at step %d (%s): %s", batchID, i, step.Tool, stepResult.Error)
			break
		}
	}

	result.TotalExecutionTimeMs = time.Since(started).Milliseconds()
	e.logger.Infof("batch %s finished: %d/%d steps succeeded (%s)",
		batchID, result.SuccessfulSteps, result.TotalSteps, result.StopReason)
	return result, nil
}

func (e *Executor) runStep(ctx context.Context, tctx *tools.Context, tool tools.Tool, step Step, batchID string, index int, globalExpectation map[string]interface{}, executed []string) StepResult {
	prev, existed := tctx.SwapScratch(ScratchKeyBatch, Scope{BatchID: batchID, StepIndex: index})
	defer tctx.RestoreScratch(ScratchKeyBatch, prev, existed)

	stepCtx := ctx
	if budget := e.stepBudget(); budget > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	expectation := mergeExpectations(tool.DefaultExpectation(), globalExpectation, step.Expectation)
	sink := e.sinks.Construct(tctx, step.Tool, step.Arguments, expectation)

	started := time.Now()
	value, err := tool.Handle(stepCtx, tctx, step.Arguments, sink)
	sink.Finish()
	elapsed := time.Since(started)

	stepResult := StepResult{
		StepIndex:       index,
		ToolName:        step.Tool,
		Success:         err == nil,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
	if err == nil {
		stepResult.Result = value
		e.countStep(step.Tool, "success")
		return stepResult
	}

	e.countStep(step.Tool, "failure")
	stepResult.Error = err.Error()
	stepResult.Enrichment = e.enrichFailure(ctx, err, index, step.Tool, executed)
	return stepResult
}

// enrichFailure routes a step failure through the enrichment pipeline when it
// is available and enabled. Enrichment is best-effort: a nil return just
// leaves the bare error message on the step result.
func (e *Executor) enrichFailure(ctx context.Context, err error, index int, toolName string, executed []string) *enrich.EnrichedError {
	if e.enrichment == nil || e.cfg == nil || !e.cfg.Get().FeatureFlags.ErrorEnrichment {
		return nil
	}
	enriched, ok := e.enrichment.EnrichBatchFailure(ctx, err, index, toolName, executed).(*enrich.EnrichedError)
	if !ok {
		return nil
	}
	return enriched
}

func (e *Executor) stepBudget() time.Duration {
	if e.cfg == nil {
		return 0
	}
	view, err := e.cfg.View(config.ComponentBatch)
	if err != nil || view.OperationTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(view.OperationTimeoutMs) * time.Millisecond
}

func (e *Executor) countStep(toolName, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.BatchStepsTotal.WithLabelValues(toolName, outcome).Inc()
}

// mergeExpectations layers response expectations: tool defaults first, then
// the batch-global expectation, then the step's own. Nested maps merge
// key-wise, anything else overwrites.
func mergeExpectations(layers ...map[string]interface{}) map[string]interface{} {
	merged := map[string]interface{}{}
	for _, layer := range layers {
		mergeLayer(merged, layer)
	}
	return merged
}

func mergeLayer(dst, src map[string]interface{}) {
	for key, value := range src {
		if next, ok := value.(map[string]interface{}); ok {
			if cur, ok := dst[key].(map[string]interface{}); ok {
				mergeLayer(cur, next)
				continue
			}
			child := map[string]interface{}{}
			mergeLayer(child, next)
			dst[key] = child
			continue
		}
		dst[key] = value
	}
}
