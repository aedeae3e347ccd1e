package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics/resources"
	"github.com/microsoft/playwright-mcp-sub003/pkg/logging"
)

// ParallelCoordinator runs the structure pass and the performance pass as
// independent concurrent tasks over the same environment snapshot. Both
// passes are read-only traversals, so concurrency amortizes fixed overhead
// while isolating failures.
type ParallelCoordinator struct {
	analyzer *Analyzer
	tracker  *resources.Tracker
	logger   *logging.Logger
}

// NewParallelCoordinator wires a coordinator over an analyzer.
func NewParallelCoordinator(analyzer *Analyzer, tracker *resources.Tracker, logger *logging.Logger) *ParallelCoordinator {
	if logger == nil {
		logger = logging.Discard("parallel-analysis")
	}
	return &ParallelCoordinator{
		analyzer: analyzer,
		tracker:  tracker,
		logger:   logger,
	}
}

// Run executes both passes with settle-all semantics: each task completes or
// fails independently, a failing task contributes a named error entry rather
// than discarding its sibling's result, and missing partial results are
// backfilled with empty defaults. ExecutionTime is the wall-clock span of
// both tasks together.
func (c *ParallelCoordinator) Run(ctx context.Context) Result {
	start := time.Now()

	var (
		wg             sync.WaitGroup
		structure      StructureReport
		structureErr   error
		performance    PerformanceMetrics
		performanceErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		structure, structureErr = c.analyzer.AnalyzeStructure(ctx)
	}()
	go func() {
		defer wg.Done()
		performance, performanceErr = c.analyzer.AnalyzePerformance(ctx)
	}()
	wg.Wait()

	result := Result{
		Structure:     structure,
		Performance:   performance,
		ExecutionTime: time.Since(start),
		Errors:        []StepError{},
	}

	return c.assemble(result, structureErr, performanceErr)
}

// RunSequential executes both passes one after the other with the same
// failure isolation and backfill contract as Run.
func (c *ParallelCoordinator) RunSequential(ctx context.Context) Result {
	start := time.Now()

	structure, structureErr := c.analyzer.AnalyzeStructure(ctx)
	performance, performanceErr := c.analyzer.AnalyzePerformance(ctx)

	result := Result{
		Structure:     structure,
		Performance:   performance,
		ExecutionTime: time.Since(start),
		Errors:        []StepError{},
	}
	return c.assemble(result, structureErr, performanceErr)
}

func (c *ParallelCoordinator) assemble(result Result, structureErr, performanceErr error) Result {
	if structureErr != nil {
		c.logger.Warnf("structure pass failed: %v", structureErr)
		result.Errors = append(result.Errors, StepError{Step: StepStructureAnalysis, Error: structureErr.Error()})
		result.Structure = emptyStructure()
	}
	if performanceErr != nil {
		c.logger.Warnf("performance pass failed: %v", performanceErr)
		result.Errors = append(result.Errors, StepError{Step: StepPerformanceMetrics, Error: performanceErr.Error()})
		result.Performance = emptyPerformance()
	}

	if c.tracker != nil {
		stats := c.tracker.Stats()
		result.ResourceUsage = ResourceUsage{
			ActiveHandles: stats.Active,
			PeakHandles:   stats.Peak,
			LeakedHandles: stats.Leaks,
		}
	}

	return result
}

// emptyStructure is the safe default backfilled for a failed structure pass.
func emptyStructure() StructureReport {
	return StructureReport{Iframes: []FrameInfo{}}
}

// emptyPerformance is the safe default backfilled for a failed performance
// pass.
func emptyPerformance() PerformanceMetrics {
	return PerformanceMetrics{
		DOM:      DOMMetrics{LargeSubtrees: []LargeSubtree{}},
		Layout:   LayoutMetrics{FixedElements: []FixedElement{}},
		Warnings: []Warning{},
	}
}
