package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
	"github.com/microsoft/playwright-mcp-sub003/pkg/engine"
	"github.com/microsoft/playwright-mcp-sub003/pkg/logging"
)

// snapshotScript captures the structure summary used by every enrichment.
const snapshotScript = `(() => {
	const openDialogs = document.querySelectorAll('dialog[open], [role="dialog"], [aria-modal="true"]').length;
	const interactiveTags = new Set(['A', 'BUTTON', 'INPUT', 'SELECT', 'TEXTAREA']);
	let interactive = 0, missingAriaRole = 0;
	for (const el of document.querySelectorAll('*')) {
		const isInteractive = interactiveTags.has(el.tagName) || el.hasAttribute('onclick') || el.getAttribute('role') === 'button';
		if (isInteractive) {
			interactive++;
			if (!el.hasAttribute('role') && !interactiveTags.has(el.tagName)) missingAriaRole++;
		}
	}
	return {
		iframeCount: document.querySelectorAll('iframe').length,
		modal: {
			dialogOpen: openDialogs > 0,
			dialogCount: openDialogs,
			fileChooserLikely: document.querySelectorAll('input[type="file"]').length > 0,
			blocking: openDialogs > 0
		},
		interactiveElements: interactive,
		missingAriaRole: missingAriaRole
	};
})()`

// excerptScript captures a bounded HTML excerpt for client-side alternative
// search.
const excerptScript = `(() => (document.body ? document.body.innerHTML : '').slice(0, 50000))()`

// Pipeline enriches raw failures with diagnostic context.
type Pipeline struct {
	engine engine.Engine
	cfg    *config.Manager
	logger *logging.Logger
}

// NewPipeline creates an enrichment pipeline over the given engine.
func NewPipeline(eng engine.Engine, cfg *config.Manager, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Discard("error-enrichment")
	}
	return &Pipeline{engine: eng, cfg: cfg, logger: logger}
}

// EnrichNotFound augments a target-not-found failure with alternative
// candidates, a structure snapshot, and synthesized suggestions. Any
// collaborator failure returns the original error unchanged.
func (p *Pipeline) EnrichNotFound(ctx context.Context, original error, target string, criteria *Criteria, maxAlternatives int) error {
	if original == nil {
		return nil
	}

	policy := p.cfg.Get().ErrorHandling
	if maxAlternatives <= 0 {
		maxAlternatives = policy.MaxAlternatives
	}

	snapshot, excerpt, err := p.gather(ctx)
	if err != nil {
		p.logger.Warnf("enrichment skipped for %q: %v", target, err)
		return original
	}

	enriched := &EnrichedError{Original: original, Snapshot: snapshot}

	if policy.SuggestAlternatives {
		alternatives, altErr := findAlternatives(excerpt, target, criteria, maxAlternatives)
		if altErr != nil {
			p.logger.Warnf("alternative search failed for %q: %v", target, altErr)
		} else {
			enriched.Alternatives = alternatives
		}
	}

	enriched.Suggestions = dedupe(notFoundSuggestions(target, enriched.Alternatives, snapshot))
	return enriched
}

// EnrichTimeout augments a timeout failure with a structure snapshot and
// suggestions tailored to wait, iframe, and modal causes.
func (p *Pipeline) EnrichTimeout(ctx context.Context, original error, operation, target string) error {
	if original == nil {
		return nil
	}

	snapshot, _, err := p.gather(ctx)
	if err != nil {
		p.logger.Warnf("timeout enrichment skipped for %s: %v", operation, err)
		return original
	}

	return &EnrichedError{
		Original:    original,
		Snapshot:    snapshot,
		Suggestions: dedupe(timeoutSuggestions(operation, target, snapshot)),
	}
}

// EnrichBatchFailure attaches which step failed and what ran before it, plus
// a structure snapshot.
func (p *Pipeline) EnrichBatchFailure(ctx context.Context, original error, failedStepIndex int, failedTool string, executedTools []string) error {
	if original == nil {
		return nil
	}

	batchCtx := &BatchContext{
		FailedStepIndex: failedStepIndex,
		FailedTool:      failedTool,
		ExecutedTools:   append([]string(nil), executedTools...),
	}

	snapshot, _, err := p.gather(ctx)
	if err != nil {
		p.logger.Warnf("batch enrichment snapshot skipped: %v", err)
		return &EnrichedError{
			Original:     original,
			BatchContext: batchCtx,
			Suggestions:  []string{},
		}
	}

	suggestions := []string{
		fmt.Sprintf("step %d (%s) failed after %d attempted steps; earlier steps may have changed the page state it depended on",
			failedStepIndex, failedTool, len(executedTools)),
	}
	suggestions = append(suggestions, blockingSuggestions(snapshot)...)

	return &EnrichedError{
		Original:     original,
		Snapshot:     snapshot,
		BatchContext: batchCtx,
		Suggestions:  dedupe(suggestions),
	}
}

// gather runs the snapshot and excerpt scripts concurrently. Both must
// succeed; enrichment falls back to the original error otherwise.
func (p *Pipeline) gather(ctx context.Context) (*StructureSnapshot, string, error) {
	if !p.cfg.Get().ErrorHandling.CaptureStructureOnError {
		return nil, "", fmt.Errorf("structure capture disabled")
	}

	var (
		wg          sync.WaitGroup
		snapshot    StructureSnapshot
		snapshotErr error
		excerpt     string
		excerptErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		raw, err := p.engine.Evaluate(ctx, snapshotScript)
		if err != nil {
			snapshotErr = err
			return
		}
		snapshotErr = decodeInto(raw, &snapshot)
	}()
	go func() {
		defer wg.Done()
		raw, err := p.engine.Evaluate(ctx, excerptScript)
		if err != nil {
			excerptErr = err
			return
		}
		if s, ok := raw.(string); ok {
			excerpt = s
		}
	}()
	wg.Wait()

	if snapshotErr != nil {
		return nil, "", fmt.Errorf("structure snapshot failed: %w", snapshotErr)
	}
	if excerptErr != nil {
		return nil, "", fmt.Errorf("structure excerpt failed: %w", excerptErr)
	}

	snapshot.CapturedAt = time.Now()
	return &snapshot, excerpt, nil
}

// notFoundSuggestions layers suggestions from alternative-match confidence,
// blocking conditions, and ARIA gaps.
func notFoundSuggestions(target string, alternatives []Alternative, snapshot *StructureSnapshot) []string {
	var suggestions []string

	if len(alternatives) > 0 {
		best := alternatives[0]
		if best.Confidence >= 0.7 {
			suggestions = append(suggestions,
				fmt.Sprintf("target %q not found; %q matches closely (confidence %.2f)", target, best.Selector, best.Confidence))
		} else {
			suggestions = append(suggestions,
				fmt.Sprintf("target %q not found; %d partial matches found, best is %q", target, len(alternatives), best.Selector))
		}
	} else {
		suggestions = append(suggestions,
			fmt.Sprintf("target %q not found and no similar elements are present; the page may not have finished rendering", target))
	}

	suggestions = append(suggestions, blockingSuggestions(snapshot)...)

	if snapshot != nil && snapshot.MissingAriaRole > 0 {
		suggestions = append(suggestions,
			fmt.Sprintf("%d interactive elements lack ARIA roles; attribute-based targeting may be unreliable", snapshot.MissingAriaRole))
	}
	return suggestions
}

// timeoutSuggestions targets wait, iframe, and modal causes.
func timeoutSuggestions(operation, target string, snapshot *StructureSnapshot) []string {
	suggestions := []string{
		fmt.Sprintf("operation %q exceeded its budget; consider an explicit wait before it", operation),
	}
	if target != "" {
		suggestions = append(suggestions,
			fmt.Sprintf("wait for %q to become visible before retrying", target))
	}
	suggestions = append(suggestions, blockingSuggestions(snapshot)...)
	return suggestions
}

// blockingSuggestions covers modal and iframe conditions shared by every
// enrichment flavor.
func blockingSuggestions(snapshot *StructureSnapshot) []string {
	if snapshot == nil {
		return nil
	}
	var suggestions []string
	if snapshot.Modal.Blocking {
		suggestions = append(suggestions,
			"an open modal dialog is blocking interaction; dismiss it first")
	}
	if snapshot.Modal.FileChooserLikely {
		suggestions = append(suggestions,
			"the page contains file inputs; a native file chooser may be intercepting input")
	}
	if snapshot.IframeCount > 0 {
		suggestions = append(suggestions,
			fmt.Sprintf("the target may live inside one of %d iframes; run a structure analysis to locate it", snapshot.IframeCount))
	}
	return suggestions
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

// dedupe removes duplicate suggestions preserving first-seen order.
func dedupe(suggestions []string) []string {
	seen := make(map[string]bool, len(suggestions))
	out := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
