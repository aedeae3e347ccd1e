package analysis

import "fmt"

// Scripts evaluated against the environment. Each returns a JSON-shaped
// object decoded into the matching Go struct.

// modalStateScript detects open dialogs and likely file choosers.
const modalStateScript = `(() => {
	const openDialogs = document.querySelectorAll('dialog[open]').length;
	const ariaModals = Array.from(document.querySelectorAll('[role="dialog"], [aria-modal="true"]'))
		.filter(el => {
			const style = window.getComputedStyle(el);
			return style.display !== 'none' && style.visibility !== 'hidden';
		}).length;
	const fileInputs = document.querySelectorAll('input[type="file"]').length;
	const dialogCount = openDialogs + ariaModals;
	return {
		dialogOpen: dialogCount > 0,
		dialogCount: dialogCount,
		fileChooserLikely: fileInputs > 0,
		blocking: dialogCount > 0
	};
})()`

// elementMetricsScript tallies visibility, interactability, and ARIA
// completeness across the document.
const elementMetricsScript = `(() => {
	const all = document.querySelectorAll('*');
	let visible = 0, interactive = 0, withAriaLabel = 0, missingAriaRole = 0;
	const interactiveTags = new Set(['A', 'BUTTON', 'INPUT', 'SELECT', 'TEXTAREA']);
	for (const el of all) {
		const style = window.getComputedStyle(el);
		const isVisible = style.display !== 'none' && style.visibility !== 'hidden' && el.offsetParent !== null;
		if (isVisible) visible++;
		const isInteractive = interactiveTags.has(el.tagName) || el.hasAttribute('onclick') || el.getAttribute('role') === 'button';
		if (isInteractive) {
			interactive++;
			if (el.hasAttribute('aria-label') || el.hasAttribute('aria-labelledby')) {
				withAriaLabel++;
			}
			if (!el.hasAttribute('role') && !interactiveTags.has(el.tagName)) {
				missingAriaRole++;
			}
		}
	}
	return {
		total: all.length,
		visible: visible,
		interactive: interactive,
		withAriaLabel: withAriaLabel,
		missingAriaRole: missingAriaRole
	};
})()`

// frameStatsScript runs against one iframe element handle and probes its
// content document. Cross-origin access throws; the census classifies that as
// inaccessible with a reason.
const frameStatsScript = `(el) => {
	try {
		const doc = el.contentDocument;
		if (!doc) {
			return { accessible: false, reason: 'cross-origin or detached', elementCount: 0, src: el.src || '' };
		}
		return {
			accessible: true,
			reason: '',
			elementCount: doc.querySelectorAll('*').length,
			src: el.src || ''
		};
	} catch (e) {
		return { accessible: false, reason: String(e && e.message || e), elementCount: 0, src: el.src || '' };
	}
}`

// complexityScript is the cheap pre-check behind RecommendParallel.
const complexityScript = `(() => ({
	elements: document.querySelectorAll('*').length,
	iframes: document.querySelectorAll('iframe').length,
	forms: document.querySelectorAll('form').length
}))()`

// performanceScript is the single full-environment evaluation: tree
// traversal for element count and depth, large-subtree detection, interactive
// and resource tallies, and layout hazards. Thresholds are injected so the
// traversal happens once.
func performanceScript(largeSubtree, zWarning, zDanger int) string {
	return fmt.Sprintf(`(() => {
	const root = document.documentElement;
	let totalElements = 0;
	let maxDepth = 0;
	const largeSubtrees = [];

	const walk = (el, depth) => {
		totalElements++;
		if (depth > maxDepth) maxDepth = depth;
		let descendants = 0;
		for (const child of el.children) {
			descendants += walk(child, depth + 1);
		}
		if (descendants >= %d && largeSubtrees.length < 20) {
			largeSubtrees.push({
				tag: el.tagName.toLowerCase(),
				className: (typeof el.className === 'string' ? el.className : '').slice(0, 200),
				id: el.id || '',
				descendants: descendants
			});
		}
		return descendants + 1;
	};
	walk(root, 1);

	let estimatedBytes = 0;
	for (const entry of performance.getEntriesByType('resource')) {
		estimatedBytes += entry.transferSize || entry.encodedBodySize || 0;
	}

	const fixedElements = [];
	let elevatedZIndex = 0, excessiveZIndex = 0, overflowHidden = 0;
	for (const el of document.querySelectorAll('*')) {
		const style = window.getComputedStyle(el);
		if (style.position === 'fixed' && fixedElements.length < 20) {
			fixedElements.push({
				tag: el.tagName.toLowerCase(),
				className: (typeof el.className === 'string' ? el.className : '').slice(0, 200)
			});
		}
		const z = parseInt(style.zIndex, 10);
		if (!isNaN(z)) {
			if (z >= %d) excessiveZIndex++;
			else if (z >= %d) elevatedZIndex++;
		}
		if (style.overflow === 'hidden') overflowHidden++;
	}

	return {
		dom: {
			totalElements: totalElements,
			maxDepth: maxDepth,
			iframeCount: document.querySelectorAll('iframe').length,
			largeSubtrees: largeSubtrees
		},
		interaction: {
			buttons: document.querySelectorAll('button, [role="button"]').length,
			links: document.querySelectorAll('a[href]').length,
			inputs: document.querySelectorAll('input, select, textarea').length,
			forms: document.querySelectorAll('form').length
		},
		resource: {
			images: document.querySelectorAll('img').length,
			scripts: document.querySelectorAll('script').length,
			stylesheets: document.querySelectorAll('link[rel="stylesheet"], style').length,
			estimatedBytes: estimatedBytes
		},
		layout: {
			fixedElements: fixedElements,
			elevatedZIndex: elevatedZIndex,
			excessiveZIndex: excessiveZIndex,
			overflowHidden: overflowHidden
		}
	};
})()`, largeSubtree, zDanger, zWarning)
}
