// Package analysis inspects an environment snapshot: nested-frame
// accessibility, modal-blocking detection, element and interaction tallies,
// and performance metrics compared against configured warning/danger
// thresholds. The two analysis passes are independent read-only traversals
// and can run concurrently through the ParallelCoordinator.
package analysis

import "time"

// Step names identify which analysis pass produced an error entry.
const (
	StepStructureAnalysis  = "structure-analysis"
	StepPerformanceMetrics = "performance-metrics"
)

// Severity grades a threshold breach.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Warning reports one metric past its configured threshold.
type Warning struct {
	Metric    string   `json:"metric"`
	Severity  Severity `json:"severity"`
	Value     int      `json:"value"`
	Threshold int      `json:"threshold"`
	Message   string   `json:"message"`
}

// FrameInfo describes one nested frame from the census.
type FrameInfo struct {
	Index        int    `json:"index"`
	Accessible   bool   `json:"accessible"`
	Reason       string `json:"reason,omitempty"`
	ElementCount int    `json:"elementCount"`
	Src          string `json:"src,omitempty"`
}

// ModalState captures whether subsequent interaction would be blocked.
type ModalState struct {
	DialogOpen        bool `json:"dialogOpen"`
	DialogCount       int  `json:"dialogCount"`
	FileChooserLikely bool `json:"fileChooserLikely"`
	Blocking          bool `json:"blocking"`
}

// ElementMetrics tallies visibility, interactability, and ARIA completeness.
type ElementMetrics struct {
	Total           int `json:"total"`
	Visible         int `json:"visible"`
	Interactive     int `json:"interactive"`
	WithAriaLabel   int `json:"withAriaLabel"`
	MissingAriaRole int `json:"missingAriaRole"`
}

// StructureReport is the output of the structure pass.
type StructureReport struct {
	Iframes  []FrameInfo    `json:"iframes"`
	Modal    ModalState     `json:"modalStates"`
	Elements ElementMetrics `json:"elements"`
}

// LargeSubtree is a DOM subtree whose descendant count crossed the configured
// threshold, annotated with a heuristic label from tag/class conventions.
type LargeSubtree struct {
	Tag         string `json:"tag"`
	ClassName   string `json:"className,omitempty"`
	ID          string `json:"id,omitempty"`
	Descendants int    `json:"descendants"`
	Label       string `json:"label"`
}

// FixedElement is a fixed-position element with a heuristic purpose label.
type FixedElement struct {
	Tag       string `json:"tag"`
	ClassName string `json:"className,omitempty"`
	Purpose   string `json:"purpose"`
}

// DOMMetrics summarizes the tree traversal.
type DOMMetrics struct {
	TotalElements int            `json:"totalElements"`
	MaxDepth      int            `json:"maxDepth"`
	IframeCount   int            `json:"iframeCount"`
	LargeSubtrees []LargeSubtree `json:"largeSubtrees"`
}

// InteractionMetrics tallies interactive elements.
type InteractionMetrics struct {
	Buttons int `json:"buttons"`
	Links   int `json:"links"`
	Inputs  int `json:"inputs"`
	Forms   int `json:"forms"`
}

// ResourceMetrics tallies loaded resources with a rough size estimate.
type ResourceMetrics struct {
	Images         int `json:"images"`
	Scripts        int `json:"scripts"`
	Stylesheets    int `json:"stylesheets"`
	EstimatedBytes int `json:"estimatedBytes"`
}

// LayoutMetrics tallies layout hazards.
type LayoutMetrics struct {
	FixedElements   []FixedElement `json:"fixedElements"`
	ElevatedZIndex  int            `json:"elevatedZIndex"`
	ExcessiveZIndex int            `json:"excessiveZIndex"`
	OverflowHidden  int            `json:"overflowHidden"`
}

// PerformanceMetrics is the output of the performance pass.
type PerformanceMetrics struct {
	DOM         DOMMetrics         `json:"dom"`
	Interaction InteractionMetrics `json:"interaction"`
	Resources   ResourceMetrics    `json:"resource"`
	Layout      LayoutMetrics      `json:"layout"`
	Warnings    []Warning          `json:"warnings"`
}

// ResourceUsage snapshots the handle registry at merge time.
type ResourceUsage struct {
	ActiveHandles int `json:"activeHandles"`
	PeakHandles   int `json:"peakHandles"`
	LeakedHandles int `json:"leakedHandles"`
}

// StepError names a failed analysis pass. A failing pass never discards its
// sibling's result.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// Result is the merged output of both passes. It is created fresh per
// analysis call and never mutated after return. Missing partial results are
// backfilled with empty defaults so no field is ever absent.
type Result struct {
	Structure     StructureReport    `json:"structure"`
	Performance   PerformanceMetrics `json:"performanceMetrics"`
	ResourceUsage ResourceUsage      `json:"resourceUsage"`
	ExecutionTime time.Duration      `json:"executionTime"`
	Errors        []StepError        `json:"errors"`
}

// ParallelRecommendation is a cheap, non-authoritative pre-check hint.
type ParallelRecommendation struct {
	Recommended     bool   `json:"recommended"`
	ComplexityScore int    `json:"complexityScore"`
	Rationale       string `json:"rationale"`
}
