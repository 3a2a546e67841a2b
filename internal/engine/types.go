package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/fyrsmithlabs/reasond/internal/graph"
)

// Common errors for engine operations.
var (
	ErrDuplicateTask   = errors.New("task already in flight")
	ErrAgentClosed     = errors.New("agent state is closed")
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrTooFewEntities  = errors.New("task needs at least two entity references")
	ErrInvalidConfig   = errors.New("invalid engine config")
)

// TaskType selects the reasoning strategy variant.
type TaskType string

const (
	// TaskPathFinding asks for a connecting path between entities.
	TaskPathFinding TaskType = "path_finding"

	// TaskRelationPrediction asks for the most likely relation between an
	// entity pair.
	TaskRelationPrediction TaskType = "relation_prediction"

	// TaskComplexReasoning composes multi-hop reasoning over an entity chain.
	TaskComplexReasoning TaskType = "complex_reasoning"
)

// Task is one reasoning request. Tasks are immutable for the lifetime of
// reasoning; the engine works on a copy.
type Task struct {
	// ID is the unique task identifier. Assigned by the engine when empty.
	ID string `json:"id"`

	// Type selects the strategy. Inferred from Description when empty.
	Type TaskType `json:"type"`

	// Entities are ordered entity references.
	Entities []string `json:"entities"`

	// Description is the free-text task statement.
	Description string `json:"description,omitempty"`
}

// InferType derives a task type from description keywords. Unrecognized
// descriptions default to complex reasoning, mirroring a
// catch-all strategy for open-ended questions.
func (t Task) InferType() TaskType {
	d := strings.ToLower(t.Description)
	switch {
	case strings.Contains(d, "path") || strings.Contains(d, "reach"):
		return TaskPathFinding
	case strings.Contains(d, "predict") || strings.Contains(d, "relation") || strings.Contains(d, "link"):
		return TaskRelationPrediction
	default:
		return TaskComplexReasoning
	}
}

// Complexity scores the task in [0,1] from its entity count. Diagnostics
// only; no control-flow decisions hang off it.
func (t Task) Complexity() float64 {
	c := 0.25 * float64(len(t.Entities))
	if c > 1 {
		return 1
	}
	return c
}

// Annotation is a typed, non-fatal failure note attached to a result.
type Annotation string

const (
	// AnnotationNone marks a clean result.
	AnnotationNone Annotation = ""

	// AnnotationDepthExceeded marks an empty path search within max depth.
	AnnotationDepthExceeded Annotation = "depth_exceeded"

	// AnnotationEntityNotFound marks a task entity absent from the graph,
	// absorbed at strategy level.
	AnnotationEntityNotFound Annotation = "entity_not_found"

	// AnnotationInconsistentEvidence marks composite reasoning without a
	// corroborating independent path.
	AnnotationInconsistentEvidence Annotation = "inconsistent_evidence"

	// AnnotationStrategyTimeout marks a strategy that exceeded its time
	// bound. Fatal to the single task only.
	AnnotationStrategyTimeout Annotation = "strategy_timeout"
)

// Prediction is one ranked relation candidate.
type Prediction struct {
	// Predicate is the candidate relation label.
	Predicate string `json:"predicate"`

	// Score is the similarity score in [0,1].
	Score float64 `json:"score"`
}

// Result is the terminal outcome of a task.
type Result struct {
	// TaskID echoes the task identifier.
	TaskID string `json:"task_id"`

	// Answer is the answer payload (rendered path, predicted predicate, or
	// composed chain).
	Answer string `json:"answer"`

	// Confidence is the aggregate confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Paths are the supporting evidence paths.
	Paths []graph.Path `json:"paths,omitempty"`

	// Candidates are ranked relation predictions, when the strategy
	// produces them.
	Candidates []Prediction `json:"candidates,omitempty"`

	// Strategy names the strategy that produced this result.
	Strategy string `json:"strategy"`

	// LowConfidence is set when refinement retries were exhausted below the
	// similarity threshold.
	LowConfidence bool `json:"low_confidence,omitempty"`

	// Annotation carries a typed non-fatal failure note.
	Annotation Annotation `json:"annotation,omitempty"`

	// Refinements counts refinement attempts taken.
	Refinements int `json:"refinements"`

	// FromMemory is set when the answer was reused from episodic memory.
	FromMemory bool `json:"from_memory,omitempty"`

	// SupportingFacts are semantic-tier facts retrieved for the task.
	SupportingFacts []string `json:"supporting_facts,omitempty"`

	// Complexity is the task complexity score.
	Complexity float64 `json:"complexity"`

	// Elapsed is total reasoning wall time.
	Elapsed time.Duration `json:"elapsed"`
}

// Failed reports whether the result is a hard per-task failure.
func (r *Result) Failed() bool {
	return r.Annotation == AnnotationStrategyTimeout
}
