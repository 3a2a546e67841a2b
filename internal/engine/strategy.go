package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/reasond/internal/graph"
	"github.com/fyrsmithlabs/reasond/internal/memory"
)

// Strategy names, used for procedural statistics and result reporting.
const (
	StrategyPathFinding        = "path_finding"
	StrategyRelationPrediction = "relation_prediction"
	StrategyComplexReasoning   = "complex_reasoning"
)

// maxEvidencePaths caps how many supporting paths a result carries.
const maxEvidencePaths = 3

// params are the per-attempt execution knobs. Refinement relaxes them
// between attempts.
type params struct {
	maxDepth int
	taskEmb  []float32
	episodic []memory.Hit
}

// strategy is the closed dispatch surface for reasoning variants. Adding a
// variant means adding an implementation here and a row in newStrategySet;
// dispatch is never open to arbitrary runtime types.
type strategy interface {
	name() string
	execute(ctx context.Context, e *Engine, task Task, p params) (*Result, error)
}

func newStrategySet() map[TaskType]strategy {
	return map[TaskType]strategy{
		TaskPathFinding:        pathFindingStrategy{},
		TaskRelationPrediction: relationPredictionStrategy{},
		TaskComplexReasoning:   complexReasoningStrategy{},
	}
}

// pathFindingStrategy answers "how are these entities connected".
//
// Episodic memory is consulted first: a previously successful path-finding
// episode over the same entity sequence is reused as-is. On miss it
// delegates to graph path search; confidence is the mean of per-hop
// similarities along the best path.
type pathFindingStrategy struct{}

func (pathFindingStrategy) name() string { return StrategyPathFinding }

func (s pathFindingStrategy) execute(ctx context.Context, e *Engine, task Task, p params) (*Result, error) {
	if len(task.Entities) < 2 {
		return nil, fmt.Errorf("%w: path finding over %d entities", ErrTooFewEntities, len(task.Entities))
	}

	if cached := cachedEpisode(p.episodic, StrategyPathFinding, task.Entities); cached != nil {
		return &Result{
			TaskID:     task.ID,
			Answer:     cached.Answer,
			Confidence: cached.Confidence,
			Strategy:   StrategyPathFinding,
			FromMemory: true,
		}, nil
	}

	paths, err := e.graph.FindPath(ctx, task.Entities, p.maxDepth)
	if err != nil {
		if errors.Is(err, graph.ErrEntityNotFound) {
			// Recoverable at strategy level: folded into confidence.
			return &Result{
				TaskID:     task.ID,
				Strategy:   StrategyPathFinding,
				Annotation: AnnotationEntityNotFound,
			}, nil
		}
		return nil, err
	}
	if len(paths) == 0 {
		return &Result{
			TaskID:     task.ID,
			Strategy:   StrategyPathFinding,
			Annotation: AnnotationDepthExceeded,
		}, nil
	}

	best := paths[0]
	if len(paths) > maxEvidencePaths {
		paths = paths[:maxEvidencePaths]
	}
	return &Result{
		TaskID:     task.ID,
		Answer:     best.String(),
		Confidence: best.MeanConfidence(),
		Paths:      paths,
		Strategy:   StrategyPathFinding,
	}, nil
}

// relationPredictionStrategy answers "what relation links this pair".
//
// The two entity embeddings are combined and scored against every
// registered relation-label embedding; candidates rank descending and the
// top score, clamped to [0,1], becomes the confidence.
type relationPredictionStrategy struct{}

func (relationPredictionStrategy) name() string { return StrategyRelationPrediction }

func (s relationPredictionStrategy) execute(ctx context.Context, e *Engine, task Task, p params) (*Result, error) {
	if len(task.Entities) < 2 {
		return nil, fmt.Errorf("%w: relation prediction over %d entities", ErrTooFewEntities, len(task.Entities))
	}

	embA, err := e.graph.GetEmbedding(ctx, task.Entities[0])
	if err != nil {
		return absorbEmbeddingErr(task, StrategyRelationPrediction, err)
	}
	embB, err := e.graph.GetEmbedding(ctx, task.Entities[1])
	if err != nil {
		return absorbEmbeddingErr(task, StrategyRelationPrediction, err)
	}

	combined := graph.MeanVector(embA, embB)
	predicates, err := e.graph.Predicates(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]Prediction, 0, len(predicates))
	for _, pred := range predicates {
		vec, err := e.graph.RelationEmbedding(ctx, pred)
		if err != nil {
			continue
		}
		candidates = append(candidates, Prediction{
			Predicate: pred,
			Score:     graph.ClampUnit(graph.Cosine(combined, vec)),
		})
	}
	if len(candidates) == 0 {
		return &Result{TaskID: task.ID, Strategy: StrategyRelationPrediction}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Predicate < candidates[j].Predicate
	})

	// Attach the direct path between the pair as evidence when one exists.
	var evidence []graph.Path
	if direct, err := e.graph.FindPath(ctx, task.Entities[:2], 1); err == nil && len(direct) > 0 {
		if len(direct) > maxEvidencePaths {
			direct = direct[:maxEvidencePaths]
		}
		evidence = direct
	}

	return &Result{
		TaskID:     task.ID,
		Answer:     candidates[0].Predicate,
		Confidence: candidates[0].Score,
		Candidates: candidates,
		Paths:      evidence,
		Strategy:   StrategyRelationPrediction,
	}, nil
}

// complexReasoningStrategy composes path finding and relation prediction
// across a chain of entities.
//
// Each consecutive pair becomes a sub-problem; the aggregate confidence is
// the product of per-hop confidences, so one weak hop dominates the
// composite score. A corroborating independent path between the chain
// endpoints is required before finalizing; its absence flags the result
// InconsistentEvidence instead of failing it.
type complexReasoningStrategy struct{}

func (complexReasoningStrategy) name() string { return StrategyComplexReasoning }

func (s complexReasoningStrategy) execute(ctx context.Context, e *Engine, task Task, p params) (*Result, error) {
	if len(task.Entities) < 2 {
		return nil, fmt.Errorf("%w: complex reasoning over %d entities", ErrTooFewEntities, len(task.Entities))
	}

	confidence := 1.0
	annotation := AnnotationNone
	var evidence []graph.Path
	var answers []string

	for i := 0; i+1 < len(task.Entities); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sub := Task{
			ID:       fmt.Sprintf("%s/hop-%d", task.ID, i),
			Type:     TaskPathFinding,
			Entities: []string{task.Entities[i], task.Entities[i+1]},
		}
		hop, err := pathFindingStrategy{}.execute(ctx, e, sub, params{maxDepth: p.maxDepth})
		if err != nil {
			return nil, err
		}
		if hop.Confidence == 0 {
			// Path search came up empty; fall back to relation prediction
			// for this hop.
			sub.Type = TaskRelationPrediction
			rp, err := relationPredictionStrategy{}.execute(ctx, e, sub, params{maxDepth: p.maxDepth})
			if err != nil {
				return nil, err
			}
			if rp.Confidence > hop.Confidence {
				hop = rp
			}
		}

		confidence *= hop.Confidence
		if hop.Annotation != AnnotationNone && annotation == AnnotationNone {
			annotation = hop.Annotation
		}
		if hop.Answer != "" {
			answers = append(answers, hop.Answer)
		}
		evidence = append(evidence, hop.Paths...)
	}

	// Cross-validation: the chain endpoints need a second, independent
	// connecting path.
	first, last := task.Entities[0], task.Entities[len(task.Entities)-1]
	corroborating, err := e.graph.FindPath(ctx, []string{first, last}, p.maxDepth)
	if err != nil && !errors.Is(err, graph.ErrEntityNotFound) {
		return nil, err
	}
	if len(corroborating) < 2 && annotation == AnnotationNone {
		annotation = AnnotationInconsistentEvidence
	}

	if len(evidence) > maxEvidencePaths {
		evidence = evidence[:maxEvidencePaths]
	}
	return &Result{
		TaskID:     task.ID,
		Answer:     strings.Join(answers, "; "),
		Confidence: graph.ClampUnit(confidence),
		Paths:      evidence,
		Strategy:   StrategyComplexReasoning,
		Annotation: annotation,
	}, nil
}

// cachedEpisode finds a previously successful episode for the same strategy
// and entity sequence among the retrieved memory hits.
func cachedEpisode(hits []memory.Hit, strategyName string, entities []string) *memory.Episode {
	for _, h := range hits {
		ep := h.Record.Episode
		if ep == nil || !ep.Success || ep.Strategy != strategyName {
			continue
		}
		if sameEntities(ep.Entities, entities) {
			return ep
		}
	}
	return nil
}

func sameEntities(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// absorbEmbeddingErr converts recoverable embedding lookup failures into a
// zero-confidence result; anything else propagates.
func absorbEmbeddingErr(task Task, strategyName string, err error) (*Result, error) {
	switch {
	case errors.Is(err, graph.ErrEntityNotFound):
		return &Result{TaskID: task.ID, Strategy: strategyName, Annotation: AnnotationEntityNotFound}, nil
	case errors.Is(err, graph.ErrNoEmbedding):
		return &Result{TaskID: task.ID, Strategy: strategyName}, nil
	default:
		return nil, err
	}
}
