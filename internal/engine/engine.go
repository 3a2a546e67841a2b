package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reasond/internal/graph"
	"github.com/fyrsmithlabs/reasond/internal/memory"
)

var tracer = otel.Tracer("reasond.engine")

// Config holds configuration for the reasoning engine.
type Config struct {
	// MaxSearchDepth bounds path length and recursion depth.
	// Default: 3.
	MaxSearchDepth int

	// SimilarityThreshold is the refinement trigger and memory retrieval
	// cutoff, in [0,1]. Default: 0.7.
	SimilarityThreshold float64

	// MaxRefineRetries bounds the refinement loop. Default: 2.
	MaxRefineRetries int

	// StrategyTimeout bounds one strategy execution. Expiry fails only the
	// task at hand. Default: 10s.
	StrategyTimeout time.Duration

	// PromotionThreshold is the confidence above which a successful episode
	// is also distilled into the semantic tier. Default: 0.8.
	PromotionThreshold float64

	// MemoryTopK caps episodic lookups per task. Default: 5.
	MemoryTopK int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxSearchDepth == 0 {
		c.MaxSearchDepth = 3
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.7
	}
	if c.MaxRefineRetries == 0 {
		c.MaxRefineRetries = 2
	}
	if c.StrategyTimeout == 0 {
		c.StrategyTimeout = 10 * time.Second
	}
	if c.PromotionThreshold == 0 {
		c.PromotionThreshold = 0.8
	}
	if c.MemoryTopK == 0 {
		c.MemoryTopK = 5
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxSearchDepth < 1 {
		return fmt.Errorf("%w: max search depth must be at least 1", ErrInvalidConfig)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold must be in [0,1]", ErrInvalidConfig)
	}
	if c.MaxRefineRetries < 0 {
		return fmt.Errorf("%w: max refine retries cannot be negative", ErrInvalidConfig)
	}
	if c.StrategyTimeout <= 0 {
		return fmt.Errorf("%w: strategy timeout must be positive", ErrInvalidConfig)
	}
	if c.PromotionThreshold < 0 || c.PromotionThreshold > 1 {
		return fmt.Errorf("%w: promotion threshold must be in [0,1]", ErrInvalidConfig)
	}
	return nil
}

// Engine drives tasks through the reasoning state machine.
type Engine struct {
	graph      graph.Store
	memory     *memory.System
	state      *AgentState
	config     Config
	logger     *zap.Logger
	strategies map[TaskType]strategy

	mu          sync.Mutex
	totalTasks  int
	successful  int
	elapsedSum  time.Duration
}

// Summary is an aggregate performance snapshot.
type Summary struct {
	TotalTasks      int           `json:"total_tasks"`
	SuccessfulTasks int           `json:"successful_tasks"`
	SuccessRate     float64       `json:"success_rate"`
	AvgElapsed      time.Duration `json:"avg_elapsed"`
	InFlight        int           `json:"in_flight"`
}

// New creates a reasoning engine over the given graph store and memory
// system.
func New(store graph.Store, mem *memory.System, cfg Config, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if mem == nil {
		return nil, fmt.Errorf("memory system is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		graph:      store,
		memory:     mem,
		state:      NewAgentState(),
		config:     cfg,
		logger:     logger,
		strategies: newStrategySet(),
	}, nil
}

// State exposes the task registry for cancellation and inspection.
func (e *Engine) State() *AgentState { return e.state }

// Close tears down the agent state, cancelling in-flight tasks.
func (e *Engine) Close() { e.state.Close() }

// ProcessTask runs one task to completion and returns its result.
//
// Concurrent calls advance independently; the only suspension points are
// graph queries and memory operations. Low confidence never fails a task:
// exhausted refinement returns the best candidate with LowConfidence set.
// A strategy timeout returns a failed result with partial evidence; caller
// cancellation returns the context error with no memory write-back.
func (e *Engine) ProcessTask(ctx context.Context, task Task) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Engine.ProcessTask")
	defer span.End()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Type == "" {
		task.Type = task.InferType()
	}
	span.SetAttributes(
		attribute.String("task_id", task.ID),
		attribute.String("task_type", string(task.Type)),
	)

	strat, ok := e.strategies[task.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, task.Type)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := e.state.begin(task, cancel); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer e.state.finish(task.ID)

	start := time.Now()
	log := e.logger.With(zap.String("task_id", task.ID), zap.String("task_type", string(task.Type)))
	log.Info("processing task", zap.Strings("entities", task.Entities))

	e.advance(task.ID, PhaseMemoryLookup)
	taskEmb, episodic, facts := e.lookupMemory(taskCtx, task)

	e.advance(task.ID, PhaseStrategySelected)

	p := params{maxDepth: e.config.MaxSearchDepth, taskEmb: taskEmb, episodic: episodic}
	best, err := e.executeWithRefinement(taskCtx, strat, task, p, log)
	if err != nil {
		e.advance(task.ID, PhaseReturned)
		e.observe(task, nil, time.Since(start))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	e.advance(task.ID, PhaseFinalized)
	best.TaskID = task.ID
	best.SupportingFacts = facts
	best.Complexity = task.Complexity()
	best.Elapsed = time.Since(start)
	if best.Confidence < e.config.SimilarityThreshold && !best.Failed() {
		best.LowConfidence = true
	}

	e.advance(task.ID, PhaseStored)
	e.storeExperience(taskCtx, task, best, taskEmb)

	e.advance(task.ID, PhaseReturned)
	e.observe(task, best, best.Elapsed)
	span.SetAttributes(
		attribute.Float64("confidence", best.Confidence),
		attribute.Int("refinements", best.Refinements),
	)

	log.Info("task returned",
		zap.Float64("confidence", best.Confidence),
		zap.String("strategy", best.Strategy),
		zap.String("annotation", string(best.Annotation)),
		zap.Bool("low_confidence", best.LowConfidence),
		zap.Duration("elapsed", best.Elapsed),
	)
	return best, nil
}

// executeWithRefinement runs the Executing -> Verifying -> Refining loop.
//
// Each attempt is bounded by the strategy timeout. Refinement relaxes the
// search depth first, then switches to the procedurally next-best strategy
// variant. The loop keeps the highest-confidence candidate seen.
func (e *Engine) executeWithRefinement(ctx context.Context, strat strategy, task Task, p params, log *zap.Logger) (*Result, error) {
	var best *Result

	for attempt := 0; ; attempt++ {
		e.advance(task.ID, PhaseExecuting)

		res, err := e.runBounded(ctx, strat, task, p)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				// Strategy timeout: fatal to this task only. Partial
				// evidence from earlier attempts stays on the result.
				timedOut := &Result{
					TaskID:     task.ID,
					Strategy:   strat.name(),
					Annotation: AnnotationStrategyTimeout,
				}
				if best != nil {
					timedOut.Paths = best.Paths
					timedOut.Refinements = attempt
				}
				e.advance(task.ID, PhaseVerifying)
				return timedOut, nil
			}
			return nil, err
		}

		e.advance(task.ID, PhaseVerifying)
		res.Refinements = attempt
		if best == nil || res.Confidence > best.Confidence {
			best = res
		}

		verified := res.Confidence >= e.config.SimilarityThreshold &&
			res.Annotation != AnnotationInconsistentEvidence
		if verified {
			return res, nil
		}
		if attempt >= e.config.MaxRefineRetries {
			best.Refinements = attempt
			return best, nil
		}

		e.advance(task.ID, PhaseRefining)
		refinements.Inc()
		p.maxDepth++
		if attempt >= 1 {
			if next := e.nextBestStrategy(task.Type, strat.name()); next != nil {
				strat = next
			}
		}
		log.Debug("refining",
			zap.Int("attempt", attempt+1),
			zap.Int("max_depth", p.maxDepth),
			zap.String("strategy", strat.name()),
			zap.Float64("confidence", res.Confidence),
		)
	}
}

// runBounded executes one strategy attempt under the strategy timeout.
func (e *Engine) runBounded(ctx context.Context, strat strategy, task Task, p params) (*Result, error) {
	sctx, cancel := context.WithTimeout(ctx, e.config.StrategyTimeout)
	defer cancel()

	res, err := strat.execute(sctx, e, task, p)
	if err != nil && sctx.Err() != nil && ctx.Err() == nil {
		return nil, context.DeadlineExceeded
	}
	return res, err
}

// nextBestStrategy picks the alternate variant with the highest procedural
// success statistic. Variants without history score a neutral 0.5.
func (e *Engine) nextBestStrategy(taskType TaskType, current string) strategy {
	var picked strategy
	bestRate := -1.0
	for _, s := range e.strategies {
		if s.name() == current {
			continue
		}
		rate, ok := e.memory.SuccessRate(s.name())
		if !ok {
			rate = 0.5
		}
		if rate > bestRate || (rate == bestRate && picked != nil && s.name() < picked.name()) {
			bestRate = rate
			picked = s
		}
	}
	return picked
}

// lookupMemory builds the task embedding from entity embeddings and
// retrieves relevant episodic experience plus semantic supporting facts.
// Lookup failures degrade to an empty context; they never fail the task.
func (e *Engine) lookupMemory(ctx context.Context, task Task) ([]float32, []memory.Hit, []string) {
	vecs := make([][]float32, 0, len(task.Entities))
	for _, id := range task.Entities {
		vec, err := e.graph.GetEmbedding(ctx, id)
		if err != nil {
			continue
		}
		vecs = append(vecs, vec)
	}
	taskEmb := graph.MeanVector(vecs...)
	if taskEmb == nil {
		return nil, nil, nil
	}

	episodic, err := e.memory.Retrieve(ctx, memory.TierEpisodic, taskEmb, e.config.MemoryTopK, e.config.SimilarityThreshold)
	if err != nil {
		e.logger.Warn("episodic lookup failed", zap.String("task_id", task.ID), zap.Error(err))
	}

	var facts []string
	if semantic, err := e.memory.Retrieve(ctx, memory.TierSemantic, taskEmb, e.config.MemoryTopK, e.config.SimilarityThreshold); err != nil {
		e.logger.Warn("semantic lookup failed", zap.String("task_id", task.ID), zap.Error(err))
	} else {
		for _, h := range semantic {
			facts = append(facts, h.Record.Fact)
		}
	}
	return taskEmb, episodic, facts
}

// storeExperience writes the finished task back into memory: an episodic
// record always (except timeouts), a distilled semantic fact for
// high-confidence successes, and the procedural outcome statistic.
// Cancellation skips every write so partial results never pollute memory.
func (e *Engine) storeExperience(ctx context.Context, task Task, res *Result, taskEmb []float32) {
	if ctx.Err() != nil {
		return
	}

	success := !res.Failed() && !res.LowConfidence && res.Annotation == AnnotationNone
	e.memory.RecordOutcome(res.Strategy, success)

	if res.Failed() || len(taskEmb) == 0 {
		return
	}

	pathStrings := make([]string, 0, len(res.Paths))
	for _, p := range res.Paths {
		pathStrings = append(pathStrings, p.String())
	}
	rec := &memory.Record{
		Episode: &memory.Episode{
			TaskID:      task.ID,
			TaskType:    string(task.Type),
			Entities:    task.Entities,
			Answer:      res.Answer,
			Confidence:  res.Confidence,
			Success:     success,
			Strategy:    res.Strategy,
			PathStrings: pathStrings,
		},
		Embedding: taskEmb,
	}
	if err := e.memory.Store(ctx, memory.TierEpisodic, rec); err != nil {
		e.logger.Warn("episodic store failed", zap.String("task_id", task.ID), zap.Error(err))
	}

	if success && res.Confidence >= e.config.PromotionThreshold {
		fact := &memory.Record{
			Fact:      fmt.Sprintf("%s: %s", strings.Join(task.Entities, " ~ "), res.Answer),
			Embedding: taskEmb,
		}
		if err := e.memory.Store(ctx, memory.TierSemantic, fact); err != nil {
			e.logger.Warn("semantic store failed", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
}

// advance moves the task's state-machine phase. An illegal transition is a
// programming error, not a task failure.
func (e *Engine) advance(taskID string, next Phase) {
	if err := e.state.advance(taskID, next); err != nil {
		e.logger.DPanic("state transition failed", zap.Error(err))
	}
}

// observe updates metrics and the rolling performance summary.
func (e *Engine) observe(task Task, res *Result, elapsed time.Duration) {
	outcome := "error"
	success := false
	if res != nil {
		switch {
		case res.Failed():
			outcome = "timeout"
		case res.Annotation == AnnotationInconsistentEvidence:
			outcome = "inconsistent_evidence"
		case res.LowConfidence:
			outcome = "low_confidence"
		default:
			outcome = "success"
			success = true
		}
	}
	tasksTotal.WithLabelValues(string(task.Type), outcome).Inc()
	taskDuration.Observe(elapsed.Seconds())

	e.mu.Lock()
	e.totalTasks++
	if success {
		e.successful++
	}
	e.elapsedSum += elapsed
	e.mu.Unlock()
}

// Summary returns the engine's aggregate performance snapshot.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Summary{
		TotalTasks:      e.totalTasks,
		SuccessfulTasks: e.successful,
		InFlight:        e.state.InFlight(),
	}
	if e.totalTasks > 0 {
		s.SuccessRate = float64(e.successful) / float64(e.totalTasks)
		s.AvgElapsed = e.elapsedSum / time.Duration(e.totalTasks)
	}
	return s
}
