package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Config holds configuration for the memory system.
type Config struct {
	// MaxSize is the per-tier record capacity.
	// Default: 1000.
	MaxSize int

	// EpisodicDecayRate is the forgetting rate for the episodic tier,
	// per second. Default: 1e-4.
	EpisodicDecayRate float64

	// SemanticDecayRate is the forgetting rate for the semantic tier.
	// Semantic memory outlives episodic memory, so the default is an order
	// of magnitude slower. Default: 1e-5.
	SemanticDecayRate float64

	// DecayEpsilon is the strength below which a record is pruned.
	// Default: 0.01.
	DecayEpsilon float64

	// ProceduralAlpha is the EMA factor for strategy success statistics.
	// Default: 0.3.
	ProceduralAlpha float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxSize == 0 {
		c.MaxSize = 1000
	}
	if c.EpisodicDecayRate == 0 {
		c.EpisodicDecayRate = 1e-4
	}
	if c.SemanticDecayRate == 0 {
		c.SemanticDecayRate = 1e-5
	}
	if c.DecayEpsilon == 0 {
		c.DecayEpsilon = 0.01
	}
	if c.ProceduralAlpha == 0 {
		c.ProceduralAlpha = 0.3
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxSize < 1 {
		return fmt.Errorf("%w: max size must be at least 1", ErrInvalidConfig)
	}
	if c.EpisodicDecayRate < 0 || c.SemanticDecayRate < 0 {
		return fmt.Errorf("%w: decay rates cannot be negative", ErrInvalidConfig)
	}
	if c.DecayEpsilon < 0 || c.DecayEpsilon >= 1 {
		return fmt.Errorf("%w: decay epsilon must be in [0,1)", ErrInvalidConfig)
	}
	if c.ProceduralAlpha <= 0 || c.ProceduralAlpha > 1 {
		return fmt.Errorf("%w: procedural alpha must be in (0,1]", ErrInvalidConfig)
	}
	return nil
}

// System is the tiered memory store. Each tier has its own lock, so
// operations on different tiers never contend.
type System struct {
	config Config
	logger *zap.Logger

	episodic *tier
	semantic *tier
	proc     *procedural
}

// NewSystem creates a memory system with the given configuration.
func NewSystem(cfg Config, logger *zap.Logger) (*System, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &System{
		config:   cfg,
		logger:   logger,
		episodic: newTier(TierEpisodic, cfg.MaxSize, cfg.EpisodicDecayRate, cfg.DecayEpsilon),
		semantic: newTier(TierSemantic, cfg.MaxSize, cfg.SemanticDecayRate, cfg.DecayEpsilon),
		proc:     newProcedural(cfg.ProceduralAlpha),
	}, nil
}

func (s *System) tierFor(t Tier) (*tier, error) {
	switch t {
	case TierEpisodic:
		return s.episodic, nil
	case TierSemantic:
		return s.semantic, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
}

// Store inserts a record at full strength into the given tier. When the
// tier then exceeds capacity, the lowest-strength records (oldest first on
// ties) are evicted synchronously before Store returns.
//
// The record's ID, timestamps and strength are assigned here; any caller
// values are overwritten.
func (s *System) Store(ctx context.Context, t Tier, rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	if len(rec.Embedding) == 0 {
		return ErrNoEmbedding
	}
	tr, err := s.tierFor(t)
	if err != nil {
		return err
	}

	now := timeNow()
	rec.ID = uuid.New().String()
	rec.Tier = t
	rec.CreatedAt = now
	rec.ReinforcedAt = now
	rec.Strength = 1.0

	evicted := tr.store(rec, now)
	recordsStored.WithLabelValues(string(t)).Inc()
	if evicted > 0 {
		recordsEvicted.WithLabelValues(string(t)).Add(float64(evicted))
		s.logger.Debug("evicted weakest memory records",
			zap.String("tier", string(t)),
			zap.Int("count", evicted),
		)
	}
	tierOccupancy.WithLabelValues(string(t)).Set(float64(tr.size()))
	return nil
}

// Retrieve returns records in the tier whose cosine similarity to query
// exceeds threshold, ranked descending, capped at topK. Matched records are
// reinforced: their decay clock restarts.
func (s *System) Retrieve(ctx context.Context, t Tier, query []float32, topK int, threshold float64) ([]Hit, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	tr, err := s.tierFor(t)
	if err != nil {
		return nil, err
	}

	hits := tr.retrieve(query, topK, threshold, timeNow())
	retrievals.WithLabelValues(string(t)).Inc()
	return hits, nil
}

// DecayPass recomputes every record's strength at the given instant and
// prunes records below epsilon. The pass is idempotent: strength is derived
// from absolute timestamps, not decremented in place.
func (s *System) DecayPass(now time.Time) {
	for _, tr := range []*tier{s.episodic, s.semantic} {
		pruned := tr.decay(now)
		if pruned > 0 {
			recordsPruned.WithLabelValues(string(tr.name)).Add(float64(pruned))
			s.logger.Debug("pruned decayed memory records",
				zap.String("tier", string(tr.name)),
				zap.Int("count", pruned),
			)
		}
		tierOccupancy.WithLabelValues(string(tr.name)).Set(float64(tr.size()))
	}
}

// RecordOutcome folds one completed task into the procedural tier's
// per-strategy success statistic: stat' = alpha*outcome + (1-alpha)*stat.
func (s *System) RecordOutcome(strategy string, success bool) {
	s.proc.record(strategy, success)
}

// SuccessRate returns the procedural success statistic for a strategy and
// whether any outcome has been recorded for it.
func (s *System) SuccessRate(strategy string) (float64, bool) {
	return s.proc.rate(strategy)
}

// Usage reports current record counts per tier plus tracked strategies.
func (s *System) Usage() map[string]int {
	return map[string]int{
		string(TierEpisodic):   s.episodic.size(),
		string(TierSemantic):   s.semantic.size(),
		string(TierProcedural): s.proc.size(),
	}
}

// tier holds the records of one decaying, capacity-bounded tier.
type tier struct {
	name      Tier
	maxSize   int
	decayRate float64
	epsilon   float64

	mu   sync.RWMutex
	recs []*Record
}

func newTier(name Tier, maxSize int, decayRate, epsilon float64) *tier {
	return &tier{name: name, maxSize: maxSize, decayRate: decayRate, epsilon: epsilon}
}

// strengthAt derives a record's strength at the given instant.
func (t *tier) strengthAt(r *Record, now time.Time) float64 {
	dt := now.Sub(r.ReinforcedAt).Seconds()
	if dt <= 0 {
		return 1.0
	}
	return math.Exp(-t.decayRate * dt)
}

// store inserts the record and evicts down to capacity. Returns the number
// of evicted records.
func (t *tier) store(rec *Record, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recs = append(t.recs, rec)
	evicted := 0
	for len(t.recs) > t.maxSize {
		weakest := 0
		for i, r := range t.recs {
			si, sw := t.strengthAt(r, now), t.strengthAt(t.recs[weakest], now)
			if si < sw || (si == sw && r.CreatedAt.Before(t.recs[weakest].CreatedAt)) {
				weakest = i
			}
		}
		t.recs = append(t.recs[:weakest], t.recs[weakest+1:]...)
		evicted++
	}
	return evicted
}

// retrieve scores records under a read lock, then reinforces the matched
// ones under a short write lock.
func (t *tier) retrieve(query []float32, topK int, threshold float64, now time.Time) []Hit {
	t.mu.RLock()
	hits := make([]Hit, 0, topK)
	for _, r := range t.recs {
		if t.strengthAt(r, now) < t.epsilon {
			continue
		}
		sim := cosine(query, r.Embedding)
		if sim <= threshold {
			continue
		}
		hits = append(hits, Hit{Record: r, Similarity: sim})
	}
	t.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Record.CreatedAt.Before(hits[j].Record.CreatedAt)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	if len(hits) > 0 {
		t.mu.Lock()
		for _, h := range hits {
			h.Record.ReinforcedAt = now
			h.Record.Strength = 1.0
		}
		t.mu.Unlock()
	}
	return hits
}

// decay refreshes stored strengths and prunes below-epsilon records.
// Returns the number pruned.
func (t *tier) decay(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.recs[:0]
	pruned := 0
	for _, r := range t.recs {
		s := t.strengthAt(r, now)
		if s < t.epsilon {
			pruned++
			continue
		}
		r.Strength = s
		kept = append(kept, r)
	}
	t.recs = kept
	return pruned
}

func (t *tier) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.recs)
}

// procedural is the per-strategy success statistic tier.
type procedural struct {
	alpha float64

	mu    sync.RWMutex
	stats map[string]float64
}

func newProcedural(alpha float64) *procedural {
	return &procedural{alpha: alpha, stats: make(map[string]float64)}
}

func (p *procedural) record(strategy string, success bool) {
	outcome := 0.0
	if success {
		outcome = 1.0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.stats[strategy]; ok {
		p.stats[strategy] = p.alpha*outcome + (1-p.alpha)*prev
	} else {
		p.stats[strategy] = outcome
	}
}

func (p *procedural) rate(strategy string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.stats[strategy]
	return v, ok
}

func (p *procedural) size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.stats)
}

// cosine returns the cosine similarity of two vectors clamped to [0,1].
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
