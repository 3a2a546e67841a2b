package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("reasond.graph")

// maxPathsPerPair bounds shortest-path enumeration between one entity pair.
// Dense graphs can hold combinatorially many equal-length paths; callers
// only ever need the deterministic head of the ranking.
const maxPathsPerPair = 64

// MemoryStoreConfig holds configuration for the in-memory graph store.
type MemoryStoreConfig struct {
	// VectorSize is the expected embedding dimension. Zero disables the
	// dimension check.
	VectorSize int

	// DisableIndex turns off the chromem-go entity index; similarity search
	// falls back to a brute-force scan.
	DisableIndex bool
}

// MemoryStore is an in-process Store implementation backed by adjacency
// maps and an optional chromem-go embedding index.
//
// Ingestion (AddEntity, AddRelation, RegisterRelationEmbedding) is expected
// to finish before query traffic starts; a RWMutex keeps interleaved use
// safe regardless.
type MemoryStore struct {
	mu            sync.RWMutex
	entities      map[string]Entity
	out           map[string][]Relation
	relCount      int
	relEmbeddings map[string][]float32

	index  *entityIndex
	config MemoryStoreConfig
	logger *zap.Logger
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore(cfg MemoryStoreConfig, logger *zap.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VectorSize < 0 {
		return nil, fmt.Errorf("vector size cannot be negative, got %d", cfg.VectorSize)
	}

	s := &MemoryStore{
		entities:      make(map[string]Entity),
		out:           make(map[string][]Relation),
		relEmbeddings: make(map[string][]float32),
		config:        cfg,
		logger:        logger,
	}

	if !cfg.DisableIndex {
		idx, err := newEntityIndex()
		if err != nil {
			return nil, fmt.Errorf("creating entity index: %w", err)
		}
		s.index = idx
	}

	logger.Info("graph store initialized",
		zap.Int("vector_size", cfg.VectorSize),
		zap.Bool("index_enabled", s.index != nil),
	)
	return s, nil
}

// AddEntity ingests an entity. Re-adding an existing ID replaces it.
func (s *MemoryStore) AddEntity(ctx context.Context, e Entity) error {
	if e.ID == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}
	if s.config.VectorSize > 0 && len(e.Embedding) > 0 && len(e.Embedding) != s.config.VectorSize {
		return fmt.Errorf("%w: entity %q has dimension %d, want %d",
			ErrDimensionMismatch, e.ID, len(e.Embedding), s.config.VectorSize)
	}

	s.mu.Lock()
	s.entities[e.ID] = e
	s.mu.Unlock()

	if s.index != nil && len(e.Embedding) > 0 {
		if err := s.index.add(ctx, e.ID, e.Embedding); err != nil {
			return fmt.Errorf("indexing entity %q: %w", e.ID, err)
		}
	}
	return nil
}

// AddRelation ingests a directed relation. Both endpoints must already
// exist. Relation weights outside [0,1] are rejected.
func (s *MemoryStore) AddRelation(ctx context.Context, r Relation) error {
	if r.Predicate == "" {
		return fmt.Errorf("relation predicate cannot be empty")
	}
	if r.Weight < 0 || r.Weight > 1 {
		return fmt.Errorf("relation weight %f out of [0,1]", r.Weight)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[r.Source]; !ok {
		return fmt.Errorf("%w: %q", ErrEntityNotFound, r.Source)
	}
	if _, ok := s.entities[r.Target]; !ok {
		return fmt.Errorf("%w: %q", ErrEntityNotFound, r.Target)
	}

	s.out[r.Source] = append(s.out[r.Source], r)
	// Keep out-edges in deterministic order so path enumeration under the
	// maxPathsPerPair cap is stable across runs.
	sort.Slice(s.out[r.Source], func(i, j int) bool {
		a, b := s.out[r.Source][i], s.out[r.Source][j]
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return a.Target < b.Target
	})
	s.relCount++
	return nil
}

// RegisterRelationEmbedding associates an embedding with a relation
// predicate, making it a candidate for relation prediction.
func (s *MemoryStore) RegisterRelationEmbedding(predicate string, vec []float32) error {
	if predicate == "" {
		return fmt.Errorf("predicate cannot be empty")
	}
	if len(vec) == 0 {
		return fmt.Errorf("%w: predicate %q", ErrNoEmbedding, predicate)
	}
	if s.config.VectorSize > 0 && len(vec) != s.config.VectorSize {
		return fmt.Errorf("%w: predicate %q has dimension %d, want %d",
			ErrDimensionMismatch, predicate, len(vec), s.config.VectorSize)
	}

	s.mu.Lock()
	s.relEmbeddings[predicate] = vec
	s.mu.Unlock()
	return nil
}

// FindPath implements Store.
func (s *MemoryStore) FindPath(ctx context.Context, entities []string, maxDepth int) ([]Path, error) {
	ctx, span := tracer.Start(ctx, "MemoryStore.FindPath")
	defer span.End()
	span.SetAttributes(
		attribute.Int("entity_count", len(entities)),
		attribute.Int("max_depth", maxDepth),
	)

	if len(entities) < 2 {
		return nil, ErrTooFewEntities
	}
	if maxDepth <= 0 {
		return nil, ErrInvalidDepth
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range entities {
		if _, ok := s.entities[id]; !ok {
			span.SetStatus(codes.Error, "entity not found")
			return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, id)
		}
	}

	var paths []Path
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			paths = append(paths, s.shortestPaths(entities[i], entities[j], maxDepth)...)
		}
	}

	sortPaths(paths)
	span.SetAttributes(attribute.Int("paths_found", len(paths)))
	return paths, nil
}

// shortestPaths returns every shortest path from source to target with
// length <= maxDepth, capped at maxPathsPerPair. Caller holds s.mu.
func (s *MemoryStore) shortestPaths(source, target string, maxDepth int) []Path {
	if source == target {
		return nil
	}

	// Level-by-level BFS recording the first depth each node is reached at.
	dist := map[string]int{source: 0}
	frontier := []string{source}
	found := false
	for depth := 0; depth < maxDepth && len(frontier) > 0 && !found; depth++ {
		var next []string
		for _, u := range frontier {
			for _, r := range s.out[u] {
				if _, seen := dist[r.Target]; seen {
					continue
				}
				dist[r.Target] = depth + 1
				if r.Target == target {
					found = true
				}
				next = append(next, r.Target)
			}
		}
		frontier = next
	}
	if !found {
		return nil
	}

	// Walk only edges that advance one BFS level, enumerating every path
	// that realizes the shortest distance. Parallel edges between the same
	// pair each yield a distinct path.
	var paths []Path
	var hops []Hop
	var walk func(u string)
	walk = func(u string) {
		if len(paths) >= maxPathsPerPair {
			return
		}
		if u == target {
			p := Path{Hops: make([]Hop, len(hops))}
			copy(p.Hops, hops)
			paths = append(paths, p)
			return
		}
		for _, r := range s.out[u] {
			d, ok := dist[r.Target]
			if !ok || d != dist[u]+1 || d > dist[target] {
				continue
			}
			hops = append(hops, s.hop(r))
			walk(r.Target)
			hops = hops[:len(hops)-1]
		}
	}
	walk(source)
	return paths
}

// hop converts a relation into a path hop with its confidence score.
// Weighted relations use the weight directly; unweighted ones fall back to
// endpoint embedding similarity, then to a neutral 1.0.
func (s *MemoryStore) hop(r Relation) Hop {
	conf := 1.0
	switch {
	case r.Weight > 0:
		conf = ClampUnit(r.Weight)
	default:
		src, target := s.entities[r.Source], s.entities[r.Target]
		if len(src.Embedding) > 0 && len(target.Embedding) > 0 {
			conf = ClampUnit(Cosine(src.Embedding, target.Embedding))
		}
	}
	return Hop{Source: r.Source, Predicate: r.Predicate, Target: r.Target, Confidence: conf}
}

// sortPaths orders paths shortest first, breaking length ties by lexical
// order of the predicate-label sequence.
func sortPaths(paths []Path) {
	sort.SliceStable(paths, func(i, j int) bool {
		if paths[i].Len() != paths[j].Len() {
			return paths[i].Len() < paths[j].Len()
		}
		return paths[i].predicateKey() < paths[j].predicateKey()
	})
}

// QuerySubgraph implements Store. Traversal follows only relations in the
// filter set when one is given. Absent seed entities are skipped.
func (s *MemoryStore) QuerySubgraph(ctx context.Context, entities, relations []string, maxDepth int) (*Subgraph, error) {
	ctx, span := tracer.Start(ctx, "MemoryStore.QuerySubgraph")
	defer span.End()

	if maxDepth <= 0 {
		return nil, ErrInvalidDepth
	}

	allowed := make(map[string]bool, len(relations))
	for _, p := range relations {
		allowed[p] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sub := &Subgraph{Entities: make(map[string]Entity)}
	var frontier []string
	for _, id := range entities {
		if e, ok := s.entities[id]; ok {
			if _, seen := sub.Entities[id]; !seen {
				sub.Entities[id] = e
				frontier = append(frontier, id)
			}
		}
	}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []string
		for _, u := range frontier {
			for _, r := range s.out[u] {
				if len(allowed) > 0 && !allowed[r.Predicate] {
					continue
				}
				sub.Relations = append(sub.Relations, r)
				if _, seen := sub.Entities[r.Target]; !seen {
					sub.Entities[r.Target] = s.entities[r.Target]
					next = append(next, r.Target)
				}
			}
		}
		frontier = next
	}

	span.SetAttributes(
		attribute.Int("entities", len(sub.Entities)),
		attribute.Int("relations", len(sub.Relations)),
	)
	return sub, nil
}

// SearchEntities implements Store.
func (s *MemoryStore) SearchEntities(ctx context.Context, query []float32, topK int) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "MemoryStore.SearchEntities")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", topK))

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrNoEmbedding)
	}

	var matches []Match
	if s.index != nil {
		ids, err := s.index.query(ctx, query)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("querying entity index: %w", err)
		}
		s.mu.RLock()
		for _, id := range ids {
			e, ok := s.entities[id]
			if !ok {
				continue
			}
			matches = append(matches, Match{Entity: e, Similarity: ClampUnit(Cosine(query, e.Embedding))})
		}
		s.mu.RUnlock()
	} else {
		s.mu.RLock()
		for _, e := range s.entities {
			if len(e.Embedding) == 0 {
				continue
			}
			matches = append(matches, Match{Entity: e, Similarity: ClampUnit(Cosine(query, e.Embedding))})
		}
		s.mu.RUnlock()
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Entity.ID < matches[j].Entity.ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	span.SetAttributes(attribute.Int("results", len(matches)))
	return matches, nil
}

// GetEmbedding implements Store.
func (s *MemoryStore) GetEmbedding(ctx context.Context, entityID string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, entityID)
	}
	if len(e.Embedding) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoEmbedding, entityID)
	}
	return e.Embedding, nil
}

// RelationEmbedding implements Store.
func (s *MemoryStore) RelationEmbedding(ctx context.Context, predicate string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vec, ok := s.relEmbeddings[predicate]
	if !ok {
		return nil, fmt.Errorf("%w: predicate %q", ErrNoEmbedding, predicate)
	}
	return vec, nil
}

// Predicates implements Store.
func (s *MemoryStore) Predicates(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.relEmbeddings))
	for p := range s.relEmbeddings {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Entities: len(s.entities), Relations: s.relCount}
	if st.Entities > 0 {
		st.AvgDegree = float64(st.Relations) / float64(st.Entities)
	}
	return st, nil
}
