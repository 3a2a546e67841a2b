package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildStore assembles a store from shorthand entity and relation tuples.
func buildStore(t *testing.T, entities []Entity, relations []Relation) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(MemoryStoreConfig{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for _, e := range entities {
		require.NoError(t, s.AddEntity(ctx, e))
	}
	for _, r := range relations {
		require.NoError(t, s.AddRelation(ctx, r))
	}
	return s
}

func TestFindPath_TwoHopChain(t *testing.T) {
	// A -knows-> C -knows-> B with weights 0.9 and 0.7.
	s := buildStore(t,
		[]Entity{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		[]Relation{
			{Source: "A", Predicate: "knows", Target: "C", Weight: 0.9},
			{Source: "C", Predicate: "knows", Target: "B", Weight: 0.7},
		},
	)

	paths, err := s.FindPath(context.Background(), []string{"A", "B"}, 3)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	p := paths[0]
	require.NoError(t, p.Validate())
	require.Equal(t, 2, p.Len())
	assert.Equal(t, "A", p.Hops[0].Source)
	assert.Equal(t, "C", p.Hops[0].Target)
	assert.Equal(t, "B", p.Hops[1].Target)
	assert.InDelta(t, 0.8, p.MeanConfidence(), 1e-9)
	assert.Equal(t, "A -knows-> C -knows-> B", p.String())
}

func TestFindPath_NoPathWithinDepth(t *testing.T) {
	// A and Z both exist but are unconnected.
	s := buildStore(t,
		[]Entity{{ID: "A"}, {ID: "Z"}},
		nil,
	)

	paths, err := s.FindPath(context.Background(), []string{"A", "Z"}, 2)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFindPath_EntityNotFound(t *testing.T) {
	s := buildStore(t, []Entity{{ID: "A"}}, nil)

	_, err := s.FindPath(context.Background(), []string{"A", "missing"}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestFindPath_InvalidInputs(t *testing.T) {
	s := buildStore(t, []Entity{{ID: "A"}, {ID: "B"}}, nil)

	_, err := s.FindPath(context.Background(), []string{"A"}, 3)
	assert.ErrorIs(t, err, ErrTooFewEntities)

	_, err = s.FindPath(context.Background(), []string{"A", "B"}, 0)
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestFindPath_ShortestFirst(t *testing.T) {
	// Direct edge plus a longer detour: only the shortest path is returned.
	s := buildStore(t,
		[]Entity{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		[]Relation{
			{Source: "A", Predicate: "knows", Target: "B", Weight: 0.5},
			{Source: "A", Predicate: "knows", Target: "C", Weight: 0.9},
			{Source: "C", Predicate: "knows", Target: "B", Weight: 0.9},
		},
	)

	paths, err := s.FindPath(context.Background(), []string{"A", "B"}, 3)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 1, paths[0].Len())
}

func TestFindPath_LexicalTieBreak(t *testing.T) {
	// Parallel edges with different predicates are distinct equal-length
	// paths; ordering follows the predicate sequence.
	s := buildStore(t,
		[]Entity{{ID: "A"}, {ID: "B"}},
		[]Relation{
			{Source: "A", Predicate: "mentors", Target: "B", Weight: 0.6},
			{Source: "A", Predicate: "advises", Target: "B", Weight: 0.6},
		},
	)

	paths, err := s.FindPath(context.Background(), []string{"A", "B"}, 2)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "advises", paths[0].Hops[0].Predicate)
	assert.Equal(t, "mentors", paths[1].Hops[0].Predicate)
}

func TestFindPath_HopConfidenceFromEmbeddings(t *testing.T) {
	// Unweighted relation: hop confidence falls back to endpoint embedding
	// similarity.
	s := buildStore(t,
		[]Entity{
			{ID: "A", Embedding: []float32{1, 0}},
			{ID: "B", Embedding: []float32{1, 0}},
		},
		[]Relation{{Source: "A", Predicate: "equals", Target: "B"}},
	)

	paths, err := s.FindPath(context.Background(), []string{"A", "B"}, 1)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.InDelta(t, 1.0, paths[0].Hops[0].Confidence, 1e-6)
}

func TestFindPath_ConnectivityInvariant(t *testing.T) {
	s := buildStore(t,
		[]Entity{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}},
		[]Relation{
			{Source: "A", Predicate: "r1", Target: "B", Weight: 0.5},
			{Source: "B", Predicate: "r2", Target: "C", Weight: 0.5},
			{Source: "A", Predicate: "r3", Target: "D", Weight: 0.5},
			{Source: "D", Predicate: "r4", Target: "C", Weight: 0.5},
		},
	)

	paths, err := s.FindPath(context.Background(), []string{"A", "C"}, 4)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		assert.NoError(t, p.Validate())
		assert.LessOrEqual(t, p.Len(), 4)
	}
}

func TestQuerySubgraph(t *testing.T) {
	s := buildStore(t,
		[]Entity{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}},
		[]Relation{
			{Source: "A", Predicate: "knows", Target: "B", Weight: 0.5},
			{Source: "B", Predicate: "likes", Target: "C", Weight: 0.5},
			{Source: "C", Predicate: "knows", Target: "D", Weight: 0.5},
		},
	)

	tests := []struct {
		name         string
		entities     []string
		relations    []string
		maxDepth     int
		wantEntities int
		wantEdges    int
	}{
		{
			name:         "full reach",
			entities:     []string{"A"},
			maxDepth:     3,
			wantEntities: 4,
			wantEdges:    3,
		},
		{
			name:         "depth bounded",
			entities:     []string{"A"},
			maxDepth:     1,
			wantEntities: 2,
			wantEdges:    1,
		},
		{
			name:         "relation filtered",
			entities:     []string{"A"},
			relations:    []string{"knows"},
			maxDepth:     3,
			wantEntities: 2,
			wantEdges:    1,
		},
		{
			name:         "missing seeds skipped",
			entities:     []string{"A", "ghost"},
			maxDepth:     1,
			wantEntities: 2,
			wantEdges:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := s.QuerySubgraph(context.Background(), tt.entities, tt.relations, tt.maxDepth)
			require.NoError(t, err)
			assert.Len(t, sub.Entities, tt.wantEntities)
			assert.Len(t, sub.Relations, tt.wantEdges)
		})
	}
}

func TestSearchEntities(t *testing.T) {
	s := buildStore(t,
		[]Entity{
			{ID: "close", Embedding: []float32{1, 0, 0}},
			{ID: "mid", Embedding: []float32{0.7, 0.7, 0}},
			{ID: "far", Embedding: []float32{0, 0, 1}},
			{ID: "no_embedding"},
		},
		nil,
	)

	matches, err := s.SearchEntities(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "close", matches[0].Entity.ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	assert.Equal(t, "mid", matches[1].Entity.ID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestSearchEntities_TieBreakByID(t *testing.T) {
	s := buildStore(t,
		[]Entity{
			{ID: "zeta", Embedding: []float32{1, 0}},
			{ID: "alpha", Embedding: []float32{1, 0}},
		},
		nil,
	)

	matches, err := s.SearchEntities(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "alpha", matches[0].Entity.ID)
	assert.Equal(t, "zeta", matches[1].Entity.ID)
}

func TestSearchEntities_BoundaryTieBreak(t *testing.T) {
	// Four entities tie on similarity but only two fit: the ID tie-break
	// must decide which side of the topK cutoff each lands on.
	s := buildStore(t,
		[]Entity{
			{ID: "delta", Embedding: []float32{1, 0}},
			{ID: "bravo", Embedding: []float32{1, 0}},
			{ID: "charlie", Embedding: []float32{1, 0}},
			{ID: "alpha", Embedding: []float32{1, 0}},
		},
		nil,
	)

	matches, err := s.SearchEntities(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "alpha", matches[0].Entity.ID)
	assert.Equal(t, "bravo", matches[1].Entity.ID)
}

func TestSearchEntities_BruteForceFallback(t *testing.T) {
	s, err := NewMemoryStore(MemoryStoreConfig{DisableIndex: true}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.AddEntity(ctx, Entity{ID: "only", Embedding: []float32{0, 1}}))

	matches, err := s.SearchEntities(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "only", matches[0].Entity.ID)
}

func TestGetEmbedding(t *testing.T) {
	s := buildStore(t,
		[]Entity{
			{ID: "with", Embedding: []float32{1, 2}},
			{ID: "without"},
		},
		nil,
	)
	ctx := context.Background()

	vec, err := s.GetEmbedding(ctx, "with")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	_, err = s.GetEmbedding(ctx, "without")
	assert.ErrorIs(t, err, ErrNoEmbedding)

	_, err = s.GetEmbedding(ctx, "absent")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestRelationEmbeddings(t *testing.T) {
	s := buildStore(t, []Entity{{ID: "A"}}, nil)
	require.NoError(t, s.RegisterRelationEmbedding("knows", []float32{1, 0}))
	require.NoError(t, s.RegisterRelationEmbedding("likes", []float32{0, 1}))

	ctx := context.Background()
	preds, err := s.Predicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"knows", "likes"}, preds)

	vec, err := s.RelationEmbedding(ctx, "knows")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)

	_, err = s.RelationEmbedding(ctx, "unregistered")
	assert.ErrorIs(t, err, ErrNoEmbedding)
}

func TestStats(t *testing.T) {
	s := buildStore(t,
		[]Entity{{ID: "A"}, {ID: "B"}},
		[]Relation{
			{Source: "A", Predicate: "knows", Target: "B", Weight: 0.5},
			{Source: "A", Predicate: "likes", Target: "B", Weight: 0.5},
			{Source: "B", Predicate: "knows", Target: "A", Weight: 0.5},
		},
	)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 3, stats.Relations)
	assert.InDelta(t, 1.5, stats.AvgDegree, 1e-9)
}

func TestAddRelation_Validation(t *testing.T) {
	s := buildStore(t, []Entity{{ID: "A"}}, nil)
	ctx := context.Background()

	err := s.AddRelation(ctx, Relation{Source: "A", Predicate: "knows", Target: "ghost"})
	assert.ErrorIs(t, err, ErrEntityNotFound)

	err = s.AddRelation(ctx, Relation{Source: "A", Predicate: "", Target: "A"})
	assert.Error(t, err)
}

func TestAddEntity_DimensionCheck(t *testing.T) {
	s, err := NewMemoryStore(MemoryStoreConfig{VectorSize: 3}, nil)
	require.NoError(t, err)

	err = s.AddEntity(context.Background(), Entity{ID: "bad", Embedding: []float32{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLoadFile(t *testing.T) {
	gf := GraphFile{
		Entities: []Entity{
			{ID: "A", Embedding: []float32{1, 0}},
			{ID: "B", Embedding: []float32{0, 1}},
		},
		Relations: []Relation{
			{Source: "A", Predicate: "knows", Target: "B", Weight: 0.8},
		},
		RelationEmbeddings: map[string][]float32{
			"knows": {0.5, 0.5},
		},
	}
	data, err := json.Marshal(gf)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := NewMemoryStore(MemoryStoreConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, LoadFile(context.Background(), s, path))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Relations)

	preds, err := s.Predicates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"knows"}, preds)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1.0},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0.0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1.0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0.0},
		{name: "dimension mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0.0},
		{name: "empty", a: nil, b: nil, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestMeanVector(t *testing.T) {
	got := MeanVector([]float32{1, 0}, []float32{0, 1})
	assert.Equal(t, []float32{0.5, 0.5}, got)

	assert.Nil(t, MeanVector())
	assert.Nil(t, MeanVector(nil, nil))
	// Mixed dimensions are rejected.
	assert.Nil(t, MeanVector([]float32{1, 0}, []float32{1, 0, 0}))
	// Empty vectors are skipped, not averaged in.
	assert.Equal(t, []float32{1, 0}, MeanVector([]float32{1, 0}, nil))
}
