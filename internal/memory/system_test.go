package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSystem(t *testing.T, cfg Config) *System {
	t.Helper()
	s, err := NewSystem(cfg, nil)
	require.NoError(t, err)
	return s
}

// mockClock pins timeNow to a controllable instant.
func mockClock(t *testing.T, start time.Time) func(time.Duration) {
	t.Helper()
	current := start
	timeNow = func() time.Time { return current }
	t.Cleanup(func() { timeNow = time.Now })
	return func(d time.Duration) { current = current.Add(d) }
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "negative decay", mutate: func(c *Config) { c.EpisodicDecayRate = -1 }, wantErr: true},
		{name: "epsilon too large", mutate: func(c *Config) { c.DecayEpsilon = 1 }, wantErr: true},
		{name: "alpha too large", mutate: func(c *Config) { c.ProceduralAlpha = 1.5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	s := newTestSystem(t, Config{})
	ctx := context.Background()

	emb := []float32{0.3, 0.6, 0.1}
	rec := &Record{
		Episode:   &Episode{TaskID: "t1", TaskType: "path_finding", Success: true},
		Embedding: emb,
	}
	require.NoError(t, s.Store(ctx, TierEpisodic, rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 1.0, rec.Strength)

	hits, err := s.Retrieve(ctx, TierEpisodic, emb, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rec.ID, hits[0].Record.ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestRetrieve_ThresholdAndRanking(t *testing.T) {
	s := newTestSystem(t, Config{})
	ctx := context.Background()

	recs := map[string][]float32{
		"exact":      {1, 0, 0},
		"close":      {0.9, 0.3, 0},
		"orthogonal": {0, 0, 1},
	}
	ids := make(map[string]string)
	for name, emb := range recs {
		r := &Record{Fact: name, Embedding: emb}
		require.NoError(t, s.Store(ctx, TierSemantic, r))
		ids[name] = r.ID
	}

	hits, err := s.Retrieve(ctx, TierSemantic, []float32{1, 0, 0}, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, ids["exact"], hits[0].Record.ID)
	assert.Equal(t, ids["close"], hits[1].Record.ID)

	// topK caps the result set.
	hits, err = s.Retrieve(ctx, TierSemantic, []float32{1, 0, 0}, 1, 0.5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRetrieve_InvalidInputs(t *testing.T) {
	s := newTestSystem(t, Config{})
	ctx := context.Background()

	_, err := s.Retrieve(ctx, TierEpisodic, nil, 5, 0.5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Retrieve(ctx, TierEpisodic, []float32{1}, 0, 0.5)
	assert.ErrorIs(t, err, ErrInvalidTopK)

	_, err = s.Retrieve(ctx, Tier("bogus"), []float32{1}, 5, 0.5)
	assert.ErrorIs(t, err, ErrUnknownTier)

	err = s.Store(ctx, TierProcedural, &Record{Embedding: []float32{1}})
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestStore_CapacityEviction(t *testing.T) {
	advance := mockClock(t, time.Unix(1000, 0))
	s := newTestSystem(t, Config{MaxSize: 2})
	ctx := context.Background()

	oldest := &Record{Fact: "oldest", Embedding: []float32{1, 0}}
	require.NoError(t, s.Store(ctx, TierSemantic, oldest))
	advance(time.Second)
	middle := &Record{Fact: "middle", Embedding: []float32{0, 1}}
	require.NoError(t, s.Store(ctx, TierSemantic, middle))
	advance(time.Second)
	newest := &Record{Fact: "newest", Embedding: []float32{1, 1}}
	require.NoError(t, s.Store(ctx, TierSemantic, newest))

	// The oldest record had the most decay and is evicted; capacity holds.
	assert.Equal(t, 2, s.Usage()[string(TierSemantic)])
	hits, err := s.Retrieve(ctx, TierSemantic, []float32{1, 0}, 5, -1)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, oldest.ID, h.Record.ID)
	}
}

func TestDecay_MonotonicBetweenReinforcements(t *testing.T) {
	advance := mockClock(t, time.Unix(1000, 0))
	s := newTestSystem(t, Config{EpisodicDecayRate: 0.01})
	ctx := context.Background()

	rec := &Record{
		Episode:   &Episode{TaskID: "t1"},
		Embedding: []float32{1, 0},
	}
	require.NoError(t, s.Store(ctx, TierEpisodic, rec))

	advance(10 * time.Second)
	s.DecayPass(timeNow())
	first := rec.Strength
	assert.Less(t, first, 1.0)
	assert.Greater(t, first, 0.0)

	advance(10 * time.Second)
	s.DecayPass(timeNow())
	assert.Less(t, rec.Strength, first)
}

func TestDecay_PruneBelowEpsilon(t *testing.T) {
	advance := mockClock(t, time.Unix(1000, 0))
	s := newTestSystem(t, Config{EpisodicDecayRate: 1.0, DecayEpsilon: 0.01})
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, TierEpisodic, &Record{
		Episode:   &Episode{TaskID: "t1"},
		Embedding: []float32{1, 0},
	}))
	assert.Equal(t, 1, s.Usage()[string(TierEpisodic)])

	// exp(-1.0 * 10) is far below epsilon.
	advance(10 * time.Second)
	s.DecayPass(timeNow())
	assert.Equal(t, 0, s.Usage()[string(TierEpisodic)])

	// A second pass at the same instant is a no-op.
	s.DecayPass(timeNow())
	assert.Equal(t, 0, s.Usage()[string(TierEpisodic)])
}

func TestRetrieve_ReinforcesMatches(t *testing.T) {
	advance := mockClock(t, time.Unix(1000, 0))
	s := newTestSystem(t, Config{EpisodicDecayRate: 0.01})
	ctx := context.Background()

	rec := &Record{Episode: &Episode{TaskID: "t1"}, Embedding: []float32{1, 0}}
	require.NoError(t, s.Store(ctx, TierEpisodic, rec))

	advance(30 * time.Second)
	hits, err := s.Retrieve(ctx, TierEpisodic, []float32{1, 0}, 1, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// Reinforcement restarted the decay clock.
	assert.Equal(t, timeNow(), rec.ReinforcedAt)
	assert.Equal(t, 1.0, rec.Strength)
}

func TestProceduralEMA(t *testing.T) {
	s := newTestSystem(t, Config{ProceduralAlpha: 0.3})

	_, ok := s.SuccessRate("path_finding")
	assert.False(t, ok)

	// First outcome seeds the statistic directly.
	s.RecordOutcome("path_finding", true)
	rate, ok := s.SuccessRate("path_finding")
	require.True(t, ok)
	assert.InDelta(t, 1.0, rate, 1e-9)

	// stat' = 0.3*0 + 0.7*1.0
	s.RecordOutcome("path_finding", false)
	rate, _ = s.SuccessRate("path_finding")
	assert.InDelta(t, 0.7, rate, 1e-9)

	// stat' = 0.3*1 + 0.7*0.7
	s.RecordOutcome("path_finding", true)
	rate, _ = s.SuccessRate("path_finding")
	assert.InDelta(t, 0.79, rate, 1e-9)

	assert.Equal(t, 1, s.Usage()[string(TierProcedural)])
}

func TestStore_Validation(t *testing.T) {
	s := newTestSystem(t, Config{})
	ctx := context.Background()

	assert.ErrorIs(t, s.Store(ctx, TierEpisodic, nil), ErrNilRecord)
	assert.ErrorIs(t, s.Store(ctx, TierEpisodic, &Record{}), ErrNoEmbedding)
}

func TestConcurrentStoresHoldCapacity(t *testing.T) {
	const maxSize = 8
	s := newTestSystem(t, Config{MaxSize: maxSize})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Store(ctx, TierEpisodic, &Record{
				Episode:   &Episode{TaskID: "t"},
				Embedding: []float32{float32(i), 1},
			})
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, s.Usage()[string(TierEpisodic)], maxSize)
}

func TestTiersAreIndependent(t *testing.T) {
	s := newTestSystem(t, Config{MaxSize: 1})
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, TierEpisodic, &Record{
		Episode: &Episode{TaskID: "t"}, Embedding: []float32{1},
	}))
	require.NoError(t, s.Store(ctx, TierSemantic, &Record{
		Fact: "f", Embedding: []float32{1},
	}))

	usage := s.Usage()
	assert.Equal(t, 1, usage[string(TierEpisodic)])
	assert.Equal(t, 1, usage[string(TierSemantic)])
}
