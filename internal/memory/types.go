package memory

import (
	"errors"
	"time"
)

// Common errors for memory operations.
var (
	ErrUnknownTier   = errors.New("unknown memory tier")
	ErrEmptyQuery    = errors.New("query embedding cannot be empty")
	ErrNilRecord     = errors.New("record cannot be nil")
	ErrNoEmbedding   = errors.New("record has no embedding")
	ErrInvalidTopK   = errors.New("topK must be positive")
	ErrInvalidConfig = errors.New("invalid memory config")
)

// Tier identifies one of the three memory tiers.
type Tier string

const (
	// TierEpisodic holds raw task/outcome experience records.
	TierEpisodic Tier = "episodic"

	// TierSemantic holds generalized facts distilled from episodes.
	TierSemantic Tier = "semantic"

	// TierProcedural holds per-strategy success statistics. It is not
	// record-shaped; see System.RecordOutcome and System.SuccessRate.
	TierProcedural Tier = "procedural"
)

// Episode is the payload of an episodic record: one completed task and its
// outcome.
type Episode struct {
	// TaskID is the originating task identifier.
	TaskID string `json:"task_id"`

	// TaskType is the reasoning task type string.
	TaskType string `json:"task_type"`

	// Entities are the task's entity references, in task order.
	Entities []string `json:"entities"`

	// Answer is the final answer payload.
	Answer string `json:"answer"`

	// Confidence is the result's aggregate confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Success reports whether the task finished above threshold.
	Success bool `json:"success"`

	// Strategy names the reasoning strategy that produced the result.
	Strategy string `json:"strategy"`

	// PathStrings render the supporting evidence paths, if any.
	PathStrings []string `json:"paths,omitempty"`
}

// Record is one entry in the episodic or semantic tier.
//
// Strength starts at 1.0 on store and decays as
// exp(-decay_rate * Δt) where Δt is elapsed time since ReinforcedAt.
// Retrieval reinforces a record by resetting ReinforcedAt.
type Record struct {
	// ID is the unique record identifier (UUID, assigned on store).
	ID string `json:"id"`

	// Tier is the tier the record lives in.
	Tier Tier `json:"tier"`

	// Episode is the payload for episodic records.
	Episode *Episode `json:"episode,omitempty"`

	// Fact is the payload for semantic records.
	Fact string `json:"fact,omitempty"`

	// Embedding is the similarity key used for retrieval.
	Embedding []float32 `json:"embedding"`

	// CreatedAt is the insertion timestamp.
	CreatedAt time.Time `json:"created_at"`

	// ReinforcedAt is the last reinforcement timestamp. Decay measures
	// elapsed time from here.
	ReinforcedAt time.Time `json:"reinforced_at"`

	// Strength is the current decayed strength in (0,1]. Maintained by the
	// system; callers treat it as read-only.
	Strength float64 `json:"strength"`
}

// Hit is one retrieval result.
type Hit struct {
	// Record is the matched record.
	Record *Record `json:"record"`

	// Similarity is the cosine similarity to the query in [0,1].
	Similarity float64 `json:"similarity"`
}
