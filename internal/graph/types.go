package graph

import (
	"fmt"
	"strings"
)

// Entity is a node in the knowledge graph.
//
// Entities are immutable once ingested. The Embedding field is optional;
// entities without embeddings are excluded from similarity search and
// contribute a neutral score to hop confidence.
type Entity struct {
	// ID is the unique entity identifier (e.g. "Einstein").
	ID string `json:"id"`

	// Type is a free-form type tag (e.g. "person", "concept").
	Type string `json:"type,omitempty"`

	// Attributes holds arbitrary key/value metadata.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Embedding is the entity's vector representation, if any.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Relation is a directed, labeled edge between two entities.
//
// Multiple relations between the same entity pair are permitted.
type Relation struct {
	// Source is the ID of the source entity.
	Source string `json:"source"`

	// Predicate is the relation label (e.g. "developed").
	Predicate string `json:"predicate"`

	// Target is the ID of the target entity.
	Target string `json:"target"`

	// Weight is an optional confidence weight in [0,1]. Zero means unset;
	// unweighted relations score via entity-embedding similarity instead.
	Weight float64 `json:"weight,omitempty"`
}

// Hop is a single traversal step in a reasoning path.
type Hop struct {
	// Source is the entity the hop departs from.
	Source string `json:"source"`

	// Predicate is the relation label traversed.
	Predicate string `json:"predicate"`

	// Target is the entity the hop arrives at.
	Target string `json:"target"`

	// Confidence is the per-hop similarity score in [0,1].
	Confidence float64 `json:"confidence"`
}

// Path is an ordered sequence of hops. Hop i's target is always hop i+1's
// source (connectivity invariant, checked by Validate).
type Path struct {
	Hops []Hop `json:"hops"`
}

// Len returns the number of hops in the path.
func (p Path) Len() int { return len(p.Hops) }

// Validate checks the connectivity invariant and per-hop confidence bounds.
func (p Path) Validate() error {
	for i, h := range p.Hops {
		if h.Confidence < 0 || h.Confidence > 1 {
			return fmt.Errorf("hop %d: confidence %f out of [0,1]", i, h.Confidence)
		}
		if i > 0 && p.Hops[i-1].Target != h.Source {
			return fmt.Errorf("hop %d: source %q does not chain from previous target %q",
				i, h.Source, p.Hops[i-1].Target)
		}
	}
	return nil
}

// MeanConfidence returns the average of the per-hop confidence values.
// An empty path has confidence 0.
func (p Path) MeanConfidence() float64 {
	if len(p.Hops) == 0 {
		return 0
	}
	var sum float64
	for _, h := range p.Hops {
		sum += h.Confidence
	}
	return sum / float64(len(p.Hops))
}

// predicateKey returns the lexical tie-break key for equal-length paths:
// the hop predicates joined in order.
func (p Path) predicateKey() string {
	labels := make([]string, len(p.Hops))
	for i, h := range p.Hops {
		labels[i] = h.Predicate
	}
	return strings.Join(labels, "\x00")
}

// String renders the path as "A -knows-> B -knows-> C".
func (p Path) String() string {
	if len(p.Hops) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.Hops[0].Source)
	for _, h := range p.Hops {
		fmt.Fprintf(&b, " -%s-> %s", h.Predicate, h.Target)
	}
	return b.String()
}

// Subgraph is the induced neighborhood returned by QuerySubgraph.
type Subgraph struct {
	// Entities maps entity ID to the entity record.
	Entities map[string]Entity `json:"entities"`

	// Relations are the edges between entities in the subgraph.
	Relations []Relation `json:"relations"`
}

// Match is a single similarity-search result.
type Match struct {
	// Entity is the matched entity.
	Entity Entity `json:"entity"`

	// Similarity is the cosine similarity to the query, clamped to [0,1].
	Similarity float64 `json:"similarity"`
}

// Stats holds aggregate graph statistics for diagnostics.
type Stats struct {
	// Entities is the total entity count.
	Entities int `json:"entities"`

	// Relations is the total relation count.
	Relations int `json:"relations"`

	// AvgDegree is the average out-degree across entities.
	AvgDegree float64 `json:"avg_degree"`
}
