package graph

import "context"

// Store is the knowledge-graph query contract consumed by the reasoning
// engine. Implementations must be safe for concurrent readers and must not
// mutate graph data in any query method.
//
// Determinism requirements:
//   - FindPath returns shortest paths first; ties among equal-length paths
//     break by lexical order of the predicate-label sequence.
//   - SearchEntities ranks by descending similarity; ties break by entity ID.
type Store interface {
	// FindPath returns every shortest path (length <= maxDepth) between each
	// ordered pair of the given entities. It returns an empty slice, not an
	// error, when no path exists within maxDepth. It returns
	// ErrEntityNotFound when an input entity is absent.
	FindPath(ctx context.Context, entities []string, maxDepth int) ([]Path, error)

	// QuerySubgraph returns the induced subgraph reachable from the given
	// entities within maxDepth, optionally filtered to the given relation
	// predicates. Absent seed entities are skipped, not errors.
	QuerySubgraph(ctx context.Context, entities, relations []string, maxDepth int) (*Subgraph, error)

	// SearchEntities returns up to topK entities ranked by descending cosine
	// similarity between query and each entity embedding.
	SearchEntities(ctx context.Context, query []float32, topK int) ([]Match, error)

	// GetEmbedding returns the entity's embedding vector. It returns
	// ErrEntityNotFound for absent entities and ErrNoEmbedding for entities
	// without a vector.
	GetEmbedding(ctx context.Context, entityID string) ([]float32, error)

	// RelationEmbedding returns the embedding registered for a relation
	// predicate, or ErrNoEmbedding if none is registered.
	RelationEmbedding(ctx context.Context, predicate string) ([]float32, error)

	// Predicates returns every relation predicate that carries an embedding,
	// sorted lexically.
	Predicates(ctx context.Context) ([]string, error)

	// Stats returns aggregate counts for diagnostics. No side effects.
	Stats(ctx context.Context) (Stats, error)
}
