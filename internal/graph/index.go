package graph

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// entityCollection is the chromem collection holding entity embeddings.
const entityCollection = "reasond_entities"

// entityIndex wraps an in-memory chromem-go collection for approximate
// nearest-neighbor entity lookup. Embeddings arrive precomputed, so the
// collection's embedding function is never invoked; it exists only to
// satisfy the chromem API and rejects text queries outright.
type entityIndex struct {
	coll *chromem.Collection
}

func newEntityIndex() (*entityIndex, error) {
	db := chromem.NewDB()
	coll, err := db.GetOrCreateCollection(entityCollection, nil, rejectTextEmbedding)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", entityCollection, err)
	}
	return &entityIndex{coll: coll}, nil
}

func rejectTextEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: text queries are not supported, embeddings must be precomputed", ErrNoEmbedding)
}

// add indexes one entity embedding. Re-adding an ID upserts it.
func (i *entityIndex) add(ctx context.Context, id string, vec []float32) error {
	return i.coll.AddDocument(ctx, chromem.Document{
		ID:        id,
		Embedding: vec,
	})
}

// query returns every entity ID ranked by similarity to vec. chromem
// scores the whole collection regardless of how many results are asked
// for, so requesting the full ranking costs the same scan and leaves the
// caller free to apply its own tie-breaks before truncating. An empty
// collection yields an empty result.
func (i *entityIndex) query(ctx context.Context, vec []float32) ([]string, error) {
	count := i.coll.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := i.coll.QueryEmbedding(ctx, vec, count, nil, nil)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(results))
	for n, r := range results {
		ids[n] = r.ID
	}
	return ids, nil
}
