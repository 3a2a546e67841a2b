package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// GraphFile is the on-disk JSON shape consumed by LoadFile.
type GraphFile struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`

	// RelationEmbeddings maps predicate label to its embedding vector.
	RelationEmbeddings map[string][]float32 `json:"relation_embeddings,omitempty"`
}

// LoadFile ingests a JSON graph file into the store. Entities load before
// relations so endpoint checks hold.
func LoadFile(ctx context.Context, s *MemoryStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading graph file: %w", err)
	}

	var gf GraphFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return fmt.Errorf("parsing graph file %s: %w", path, err)
	}

	for _, e := range gf.Entities {
		if err := s.AddEntity(ctx, e); err != nil {
			return fmt.Errorf("loading entity %q: %w", e.ID, err)
		}
	}
	for _, r := range gf.Relations {
		if err := s.AddRelation(ctx, r); err != nil {
			return fmt.Errorf("loading relation %s-%s->%s: %w", r.Source, r.Predicate, r.Target, err)
		}
	}
	for predicate, vec := range gf.RelationEmbeddings {
		if err := s.RegisterRelationEmbedding(predicate, vec); err != nil {
			return fmt.Errorf("loading relation embedding %q: %w", predicate, err)
		}
	}
	return nil
}
