package graph

import "errors"

// Common errors for graph operations.
var (
	// ErrEntityNotFound indicates a requested entity is absent from the graph.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNoEmbedding indicates an entity exists but carries no embedding vector.
	ErrNoEmbedding = errors.New("entity has no embedding")

	// ErrTooFewEntities indicates an operation needs at least two entities.
	ErrTooFewEntities = errors.New("at least two entities required")

	// ErrInvalidDepth indicates a non-positive search depth.
	ErrInvalidDepth = errors.New("max depth must be positive")

	// ErrDimensionMismatch indicates embedding vectors of different lengths.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
