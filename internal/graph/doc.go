// Package graph provides read-only query access to a knowledge graph of
// typed entities and directed, labeled relations.
//
// The package defines the Store contract consumed by the reasoning engine:
// bounded path search, subgraph retrieval, embedding-similarity entity
// search, and aggregate statistics. MemoryStore is the in-process
// implementation; entity similarity search is served by an embedded
// chromem-go index.
//
// All query operations are read-only. Ingestion (AddEntity, AddRelation)
// happens during a build phase before the store is handed to the engine;
// the engine never mutates graph data.
package graph
