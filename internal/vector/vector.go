//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package vector defines the vector search capability consumed by the
// pipeline. Implementations live in subpackages: pinecone (integrated
// server-side embeddings) and postgres (pgvector with local query
// embeddings).
package vector

import "context"

// Hit is a single scored result from the vector index. Fields carries the
// stored record attributes (chunk text, title, source, url, ...).
type Hit struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// Searcher performs semantic search over a namespace of document chunks.
type Searcher interface {
	// Search returns up to topK scored hits for the query text. The
	// filters map restricts results by record attributes; a nil map
	// applies no filter.
	Search(
		ctx context.Context,
		namespace, query string,
		topK int,
		filters map[string]any,
	) ([]Hit, error)

	// Close releases any held resources.
	Close()
}
