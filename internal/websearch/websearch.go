//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package websearch defines the web search capability used as a retrieval
// fallback. A nil Tool means web search is not configured; callers treat
// that as the feature being unavailable, not as an error.
package websearch

import "context"

// Result is a single web search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Tool performs a web search for a query.
type Tool interface {
	// Search returns up to maxResults results for the query.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}
