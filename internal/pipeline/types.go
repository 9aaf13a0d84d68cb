//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline implements the request orchestration flow: normalize,
// retrieve, decide, optional web search, generate, format. The service
// layer on top adds response caching, metrics recording, and admission
// control.
package pipeline

import (
	"github.com/ragworks/rag-chat-server/internal/metrics"
)

// Message is one turn of prior conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is a question-answering request. Optional fields use
// pointers so that an absent field and an explicit zero value can be told
// apart when defaults are applied.
type ChatRequest struct {
	Query          string    `json:"query"`
	Namespace      string    `json:"namespace,omitempty"`
	TopK           int       `json:"top_k,omitempty"`
	UseWebFallback *bool     `json:"use_web_fallback,omitempty"`
	MinScore       *float64  `json:"min_score,omitempty"`
	MaxWebResults  int       `json:"max_web_results,omitempty"`
	ChatHistory    []Message `json:"chat_history,omitempty"`
}

// Snippet is one context source included in the answer: a retrieved
// document chunk or a web search result.
type Snippet struct {
	Source    string  `json:"source"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Score     float64 `json:"score"`
	ChunkText string  `json:"chunk_text"`
}

// Timings carries per-stage durations in milliseconds. Stages that did
// not run report zero.
type Timings struct {
	RetrieveMS float64 `json:"retrieve_ms"`
	WebMS      float64 `json:"web_ms"`
	GenerateMS float64 `json:"generate_ms"`
	TotalMS    float64 `json:"total_ms"`
}

// Sample converts the timings into a metrics sample.
func (t Timings) Sample() metrics.Sample {
	return metrics.Sample{
		RetrieveMS: t.RetrieveMS,
		WebMS:      t.WebMS,
		GenerateMS: t.GenerateMS,
		TotalMS:    t.TotalMS,
	}
}

// ChatResponse is the final answer with its grounding sources and stage
// timings.
type ChatResponse struct {
	Answer          string    `json:"answer"`
	Sources         []Snippet `json:"sources"`
	Timings         Timings   `json:"timings"`
	WebFallbackUsed bool      `json:"web_fallback_used"`

	// TopScore is the best retrieval score before any web fallback,
	// zero when nothing was retrieved.
	TopScore float64 `json:"top_score"`
}

// SearchRequest is a raw semantic search request.
type SearchRequest struct {
	Query     string         `json:"query"`
	Namespace string         `json:"namespace,omitempty"`
	TopK      int            `json:"top_k,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
}

// SearchHit is one scored search result. Fields always includes a
// chunk_text key regardless of the backend's configured text attribute.
type SearchHit struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// SearchResponse echoes the effective request parameters alongside the
// hits.
type SearchResponse struct {
	Namespace string      `json:"namespace"`
	Query     string      `json:"query"`
	TopK      int         `json:"top_k"`
	Hits      []SearchHit `json:"hits"`
}
