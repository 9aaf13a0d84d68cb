//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package llm provides interfaces and implementations for LLM providers.
package llm

import "context"

// EmbeddingProvider generates a vector embedding for a query. It is only
// required by retrieval backends that embed queries locally; the Pinecone
// backend uses server-side integrated embeddings. Documents are embedded at
// ingestion time outside this process, so there is no batch operation.
type EmbeddingProvider interface {
	// Embed generates an embedding vector for the given query text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionProvider generates grounded answers. The pipeline always runs
// to completion before any tokens are delivered to the caller, so the
// interface is deliberately non-streaming.
type CompletionProvider interface {
	// Complete generates a completion for the given messages.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// Message represents a message in the conversation.
type Message struct {
	Role    string // "user", "assistant", or "system"
	Content string
}

// CompletionRequest represents a request to an LLM for completion. The
// message list already embeds the grounding context; providers do not
// assemble prompts.
type CompletionRequest struct {
	// Messages is the full message sequence, system prompt included.
	Messages []Message

	// MaxTokens is the maximum number of tokens to generate.
	// If 0, uses the provider's default.
	MaxTokens int

	// Temperature controls randomness. If negative, uses the provider's
	// default.
	Temperature float64
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage represents token consumption for a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
