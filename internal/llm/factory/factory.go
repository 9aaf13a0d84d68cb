//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package factory creates LLM provider instances from configuration.
package factory

import (
	"fmt"
	"strings"

	"github.com/ragworks/rag-chat-server/internal/config"
	"github.com/ragworks/rag-chat-server/internal/llm"
	"github.com/ragworks/rag-chat-server/internal/llm/groq"
	"github.com/ragworks/rag-chat-server/internal/llm/openai"
)

// NewCompletionProvider creates an answer generation provider from the
// generation configuration.
func NewCompletionProvider(
	cfg config.GenerationConfig,
	apiKey string,
) (llm.CompletionProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generation API key is required")
	}

	var clientOpts []groq.ClientOption
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, groq.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSeconds > 0 {
		clientOpts = append(clientOpts, groq.WithTimeout(cfg.TimeoutSeconds))
	}
	client := groq.NewClient(apiKey, clientOpts...)

	opts := []groq.CompletionOption{
		groq.WithCompletionClient(client),
		groq.WithTemperature(cfg.Temperature),
	}
	if cfg.Model != "" {
		opts = append(opts, groq.WithCompletionModel(cfg.Model))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, groq.WithMaxTokens(cfg.MaxTokens))
	}

	return groq.NewCompletionProvider(apiKey, opts...), nil
}

// NewEmbeddingProvider creates an embedding provider from an LLM
// configuration. Only needed by the postgres retrieval backend; the
// pinecone backend embeds server-side.
func NewEmbeddingProvider(
	cfg config.LLMConfig,
	apiKey string,
) (llm.EmbeddingProvider, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai", "":
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required for embeddings")
		}
		var opts []openai.EmbeddingOption
		if cfg.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
		}
		return openai.NewEmbeddingProvider(apiKey, opts...), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
