//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragworks/rag-chat-server/internal/resilience"
)

func newTestEmbeddingProvider(t *testing.T, handler http.HandlerFunc) *EmbeddingProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("test-key", WithBaseURL(srv.URL))
	return NewEmbeddingProvider("test-key", WithEmbeddingClient(client))
}

func TestEmbedSendsSingleInput(t *testing.T) {
	var captured embeddingRequest
	provider := newTestEmbeddingProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		resp := map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	embedding, err := provider.Embed(context.Background(), "query text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embedding) != 3 {
		t.Errorf("expected 3-dim embedding, got %d", len(embedding))
	}
	if len(captured.Input) != 1 || captured.Input[0] != "query text" {
		t.Errorf("unexpected request input %v", captured.Input)
	}
	if captured.Model != "text-embedding-3-small" {
		t.Errorf("unexpected model %q", captured.Model)
	}
}

func TestEmbedEmptyDataIsError(t *testing.T) {
	provider := newTestEmbeddingProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})

	if _, err := provider.Embed(context.Background(), "query"); err == nil {
		t.Fatal("expected error for empty embedding data")
	}
}

func TestEmbedErrorCarriesStatus(t *testing.T) {
	provider := newTestEmbeddingProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	})

	_, err := provider.Embed(context.Background(), "query")
	if err == nil {
		t.Fatal("expected error")
	}

	var httpErr *resilience.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.StatusCode)
	}
}
