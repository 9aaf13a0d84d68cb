//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragworks/rag-chat-server/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL))
}

func TestSearch(t *testing.T) {
	var gotReq searchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		_, _ = w.Write([]byte(`{
			"results": [
				{"title": "Go 1.25 released", "url": "https://go.dev/blog", "content": "The latest Go release"},
				{"title": "Release notes", "url": "https://go.dev/doc", "content": "What changed"}
			]
		}`))
	})

	results, err := c.Search(context.Background(), "go release", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Go 1.25 released" {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[1].URL != "https://go.dev/doc" {
		t.Errorf("unexpected second result %+v", results[1])
	}

	if gotReq.Query != "go release" {
		t.Errorf("expected query forwarded, got %q", gotReq.Query)
	}
	if gotReq.MaxResults != 5 {
		t.Errorf("expected max_results 5, got %d", gotReq.MaxResults)
	}
}

func TestSearchEmptyResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	})

	results, err := c.Search(context.Background(), "obscure", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchErrorCarriesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"rate limited", http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError},
		{"unauthorized", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail": "nope"}`))
			})

			_, err := c.Search(context.Background(), "q", 1)
			if err == nil {
				t.Fatal("expected error")
			}

			var httpErr *resilience.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected HTTPError, got %T: %v", err, err)
			}
			if httpErr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, httpErr.StatusCode)
			}
		})
	}
}
