//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pinecone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ragworks/rag-chat-server/internal/vector"
)

// Searcher implements vector.Searcher over a Pinecone integrated-embedding
// index.
type Searcher struct {
	client    *Client
	textField string
	fields    []string
}

// NewSearcher creates a Pinecone-backed searcher. textField names the
// record attribute holding the chunk text on the index.
func NewSearcher(client *Client, textField string) *Searcher {
	return &Searcher{
		client:    client,
		textField: textField,
		fields: []string{
			textField,
			"title",
			"source",
			"url",
			"published",
			"doc_id",
			"chunk_id",
		},
	}
}

// searchQuery is the query portion of a records search request.
type searchQuery struct {
	Inputs map[string]string `json:"inputs"`
	TopK   int               `json:"top_k"`
	Filter map[string]any    `json:"filter,omitempty"`
}

// searchRequest is the records search request body.
type searchRequest struct {
	Query  searchQuery `json:"query"`
	Fields []string    `json:"fields,omitempty"`
}

// searchResponse mirrors the SearchRecordsResponse shape.
type searchResponse struct {
	Result struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Fields map[string]any `json:"fields"`
		} `json:"hits"`
	} `json:"result"`
}

// Search performs an integrated-embedding search over the namespace.
func (s *Searcher) Search(
	ctx context.Context,
	namespace, query string,
	topK int,
	filters map[string]any,
) ([]vector.Hit, error) {
	reqBody := searchRequest{
		Query: searchQuery{
			Inputs: map[string]string{"text": query},
			TopK:   topK,
			Filter: filters,
		},
		Fields: s.fields,
	}

	path := fmt.Sprintf("/records/namespaces/%s/search", url.PathEscape(namespace))
	resp, err := s.client.request(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	hits := make([]vector.Hit, 0, len(searchResp.Result.Hits))
	for _, h := range searchResp.Result.Hits {
		fields := h.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		hits = append(hits, vector.Hit{
			ID:     h.ID,
			Score:  h.Score,
			Fields: fields,
		})
	}

	return hits, nil
}

// Close is a no-op; the client holds no pooled resources.
func (s *Searcher) Close() {}

// Ensure Searcher implements the interface.
var _ vector.Searcher = (*Searcher)(nil)
