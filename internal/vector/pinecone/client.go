//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pinecone provides a data-plane client for Pinecone indexes with
// integrated embeddings: queries are sent as text and embedded server-side,
// so the backend never computes embeddings locally.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ragworks/rag-chat-server/internal/resilience"
)

const (
	defaultTimeout = 30

	// apiVersion pins the Pinecone data-plane API version header.
	apiVersion = "2025-01"
)

// Client is a Pinecone data-plane client bound to one index host.
type Client struct {
	httpClient *http.Client
	host       string
	apiKey     string
}

// NewClient creates a new Pinecone client targeting the given index host.
func NewClient(apiKey, host string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout * time.Second,
		},
		host:   host,
		apiKey: apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(seconds int) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = time.Duration(seconds) * time.Second
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// request makes an HTTP request to the Pinecone data plane.
func (c *Client) request(
	ctx context.Context,
	method, path string,
	body interface{},
) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-API-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// errorResponse represents a Pinecone API error payload.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseError extracts error information from an API response. The returned
// error carries the HTTP status so the resilience wrapper can classify it.
func parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &resilience.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    "failed to read error body",
		}
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &resilience.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	return &resilience.HTTPError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error.Message,
	}
}
