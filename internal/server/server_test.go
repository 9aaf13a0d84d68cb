//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ragworks/rag-chat-server/internal/config"
	"github.com/ragworks/rag-chat-server/internal/metrics"
	"github.com/ragworks/rag-chat-server/internal/pipeline"
	"github.com/ragworks/rag-chat-server/internal/resilience"
)

// mockService implements ChatService for testing.
type mockService struct {
	chatResp   *pipeline.ChatResponse
	chatErr    error
	searchResp *pipeline.SearchResponse
	searchErr  error
	lastChat   pipeline.ChatRequest
}

func (m *mockService) Chat(
	_ context.Context,
	req pipeline.ChatRequest,
) (*pipeline.ChatResponse, error) {
	m.lastChat = req
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	return m.chatResp, nil
}

func (m *mockService) Search(
	_ context.Context,
	req pipeline.SearchRequest,
) (*pipeline.SearchResponse, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResp, nil
}

func (m *mockService) MetricsReport() pipeline.MetricsReport {
	return pipeline.MetricsReport{}
}

func (m *mockService) WebAvailable() bool { return true }

func (m *mockService) Close() {}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1"
	return cfg
}

func testServer(svc ChatService) *Server {
	return New(testConfig(), svc, metrics.NewAggregator(), "1.0.0", nil)
}

func chatBody(t *testing.T, req pipeline.ChatRequest) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	return bytes.NewReader(data)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "1.0.0" {
		t.Errorf("unexpected health response %+v", resp)
	}
}

func TestChatEndpoint(t *testing.T) {
	svc := &mockService{
		chatResp: &pipeline.ChatResponse{
			Answer:  "pgvector is a Postgres extension [1].",
			Sources: []pipeline.Snippet{{Source: "wiki", ChunkText: "details"}},
			Timings: pipeline.Timings{RetrieveMS: 12, GenerateMS: 80, TotalMS: 95},
		},
	}
	srv := testServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		chatBody(t, pipeline.ChatRequest{Query: "what is pgvector", TopK: 3}))
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}

	var resp pipeline.ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Answer != svc.chatResp.Answer {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if svc.lastChat.TopK != 3 {
		t.Errorf("request not forwarded, got %+v", svc.lastChat)
	}
}

func TestChatValidation(t *testing.T) {
	bad := -0.5
	tests := []struct {
		name string
		req  pipeline.ChatRequest
	}{
		{"missing query", pipeline.ChatRequest{}},
		{"top_k too large", pipeline.ChatRequest{Query: "q", TopK: 1000}},
		{"min_score out of range", pipeline.ChatRequest{Query: "q", MinScore: &bad}},
		{"bad history role", pipeline.ChatRequest{
			Query:       "q",
			ChatHistory: []pipeline.Message{{Role: "system", Content: "x"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(&mockService{})

			req := httptest.NewRequest(http.MethodPost, "/v1/chat",
				chatBody(t, tt.req))
			w := httptest.NewRecorder()

			srv.mux.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %q", resp.Error.Code)
			}
		})
	}
}

func TestChatInvalidJSON(t *testing.T) {
	srv := testServer(&mockService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestChatUpstreamError(t *testing.T) {
	svc := &mockService{
		chatErr: &resilience.UpstreamError{
			Service: "Groq",
			Err:     &resilience.HTTPError{StatusCode: 503, Message: "overloaded"},
		},
	}
	srv := testServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		chatBody(t, pipeline.ChatRequest{Query: "q"}))
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != "UPSTREAM_ERROR" {
		t.Errorf("expected UPSTREAM_ERROR, got %q", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "Groq") {
		t.Errorf("expected message naming the service, got %q", resp.Error.Message)
	}
	if strings.Contains(resp.Error.Message, "overloaded") {
		t.Errorf("upstream detail must not leak, got %q", resp.Error.Message)
	}
}

func TestChatInternalErrorNotLeaked(t *testing.T) {
	srv := testServer(&mockService{chatErr: errors.New("pool exhausted at 10.0.0.5")})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		chatBody(t, pipeline.ChatRequest{Query: "q"}))
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Errorf("internal detail leaked: %s", w.Body)
	}
}

func TestChatStreamEndpoint(t *testing.T) {
	svc := &mockService{
		chatResp: &pipeline.ChatResponse{
			Answer:  "short grounded answer",
			Timings: pipeline.Timings{TotalMS: 10},
		},
	}
	srv := testServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream",
		chatBody(t, pipeline.ChatRequest{Query: "q"}))
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	body := w.Body.String()
	for _, token := range []string{"short", "grounded", "answer"} {
		if !strings.Contains(body, "data: "+token+"\n\n") {
			t.Errorf("missing token event %q in:\n%s", token, body)
		}
	}
	if !strings.Contains(body, "event: end\n") {
		t.Errorf("missing end event in:\n%s", body)
	}

	// The end event payload is the full response.
	idx := strings.Index(body, "event: end\ndata: ")
	payload := body[idx+len("event: end\ndata: "):]
	payload = strings.TrimSpace(payload)

	var resp pipeline.ChatResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("failed to decode end event payload: %v", err)
	}
	if resp.Answer != "short grounded answer" {
		t.Errorf("unexpected end event answer %q", resp.Answer)
	}
}

func TestSearchEndpoint(t *testing.T) {
	svc := &mockService{
		searchResp: &pipeline.SearchResponse{
			Namespace: "docs",
			Query:     "q",
			TopK:      5,
			Hits: []pipeline.SearchHit{
				{ID: "doc1#1", Score: 0.9, Fields: map[string]any{"chunk_text": "t"}},
			},
		},
	}
	srv := testServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/search",
		strings.NewReader(`{"query": "q"}`))
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}

	var resp pipeline.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].ID != "doc1#1" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSearchValidation(t *testing.T) {
	srv := testServer(&mockService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search",
		strings.NewReader(`{"top_k": 5}`))
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestMetricsRecordedPerPath(t *testing.T) {
	agg := metrics.NewAggregator()
	srv := New(testConfig(), &mockService{
		chatResp: &pipeline.ChatResponse{Answer: "a"},
	}, agg, "1.0.0", nil)
	handler := srv.applyMiddleware(srv.mux)

	// One success and one validation failure.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader(`{"query": "q"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	snap := agg.Snapshot()
	if snap.RequestsByPath["/v1/chat"] != 2 {
		t.Errorf("expected 2 requests recorded, got %d",
			snap.RequestsByPath["/v1/chat"])
	}
	if snap.ErrorsByPath["/v1/chat"] != 1 {
		t.Errorf("expected 1 error recorded, got %d", snap.ErrorsByPath["/v1/chat"])
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit.RequestsPerMinute = 2

	srv := New(cfg, &mockService{}, metrics.NewAggregator(), "1.0.0", nil)
	handler := srv.applyMiddleware(srv.mux)

	var lastCode int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		handler.ServeHTTP(w, req)
		lastCode = w.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected third request to be limited, got %d", lastCode)
	}
}

func TestRateLimitPerClient(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit.RequestsPerMinute = 1

	srv := New(cfg, &mockService{}, metrics.NewAggregator(), "1.0.0", nil)
	handler := srv.applyMiddleware(srv.mux)

	for i, addr := range []string{"198.51.100.1:80", "198.51.100.2:80"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
		req.RemoteAddr = addr
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d from distinct client limited: %d", i, w.Code)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv := testServer(&mockService{})
	handler := srv.applyMiddleware(srv.mux)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id-42")
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-id-42" {
		t.Errorf("expected request ID echoed, got %q", got)
	}

	// A request without an ID gets one assigned.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request ID")
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	srv := testServer(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var spec OpenAPISpec
	if err := json.NewDecoder(w.Body).Decode(&spec); err != nil {
		t.Fatalf("failed to decode spec: %v", err)
	}
	for _, path := range []string{"/chat", "/chat/stream", "/search", "/health", "/metrics"} {
		if _, ok := spec.Paths[path]; !ok {
			t.Errorf("missing path %s in OpenAPI spec", path)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORS.Enabled = true
	cfg.Server.CORS.AllowedOrigins = []string{"https://app.example.org"}

	srv := New(cfg, &mockService{}, metrics.NewAggregator(), "1.0.0", nil)
	handler := srv.applyMiddleware(srv.mux)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat", nil)
	req.Header.Set("Origin", "https://app.example.org")
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
		t.Errorf("unexpected allow-origin %q", got)
	}
}
