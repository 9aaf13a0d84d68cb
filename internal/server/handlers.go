//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ragworks/rag-chat-server/internal/config"
	"github.com/ragworks/rag-chat-server/internal/pipeline"
	"github.com/ragworks/rag-chat-server/internal/resilience"
)

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles the GET /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "rag-chat-server",
		Version: s.version,
	})
}

// handleMetrics handles the GET /metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.service.MetricsReport())
}

// handleChat handles the POST /chat endpoint.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.service.Chat(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleChatStream handles the POST /chat/stream endpoint. The pipeline
// runs to completion first; the answer is then replayed token by token
// as SSE events, with a final end event carrying the full response.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.service.Chat(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "STREAMING_ERROR",
			"streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, token := range strings.Fields(resp.Answer) {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", token); err != nil {
			s.logger.Error("failed to write SSE event", "error", err)
			return
		}
		flusher.Flush()
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal SSE end event", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: end\ndata: %s\n\n", payload); err != nil {
		s.logger.Error("failed to write SSE end event", "error", err)
		return
	}
	flusher.Flush()
}

// handleSearch handles the POST /search endpoint.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req pipeline.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return
	}

	if msg := validateSearchRequest(req); msg != "" {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	resp, err := s.service.Search(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// decodeChatRequest parses and validates a chat request body. On failure
// it writes the error response and returns ok=false.
func (s *Server) decodeChatRequest(
	w http.ResponseWriter,
	r *http.Request,
) (pipeline.ChatRequest, bool) {
	var req pipeline.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return req, false
	}

	if msg := validateChatRequest(req); msg != "" {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return req, false
	}

	return req, true
}

// validateChatRequest returns an error message, or empty when valid.
func validateChatRequest(req pipeline.ChatRequest) string {
	if req.Query == "" {
		return "query is required"
	}
	if req.TopK < 0 || req.TopK > config.MaxTopK {
		return fmt.Sprintf("top_k must be between 1 and %d", config.MaxTopK)
	}
	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		return "min_score must be between 0 and 1"
	}
	if req.MaxWebResults < 0 || req.MaxWebResults > config.MaxWebResultsCap {
		return fmt.Sprintf("max_web_results must be between 1 and %d",
			config.MaxWebResultsCap)
	}
	for i, m := range req.ChatHistory {
		if m.Role != "user" && m.Role != "assistant" {
			return fmt.Sprintf("chat_history[%d].role must be user or assistant", i)
		}
	}
	return ""
}

// validateSearchRequest returns an error message, or empty when valid.
func validateSearchRequest(req pipeline.SearchRequest) string {
	if req.Query == "" {
		return "query is required"
	}
	if req.TopK < 0 || req.TopK > config.MaxTopK {
		return fmt.Sprintf("top_k must be between 1 and %d", config.MaxTopK)
	}
	return ""
}

// respondServiceError maps pipeline errors onto HTTP statuses. Upstream
// failures become 502 responses naming the failed service; anything else
// is a generic 500 that does not leak internals.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var upstreamErr *resilience.UpstreamError
	if errors.As(err, &upstreamErr) {
		s.logger.Error("upstream service failed",
			"service", upstreamErr.Service,
			"error", upstreamErr.Err)
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR",
			fmt.Sprintf("upstream %s request failed, try again later",
				upstreamErr.Service))
		return
	}

	s.logger.Error("request failed", "error", err)
	s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"internal server error")
}

// respondJSON sends a JSON response with RFC 8631 Link header for API discovery.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	// RFC 8631: Link header for API documentation discovery
	w.Header().Set("Link", `</v1/openapi.json>; rel="service-desc"`)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
