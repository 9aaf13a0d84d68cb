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
	"net/http"
)

// OpenAPISpec represents the OpenAPI v3 specification.
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Servers    []OpenAPIServer        `json:"servers"`
	Paths      map[string]OpenAPIPath `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
}

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenAPIServer describes a server.
type OpenAPIServer struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// OpenAPIPath contains operations for a path.
type OpenAPIPath struct {
	Get  *OpenAPIOperation `json:"get,omitempty"`
	Post *OpenAPIOperation `json:"post,omitempty"`
}

// OpenAPIOperation describes an API operation.
type OpenAPIOperation struct {
	Summary     string                     `json:"summary"`
	Description string                     `json:"description,omitempty"`
	OperationID string                     `json:"operationId"`
	Tags        []string                   `json:"tags,omitempty"`
	RequestBody *OpenAPIRequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses"`
}

// OpenAPIRequestBody describes a request body.
type OpenAPIRequestBody struct {
	Description string                      `json:"description,omitempty"`
	Required    bool                        `json:"required"`
	Content     map[string]OpenAPIMediaType `json:"content"`
}

// OpenAPIResponse describes a response.
type OpenAPIResponse struct {
	Description string                      `json:"description"`
	Content     map[string]OpenAPIMediaType `json:"content,omitempty"`
}

// OpenAPIMediaType describes a media type.
type OpenAPIMediaType struct {
	Schema OpenAPISchema `json:"schema"`
}

// OpenAPISchema describes a schema.
type OpenAPISchema struct {
	Type        string                   `json:"type,omitempty"`
	Format      string                   `json:"format,omitempty"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]OpenAPISchema `json:"properties,omitempty"`
	Items       *OpenAPISchema           `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
	Default     any                      `json:"default,omitempty"`
	Ref         string                   `json:"$ref,omitempty"`
}

// OpenAPIComponents contains reusable components.
type OpenAPIComponents struct {
	Schemas map[string]OpenAPISchema `json:"schemas"`
}

// handleOpenAPI handles the GET /v1/openapi.json endpoint.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	spec := BuildOpenAPISpec(s.version)
	s.respondJSON(w, http.StatusOK, spec)
}

func jsonContent(ref string) map[string]OpenAPIMediaType {
	return map[string]OpenAPIMediaType{
		"application/json": {
			Schema: OpenAPISchema{Ref: ref},
		},
	}
}

func errorResponses() map[string]OpenAPIResponse {
	return map[string]OpenAPIResponse{
		"400": {
			Description: "Invalid request",
			Content:     jsonContent("#/components/schemas/ErrorResponse"),
		},
		"429": {
			Description: "Rate limit exceeded",
			Content:     jsonContent("#/components/schemas/ErrorResponse"),
		},
		"502": {
			Description: "Upstream service failure",
			Content:     jsonContent("#/components/schemas/ErrorResponse"),
		},
		"500": {
			Description: "Server error",
			Content:     jsonContent("#/components/schemas/ErrorResponse"),
		},
	}
}

// BuildOpenAPISpec constructs the OpenAPI v3 specification.
// This is exported so it can be used to generate static documentation.
func BuildOpenAPISpec(version string) OpenAPISpec {
	chatResponses := errorResponses()
	chatResponses["200"] = OpenAPIResponse{
		Description: "Chat response",
		Content:     jsonContent("#/components/schemas/ChatResponse"),
	}

	streamResponses := errorResponses()
	streamResponses["200"] = OpenAPIResponse{
		Description: "SSE stream of answer tokens followed by an end event " +
			"carrying the full chat response",
		Content: map[string]OpenAPIMediaType{
			"text/event-stream": {
				Schema: OpenAPISchema{
					Type:        "string",
					Description: "Server-Sent Events stream",
				},
			},
		},
	}

	searchResponses := errorResponses()
	searchResponses["200"] = OpenAPIResponse{
		Description: "Search response",
		Content:     jsonContent("#/components/schemas/SearchResponse"),
	}

	return OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title: "RAG Chat Server API",
			Description: "REST API for retrieval-augmented question answering " +
				"with optional web search fallback",
			Version: version,
		},
		Servers: []OpenAPIServer{
			{
				URL:         "/v1",
				Description: "API v1",
			},
		},
		Paths: map[string]OpenAPIPath{
			"/health": {
				Get: &OpenAPIOperation{
					Summary:     "Health check",
					Description: "Check if the server is running and healthy",
					OperationID: "getHealth",
					Tags:        []string{"System"},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Server is healthy",
							Content:     jsonContent("#/components/schemas/HealthResponse"),
						},
					},
				},
			},
			"/metrics": {
				Get: &OpenAPIOperation{
					Summary: "Metrics snapshot",
					Description: "Request and error counts by path, chat timing " +
						"statistics, cache counters, and recent timing samples",
					OperationID: "getMetrics",
					Tags:        []string{"System"},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Metrics snapshot",
							Content: map[string]OpenAPIMediaType{
								"application/json": {
									Schema: OpenAPISchema{Type: "object"},
								},
							},
						},
					},
				},
			},
			"/chat": {
				Post: &OpenAPIOperation{
					Summary: "RAG chat",
					Description: "Answers a question using vector retrieval, " +
						"optional web search fallback, and grounded generation",
					OperationID: "chat",
					Tags:        []string{"Chat"},
					RequestBody: &OpenAPIRequestBody{
						Description: "Chat request",
						Required:    true,
						Content:     jsonContent("#/components/schemas/ChatRequest"),
					},
					Responses: chatResponses,
				},
			},
			"/chat/stream": {
				Post: &OpenAPIOperation{
					Summary: "Streaming RAG chat (SSE)",
					Description: "Same behaviour as /chat but streams the answer " +
						"over Server-Sent Events",
					OperationID: "chatStream",
					Tags:        []string{"Chat"},
					RequestBody: &OpenAPIRequestBody{
						Description: "Chat request",
						Required:    true,
						Content:     jsonContent("#/components/schemas/ChatRequest"),
					},
					Responses: streamResponses,
				},
			},
			"/search": {
				Post: &OpenAPIOperation{
					Summary:     "Semantic search",
					Description: "Raw vector search over ingested document chunks",
					OperationID: "search",
					Tags:        []string{"Search"},
					RequestBody: &OpenAPIRequestBody{
						Description: "Search request",
						Required:    true,
						Content:     jsonContent("#/components/schemas/SearchRequest"),
					},
					Responses: searchResponses,
				},
			},
		},
		Components: OpenAPIComponents{
			Schemas: map[string]OpenAPISchema{
				"HealthResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"status":  {Type: "string", Description: "Health status"},
						"service": {Type: "string", Description: "Service name"},
						"version": {Type: "string", Description: "Service version"},
					},
					Required: []string{"status", "service", "version"},
				},
				"Message": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"role": {
							Type:        "string",
							Description: "Message role (user or assistant)",
						},
						"content": {
							Type:        "string",
							Description: "Message content",
						},
					},
					Required: []string{"role", "content"},
				},
				"ChatRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"query": {
							Type:        "string",
							Description: "The question to answer",
						},
						"namespace": {
							Type:        "string",
							Description: "Target namespace, defaults to the configured one",
						},
						"top_k": {
							Type:        "integer",
							Description: "Maximum number of retrieved document chunks",
							Default:     5,
						},
						"use_web_fallback": {
							Type:        "boolean",
							Description: "Fall back to web search when retrieval is weak",
							Default:     true,
						},
						"min_score": {
							Type:        "number",
							Format:      "double",
							Description: "Retrieval score threshold below which web fallback triggers",
							Default:     0.25,
						},
						"max_web_results": {
							Type:        "integer",
							Description: "Maximum number of web search results to fetch",
							Default:     5,
						},
						"chat_history": {
							Type:        "array",
							Description: "Prior conversation turns",
							Items: &OpenAPISchema{
								Ref: "#/components/schemas/Message",
							},
						},
					},
					Required: []string{"query"},
				},
				"Snippet": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"source": {
							Type:        "string",
							Description: "Origin of the snippet (e.g. wiki, arxiv, web)",
						},
						"title": {Type: "string", Description: "Document or page title"},
						"url":   {Type: "string", Description: "Associated URL, when available"},
						"score": {
							Type:        "number",
							Format:      "double",
							Description: "Relevance score; zero for web results",
						},
						"chunk_text": {Type: "string", Description: "Snippet text"},
					},
					Required: []string{"source", "chunk_text"},
				},
				"Timings": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"retrieve_ms": {Type: "number", Format: "double"},
						"web_ms":      {Type: "number", Format: "double"},
						"generate_ms": {Type: "number", Format: "double"},
						"total_ms":    {Type: "number", Format: "double"},
					},
				},
				"ChatResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"answer": {
							Type:        "string",
							Description: "The generated answer",
						},
						"sources": {
							Type:        "array",
							Description: "Context snippets used for the answer",
							Items: &OpenAPISchema{
								Ref: "#/components/schemas/Snippet",
							},
						},
						"timings": {
							Ref: "#/components/schemas/Timings",
						},
						"web_fallback_used": {
							Type:        "boolean",
							Description: "Whether the web search fallback ran",
						},
						"top_score": {
							Type:        "number",
							Format:      "double",
							Description: "Best retrieval score before any web fallback",
						},
					},
					Required: []string{"answer"},
				},
				"SearchRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"query": {
							Type:        "string",
							Description: "Query text",
						},
						"namespace": {
							Type:        "string",
							Description: "Target namespace, defaults to the configured one",
						},
						"top_k": {
							Type:        "integer",
							Description: "Number of results to return",
							Default:     5,
						},
						"filters": {
							Type:        "object",
							Description: "Metadata equality filters",
						},
					},
					Required: []string{"query"},
				},
				"SearchHit": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"id": {Type: "string", Description: "Record identifier"},
						"score": {
							Type:        "number",
							Format:      "double",
							Description: "Relevance score",
						},
						"fields": {
							Type:        "object",
							Description: "Record attributes, always including chunk_text",
						},
					},
					Required: []string{"id", "score", "fields"},
				},
				"SearchResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"namespace": {Type: "string"},
						"query":     {Type: "string"},
						"top_k":     {Type: "integer"},
						"hits": {
							Type: "array",
							Items: &OpenAPISchema{
								Ref: "#/components/schemas/SearchHit",
							},
						},
					},
					Required: []string{"namespace", "query", "top_k", "hits"},
				},
				"ErrorResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"error": {
							Ref: "#/components/schemas/ErrorDetail",
						},
					},
					Required: []string{"error"},
				},
				"ErrorDetail": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"code":    {Type: "string", Description: "Error code"},
						"message": {Type: "string", Description: "Error message"},
					},
					Required: []string{"code", "message"},
				},
			},
		},
	}
}
