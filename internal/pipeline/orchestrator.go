//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/ragworks/rag-chat-server/internal/llm"
	"github.com/ragworks/rag-chat-server/internal/resilience"
	"github.com/ragworks/rag-chat-server/internal/vector"
	"github.com/ragworks/rag-chat-server/internal/websearch"
)

// Params is a fully normalized chat request: every optional field has
// been resolved against the configured defaults.
type Params struct {
	Query         string
	Namespace     string
	TopK          int
	MinScore      float64
	UseWeb        bool
	MaxWebResults int
	History       []Message
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Searcher  vector.Searcher
	Completer llm.CompletionProvider

	// WebTool may be nil, in which case the web fallback never runs.
	WebTool websearch.Tool

	Policy resilience.Policy

	// TextField names the record attribute holding chunk text.
	TextField string

	// RetrievalService names the retrieval backend in upstream errors,
	// e.g. "Pinecone" or "PostgreSQL".
	RetrievalService string

	Logger *slog.Logger
}

// Orchestrator runs the chat flow: retrieve, decide, optional web
// search, generate, format. Each upstream call goes through the retry
// wrapper; a failed stage aborts the run with an error naming the
// upstream service.
type Orchestrator struct {
	searcher         vector.Searcher
	completer        llm.CompletionProvider
	webTool          websearch.Tool
	policy           resilience.Policy
	textField        string
	retrievalService string
	logger           *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	textField := cfg.TextField
	if textField == "" {
		textField = "chunk_text"
	}
	service := cfg.RetrievalService
	if service == "" {
		service = "Pinecone"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		searcher:         cfg.Searcher,
		completer:        cfg.Completer,
		webTool:          cfg.WebTool,
		policy:           cfg.Policy,
		textField:        textField,
		retrievalService: service,
		logger:           logger,
	}
}

// WebAvailable reports whether the web search fallback is configured.
func (o *Orchestrator) WebAvailable() bool {
	return o.webTool != nil
}

// Run executes the pipeline for normalized parameters. The returned
// response has all stage timings filled in except TotalMS, which the
// caller measures around the whole request.
func (o *Orchestrator) Run(ctx context.Context, p Params) (*ChatResponse, error) {
	var timings Timings

	// Retrieve
	start := time.Now()
	hits, err := resilience.Do(ctx, o.retrievalService, o.policy,
		func(ctx context.Context) ([]vector.Hit, error) {
			return o.searcher.Search(ctx, p.Namespace, p.Query, p.TopK, nil)
		})
	timings.RetrieveMS = msSince(start)
	if err != nil {
		return nil, err
	}

	retrieved, topScore := o.mapHits(hits)
	o.logger.Info("retrieval completed",
		"namespace", p.Namespace,
		"top_k", p.TopK,
		"hits", len(retrieved),
		"top_score", topScore,
	)

	// Decide
	useWeb := DecideWebFallback(p.UseWeb, o.WebAvailable(),
		len(retrieved), topScore, p.MinScore)
	o.logger.Info("routing decision",
		"web_fallback", useWeb,
		"tool_available", o.WebAvailable(),
		"retrieved", len(retrieved),
		"top_score", topScore,
		"min_score", p.MinScore,
	)

	// Web search
	var webResults []Snippet
	if useWeb {
		start = time.Now()
		results, err := resilience.Do(ctx, "Tavily", o.policy,
			func(ctx context.Context) ([]websearch.Result, error) {
				return o.webTool.Search(ctx, p.Query, p.MaxWebResults)
			})
		timings.WebMS = msSince(start)
		if err != nil {
			return nil, err
		}

		webResults = mapWebResults(results)
		o.logger.Info("web search completed",
			"results", len(webResults),
			"web_ms", timings.WebMS,
		)
	}

	// Generate
	sources := append(retrieved, webResults...)
	messages := buildMessages(p.History, p.Query, sources)

	start = time.Now()
	completion, err := resilience.Do(ctx, "Groq", o.policy,
		func(ctx context.Context) (*llm.CompletionResponse, error) {
			return o.completer.Complete(ctx, llm.CompletionRequest{
				Messages:    messages,
				Temperature: -1,
			})
		})
	timings.GenerateMS = msSince(start)
	if err != nil {
		return nil, err
	}
	o.logger.Info("answer generation completed", "generate_ms", timings.GenerateMS)

	// Format
	return &ChatResponse{
		Answer:          completion.Content,
		Sources:         sources,
		Timings:         timings,
		WebFallbackUsed: useWeb,
		TopScore:        topScore,
	}, nil
}

// mapHits converts raw vector hits into snippets, remapping the
// configured text field and tracking the best score.
func (o *Orchestrator) mapHits(hits []vector.Hit) ([]Snippet, float64) {
	snippets := make([]Snippet, 0, len(hits))
	topScore := 0.0

	for _, hit := range hits {
		snippet := Snippet{
			Source:    "unknown",
			Score:     hit.Score,
			ChunkText: stringField(hit.Fields, o.textField),
			Title:     stringField(hit.Fields, "title"),
			URL:       stringField(hit.Fields, "url"),
		}
		if s := stringField(hit.Fields, "source"); s != "" {
			snippet.Source = s
		}

		snippets = append(snippets, snippet)
		if hit.Score > topScore {
			topScore = hit.Score
		}
	}

	return snippets, topScore
}

// mapWebResults converts web search results into pseudo-document
// snippets with a synthetic zero score.
func mapWebResults(results []websearch.Result) []Snippet {
	snippets := make([]Snippet, 0, len(results))
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		snippets = append(snippets, Snippet{
			Source:    "web",
			Title:     title,
			URL:       r.URL,
			Score:     0.0,
			ChunkText: r.Content,
		})
	}
	return snippets
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
