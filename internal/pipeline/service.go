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
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ragworks/rag-chat-server/internal/cache"
	"github.com/ragworks/rag-chat-server/internal/config"
	"github.com/ragworks/rag-chat-server/internal/metrics"
	"github.com/ragworks/rag-chat-server/internal/resilience"
	"github.com/ragworks/rag-chat-server/internal/vector"
)

// Response cache sizing. Both caches share the TTL; search responses are
// smaller so that cache holds more entries.
const (
	cacheTTL        = 60 * time.Second
	searchCacheSize = 1024
	chatCacheSize   = 512
)

// ServiceConfig wires the service's collaborators.
type ServiceConfig struct {
	Orchestrator *Orchestrator
	Searcher     vector.Searcher
	Metrics      *metrics.Aggregator

	// Namespace is the default namespace when a request names none.
	Namespace string

	// TextField names the record attribute holding chunk text.
	TextField string

	Defaults config.Defaults

	// CacheEnabled toggles both response caches.
	CacheEnabled bool

	// MaxConcurrent bounds pipeline runs in flight. Zero means no bound.
	MaxConcurrent int

	Logger *slog.Logger
}

// Service is the request-facing layer over the orchestrator. It applies
// request defaults, serves and fills the response caches, records timing
// metrics, and bounds concurrent pipeline runs.
type Service struct {
	orch        *Orchestrator
	searcher    vector.Searcher
	metrics     *metrics.Aggregator
	chatCache   *cache.Store
	searchCache *cache.Store
	sem         *semaphore.Weighted
	namespace   string
	textField   string
	defaults    config.Defaults
	logger      *slog.Logger
}

// NewService creates the service.
func NewService(cfg ServiceConfig) *Service {
	textField := cfg.TextField
	if textField == "" {
		textField = "chunk_text"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sem *semaphore.Weighted
	if cfg.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}

	return &Service{
		orch:        cfg.Orchestrator,
		searcher:    cfg.Searcher,
		metrics:     cfg.Metrics,
		chatCache:   cache.New(cacheTTL, chatCacheSize, cfg.CacheEnabled),
		searchCache: cache.New(cacheTTL, searchCacheSize, cfg.CacheEnabled),
		sem:         sem,
		namespace:   cfg.Namespace,
		textField:   textField,
		defaults:    cfg.Defaults,
		logger:      logger,
	}
}

// normalize resolves a chat request against the configured defaults.
func (s *Service) normalize(req ChatRequest) Params {
	p := Params{
		Query:         req.Query,
		Namespace:     req.Namespace,
		TopK:          req.TopK,
		MinScore:      s.defaults.MinScore,
		UseWeb:        true,
		MaxWebResults: req.MaxWebResults,
		History:       nil,
	}

	if p.Namespace == "" {
		p.Namespace = s.namespace
	}
	if p.TopK <= 0 {
		p.TopK = s.defaults.TopK
	}
	if req.MinScore != nil {
		p.MinScore = *req.MinScore
	}
	if req.UseWebFallback != nil {
		p.UseWeb = *req.UseWebFallback
	}
	if p.MaxWebResults <= 0 {
		p.MaxWebResults = s.defaults.MaxWebResults
	}

	for _, m := range req.ChatHistory {
		if m.Content == "" {
			continue
		}
		p.History = append(p.History, m)
	}

	return p
}

// Chat answers a question through the pipeline. Responses for
// history-free requests are cached; a hit returns the original response
// and replays its timings into the metrics aggregator.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p := s.normalize(req)

	useCache := s.chatCache.Enabled() && len(p.History) == 0
	key := cache.ChatKey(p.Namespace, p.Query, p.TopK, p.MinScore, p.UseWeb)

	if useCache {
		if v, ok := s.chatCache.Get(key); ok {
			resp := v.(*ChatResponse)
			s.logger.Info("serving chat response from cache",
				"namespace", p.Namespace, "query", p.Query)
			if s.metrics != nil {
				s.metrics.RecordTimings(resp.Timings.Sample())
			}
			return resp, nil
		}
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	start := time.Now()
	resp, err := s.orch.Run(ctx, p)
	if err != nil {
		return nil, err
	}
	resp.Timings.TotalMS = msSince(start)

	s.logger.Info("chat request completed",
		"namespace", p.Namespace,
		"web_fallback_used", resp.WebFallbackUsed,
		"retrieve_ms", resp.Timings.RetrieveMS,
		"web_ms", resp.Timings.WebMS,
		"generate_ms", resp.Timings.GenerateMS,
		"total_ms", resp.Timings.TotalMS,
	)

	if s.metrics != nil {
		s.metrics.RecordTimings(resp.Timings.Sample())
	}
	if useCache {
		s.chatCache.Put(key, resp)
	}

	return resp, nil
}

// Search runs a raw semantic search, bypassing decision and generation.
// Responses are cached on the full request fingerprint.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	namespace := req.Namespace
	if namespace == "" {
		namespace = s.namespace
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.defaults.TopK
	}

	key := cache.SearchKey(namespace, req.Query, topK, req.Filters)
	if v, ok := s.searchCache.Get(key); ok {
		s.logger.Info("serving search response from cache",
			"namespace", namespace, "query", req.Query)
		return v.(*SearchResponse), nil
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	hits, err := resilience.Do(ctx, s.orch.retrievalService, s.orch.policy,
		func(ctx context.Context) ([]vector.Hit, error) {
			return s.searcher.Search(ctx, namespace, req.Query, topK, req.Filters)
		})
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Namespace: namespace,
		Query:     req.Query,
		TopK:      topK,
		Hits:      s.mapSearchHits(hits),
	}

	s.searchCache.Put(key, resp)
	return resp, nil
}

// mapSearchHits remaps the configured text field into a stable
// chunk_text key on each hit.
func (s *Service) mapSearchHits(hits []vector.Hit) []SearchHit {
	mapped := make([]SearchHit, 0, len(hits))
	for _, hit := range hits {
		fields := make(map[string]any, len(hit.Fields)+1)
		for k, v := range hit.Fields {
			fields[k] = v
		}

		text := fields[s.textField]
		if s.textField != "chunk_text" {
			delete(fields, s.textField)
		}
		if text == nil {
			text = ""
		}
		fields["chunk_text"] = text

		mapped = append(mapped, SearchHit{
			ID:     hit.ID,
			Score:  hit.Score,
			Fields: fields,
		})
	}
	return mapped
}

// CacheStats is the hit/miss counters of both response caches.
type CacheStats struct {
	Chat   cache.Stats `json:"chat"`
	Search cache.Stats `json:"search"`
}

// MetricsReport is the full metrics snapshot exposed by the server.
type MetricsReport struct {
	metrics.Snapshot
	Cache CacheStats `json:"cache"`
}

// MetricsReport composes the aggregator snapshot with cache counters.
func (s *Service) MetricsReport() MetricsReport {
	report := MetricsReport{
		Cache: CacheStats{
			Chat:   s.chatCache.Stats(),
			Search: s.searchCache.Stats(),
		},
	}
	if s.metrics != nil {
		report.Snapshot = s.metrics.Snapshot()
	}
	return report
}

// WebAvailable reports whether the web search fallback is configured.
func (s *Service) WebAvailable() bool {
	return s.orch.WebAvailable()
}

// Close releases the retrieval backend.
func (s *Service) Close() {
	if s.searcher != nil {
		s.searcher.Close()
	}
}

func (s *Service) acquire(ctx context.Context) error {
	if s.sem == nil {
		return nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire pipeline slot: %w", err)
	}
	return nil
}

func (s *Service) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}
