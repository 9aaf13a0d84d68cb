//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ragworks/rag-chat-server/internal/config"
	"github.com/ragworks/rag-chat-server/internal/llm/factory"
	"github.com/ragworks/rag-chat-server/internal/metrics"
	"github.com/ragworks/rag-chat-server/internal/pipeline"
	"github.com/ragworks/rag-chat-server/internal/resilience"
	"github.com/ragworks/rag-chat-server/internal/server"
	"github.com/ragworks/rag-chat-server/internal/vector"
	"github.com/ragworks/rag-chat-server/internal/vector/pinecone"
	"github.com/ragworks/rag-chat-server/internal/vector/postgres"
	"github.com/ragworks/rag-chat-server/internal/websearch"
	"github.com/ragworks/rag-chat-server/internal/websearch/tavily"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help message")
		showOpenAPI = flag.Bool("openapi", false, "Output OpenAPI specification and exit")
		configPath  = flag.String("config", "", "Path to configuration file")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `RAG Chat Server - Retrieval-augmented question answering

Usage:
    rag-chat-server [options]

Options:
    -config string
        Path to configuration file. If not specified, searches:
        1. /etc/ragworks/rag-chat-server.yaml
        2. rag-chat-server.yaml (in binary directory)

    -openapi
        Output OpenAPI v3 specification as JSON and exit

    -version
        Show version information and exit

    -help
        Show this help message and exit
`)
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("RAG Chat Server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Build Time: %s\n", buildTime)
		fmt.Printf("  Git Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	if *showOpenAPI {
		spec := server.BuildOpenAPISpec(version)
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(spec); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode OpenAPI spec: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Run the server
	if err := run(*configPath, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("configuration loaded",
		"retrieval_backend", cfg.Retrieval.Backend,
		"namespace", cfg.Retrieval.Namespace)

	keys, err := config.NewAPIKeyLoader(cfg.APIKeys).LoadKeys(cfg)
	if err != nil {
		return fmt.Errorf("failed to load API keys: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	searcher, retrievalService, err := newSearcher(ctx, cfg, keys)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to create retrieval backend: %w", err)
	}

	completer, err := factory.NewCompletionProvider(cfg.Generation, keys.Groq)
	if err != nil {
		searcher.Close()
		return fmt.Errorf("failed to create completion provider: %w", err)
	}

	var webTool websearch.Tool
	if keys.Tavily != "" {
		webTool = tavily.NewClient(keys.Tavily)
	} else {
		logger.Warn("Tavily API key not configured, web search fallback disabled")
	}

	policy := resilience.DefaultPolicy()
	policy.MaxAttempts = cfg.Generation.MaxRetries

	agg := metrics.NewAggregator()
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Searcher:         searcher,
		Completer:        completer,
		WebTool:          webTool,
		Policy:           policy,
		TextField:        cfg.Retrieval.TextField,
		RetrievalService: retrievalService,
		Logger:           logger,
	})
	svc := pipeline.NewService(pipeline.ServiceConfig{
		Orchestrator:  orch,
		Searcher:      searcher,
		Metrics:       agg,
		Namespace:     cfg.Retrieval.Namespace,
		TextField:     cfg.Retrieval.TextField,
		Defaults:      cfg.Defaults,
		CacheEnabled:  cfg.CacheEnabled(),
		MaxConcurrent: cfg.Server.MaxConcurrent,
		Logger:        logger,
	})
	defer svc.Close()

	// Create and start server
	srv := server.New(cfg, svc, agg, version, logger)

	// Handle graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return err
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal", "signal", sig)

		// Give 30 seconds for graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(ctx)
	}
}

// newSearcher builds the configured retrieval backend and its service
// name for upstream error reporting.
func newSearcher(
	ctx context.Context,
	cfg *config.Config,
	keys *config.LoadedKeys,
) (vector.Searcher, string, error) {
	switch cfg.Retrieval.Backend {
	case "pinecone":
		client := pinecone.NewClient(keys.Pinecone, cfg.Retrieval.Pinecone.Host,
			pinecone.WithTimeout(cfg.Retrieval.Pinecone.TimeoutSeconds))
		return pinecone.NewSearcher(client, cfg.Retrieval.TextField), "Pinecone", nil

	case "postgres":
		embedder, err := factory.NewEmbeddingProvider(
			cfg.Retrieval.Postgres.Embedding, keys.OpenAI)
		if err != nil {
			return nil, "", err
		}
		store, err := postgres.NewStore(ctx, cfg.Retrieval.Postgres,
			cfg.Retrieval.TextField, embedder)
		if err != nil {
			return nil, "", err
		}
		return store, "PostgreSQL", nil

	default:
		return nil, "", fmt.Errorf("unsupported retrieval backend: %s",
			cfg.Retrieval.Backend)
	}
}
