//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package postgres provides a pgvector-backed vector.Searcher. Unlike the
// Pinecone backend, query embeddings are computed locally through an
// llm.EmbeddingProvider before the similarity query runs.
package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragworks/rag-chat-server/internal/config"
	"github.com/ragworks/rag-chat-server/internal/llm"
	"github.com/ragworks/rag-chat-server/internal/vector"
)

// Store wraps a pgxpool connection pool and an embedding provider.
type Store struct {
	pool      *pgxpool.Pool
	cfg       config.PostgresConfig
	textField string
	embedder  llm.EmbeddingProvider
}

// NewStore creates a new pgvector-backed store and verifies connectivity.
// textField names the hit attribute the chunk text is returned under, so
// hits carry the same shape as the other backends.
func NewStore(
	ctx context.Context,
	cfg config.PostgresConfig,
	textField string,
	embedder llm.EmbeddingProvider,
) (*Store, error) {
	connStr := buildConnectionString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if textField == "" {
		textField = "chunk_text"
	}

	return &Store{
		pool:      pool,
		cfg:       cfg,
		textField: textField,
		embedder:  embedder,
	}, nil
}

// buildConnectionString constructs a PostgreSQL connection string.
func buildConnectionString(cfg config.PostgresConfig) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("host=%s", cfg.Host))
	parts = append(parts, fmt.Sprintf("port=%d", cfg.Port))
	parts = append(parts, fmt.Sprintf("dbname=%s", cfg.Database))

	// Username: config > PGUSER > USER
	username := cfg.Username
	if username == "" {
		username = os.Getenv("PGUSER")
	}
	if username == "" {
		username = os.Getenv("USER")
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", username))
	}

	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}

	if cfg.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", cfg.SSLMode))
	}

	return strings.Join(parts, " ")
}

// parseTableIdentifier splits a table name into schema and table parts.
// Supports formats: "table", "schema.table"
func parseTableIdentifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	return pgx.Identifier(parts)
}

// formatVector converts a float32 slice to pgvector string format [x,y,z,...].
func formatVector(embedding []float32) string {
	strs := make([]string, len(embedding))
	for i, v := range embedding {
		strs[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(strs, ",") + "]"
}

// Search embeds the query and runs a cosine-similarity search against the
// configured table. Filter keys are matched against column names; values
// are always passed as query parameters.
func (s *Store) Search(
	ctx context.Context,
	namespace, query string,
	topK int,
	filters map[string]any,
) ([]vector.Hit, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	table := s.cfg.Table
	selectCols := []string{
		pgx.Identifier{table.TextColumn}.Sanitize(),
	}
	titleExpr := "''"
	if table.TitleColumn != "" {
		titleExpr = pgx.Identifier{table.TitleColumn}.Sanitize()
	}
	urlExpr := "''"
	if table.URLColumn != "" {
		urlExpr = pgx.Identifier{table.URLColumn}.Sanitize()
	}
	idExpr := "ctid::text"
	if table.IDColumn != "" {
		idExpr = pgx.Identifier{table.IDColumn}.Sanitize() + "::text"
	}
	selectCols = append(selectCols, titleExpr, urlExpr, idExpr)

	// The <=> operator returns cosine distance; subtract from 1 for
	// similarity.
	vecCol := pgx.Identifier{table.VectorColumn}.Sanitize()
	args := []interface{}{formatVector(embedding), topK}

	var conditions []string
	if table.NamespaceColumn != "" && namespace != "" {
		args = append(args, namespace)
		conditions = append(conditions, fmt.Sprintf("%s = $%d",
			pgx.Identifier{table.NamespaceColumn}.Sanitize(), len(args)))
	}
	for column, value := range filters {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d",
			pgx.Identifier{column}.Sanitize(), len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	sql := fmt.Sprintf(`
		SELECT
			%s AS content,
			%s AS title,
			%s AS url,
			%s AS id,
			1 - (%s <=> $1::vector) AS score
		FROM %s%s
		ORDER BY %s <=> $1::vector
		LIMIT $2`,
		selectCols[0], selectCols[1], selectCols[2], selectCols[3],
		vecCol,
		parseTableIdentifier(table.Table).Sanitize(),
		whereClause,
		vecCol,
	)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	sourceLabel := table.SourceLabel
	if sourceLabel == "" {
		sourceLabel = "postgres"
	}

	var hits []vector.Hit
	for rows.Next() {
		var content, title, url, id string
		var score float64
		if err := rows.Scan(&content, &title, &url, &id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, vector.Hit{
			ID:     id,
			Score:  score,
			Fields: s.rowFields(content, title, url, sourceLabel),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return hits, nil
}

// rowFields builds a hit's attribute map. Text is keyed by the configured
// text field so downstream remapping finds it regardless of configuration.
func (s *Store) rowFields(content, title, url, sourceLabel string) map[string]any {
	return map[string]any{
		s.textField: content,
		"title":     title,
		"url":       url,
		"source":    sourceLabel,
	}
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ensure Store implements the interface.
var _ vector.Searcher = (*Store)(nil)
