//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateGeneration()...)
	errs = append(errs, c.validateDefaults()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.MaxConcurrent < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.max_concurrent",
			Message: "must not be negative",
		})
	}

	if c.RateLimitEnabled() && c.Server.RateLimit.RequestsPerMinute < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit.requests_per_minute",
			Message: "must be at least 1 when rate limiting is enabled",
		})
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(expandPath(c.Server.TLS.CertFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.CertFile),
			})
		}

		if c.Server.TLS.KeyFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(expandPath(c.Server.TLS.KeyFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.KeyFile),
			})
		}
	}

	return errs
}

// validateRetrieval validates the retrieval backend configuration.
func (c *Config) validateRetrieval() ValidationErrors {
	var errs ValidationErrors

	switch c.Retrieval.Backend {
	case "pinecone":
		if c.Retrieval.Pinecone.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "retrieval.pinecone.host",
				Message: "required for the pinecone backend",
			})
		} else if !strings.HasPrefix(c.Retrieval.Pinecone.Host, "http://") &&
			!strings.HasPrefix(c.Retrieval.Pinecone.Host, "https://") {
			errs = append(errs, ValidationError{
				Field:   "retrieval.pinecone.host",
				Message: "must be a full URL including scheme",
			})
		}
	case "postgres":
		pg := c.Retrieval.Postgres
		if pg.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "retrieval.postgres.host",
				Message: "required for the postgres backend",
			})
		}
		if pg.Database == "" {
			errs = append(errs, ValidationError{
				Field:   "retrieval.postgres.database",
				Message: "required for the postgres backend",
			})
		}
		if pg.Table.Table == "" {
			errs = append(errs, ValidationError{
				Field:   "retrieval.postgres.table.table",
				Message: "required for the postgres backend",
			})
		}
		if pg.Table.TextColumn == "" {
			errs = append(errs, ValidationError{
				Field:   "retrieval.postgres.table.text_column",
				Message: "required for the postgres backend",
			})
		}
		if pg.Table.VectorColumn == "" {
			errs = append(errs, ValidationError{
				Field:   "retrieval.postgres.table.vector_column",
				Message: "required for the postgres backend",
			})
		}
		if p := strings.ToLower(pg.Embedding.Provider); p != "" && p != "openai" {
			errs = append(errs, ValidationError{
				Field:   "retrieval.postgres.embedding.provider",
				Message: fmt.Sprintf("unsupported provider: %s (must be openai)", p),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "retrieval.backend",
			Message: fmt.Sprintf("unsupported backend: %s (must be pinecone or postgres)", c.Retrieval.Backend),
		})
	}

	return errs
}

// validateGeneration validates the generation provider configuration.
func (c *Config) validateGeneration() ValidationErrors {
	var errs ValidationErrors

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "generation.temperature",
			Message: "must be between 0 and 2",
		})
	}
	if c.Generation.MaxTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "generation.max_tokens",
			Message: "must not be negative",
		})
	}
	if c.Generation.TimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "generation.timeout_seconds",
			Message: "must be at least 1",
		})
	}
	if c.Generation.MaxRetries < 1 {
		errs = append(errs, ValidationError{
			Field:   "generation.max_retries",
			Message: "must be at least 1",
		})
	}

	return errs
}

// validateDefaults validates the per-request defaults.
func (c *Config) validateDefaults() ValidationErrors {
	var errs ValidationErrors

	if c.Defaults.TopK < 1 || c.Defaults.TopK > MaxTopK {
		errs = append(errs, ValidationError{
			Field:   "defaults.top_k",
			Message: fmt.Sprintf("must be between 1 and %d", MaxTopK),
		})
	}
	if c.Defaults.MinScore < 0 || c.Defaults.MinScore > 1 {
		errs = append(errs, ValidationError{
			Field:   "defaults.min_score",
			Message: "must be between 0 and 1",
		})
	}
	if c.Defaults.MaxWebResults < 1 || c.Defaults.MaxWebResults > MaxWebResultsCap {
		errs = append(errs, ValidationError{
			Field:   "defaults.max_web_results",
			Message: fmt.Sprintf("must be between 1 and %d", MaxWebResultsCap),
		})
	}

	return errs
}
