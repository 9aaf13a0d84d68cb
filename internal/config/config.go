//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// RAG Chat Server.
package config

// Config is the root configuration structure for the server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	APIKeys    APIKeysConfig    `yaml:"api_keys"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	WebSearch  WebSearchConfig  `yaml:"web_search"`
	Cache      CacheConfig      `yaml:"cache"`
	Defaults   Defaults         `yaml:"defaults"`
}

// APIKeysConfig contains paths to files containing API keys for external
// providers. If not specified, keys are loaded from environment variables
// or default file locations (~/.pinecone-api-key, ~/.groq-api-key, ...).
type APIKeysConfig struct {
	Pinecone string `yaml:"pinecone"` // Path to file containing Pinecone API key
	Groq     string `yaml:"groq"`     // Path to file containing Groq API key
	Tavily   string `yaml:"tavily"`   // Path to file containing Tavily API key
	OpenAI   string `yaml:"openai"`   // Path to file containing OpenAI API key
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress string          `yaml:"listen_address"`
	Port          int             `yaml:"port"`
	TLS           TLSConfig       `yaml:"tls"`
	CORS          CORSConfig      `yaml:"cors"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`

	// MaxConcurrent bounds the number of pipeline runs in flight at
	// once. Zero means no bound.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// RateLimitConfig contains per-client request rate limit settings.
type RateLimitConfig struct {
	Enabled           *bool `yaml:"enabled"`             // Default: true
	RequestsPerMinute int   `yaml:"requests_per_minute"` // Default: 30
}

// RetrievalConfig selects and configures the vector search backend.
type RetrievalConfig struct {
	// Backend is "pinecone" or "postgres".
	Backend string `yaml:"backend"`

	// Namespace is the default namespace searched when a request does
	// not name one.
	Namespace string `yaml:"namespace"`

	// TextField names the record attribute holding the chunk text.
	TextField string `yaml:"text_field"`

	Pinecone PineconeConfig `yaml:"pinecone"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PineconeConfig contains Pinecone index settings.
type PineconeConfig struct {
	// Host is the index data-plane host URL, e.g.
	// https://my-index-abc123.svc.aped-4627-b74a.pinecone.io
	Host string `yaml:"host"`

	// IndexName is informational; requests go to Host directly.
	IndexName string `yaml:"index_name"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// PostgresConfig contains PostgreSQL connection and table settings for the
// pgvector backend.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	Table TableConfig `yaml:"table"`

	// Embedding selects the provider used to embed queries locally.
	Embedding LLMConfig `yaml:"embedding"`
}

// TableConfig defines the table holding document chunks and embeddings.
type TableConfig struct {
	Table           string `yaml:"table"`
	TextColumn      string `yaml:"text_column"`
	VectorColumn    string `yaml:"vector_column"`
	IDColumn        string `yaml:"id_column"`        // Optional; ctid is used if empty
	TitleColumn     string `yaml:"title_column"`     // Optional
	URLColumn       string `yaml:"url_column"`       // Optional
	NamespaceColumn string `yaml:"namespace_column"` // Optional namespace restriction
	SourceLabel     string `yaml:"source_label"`     // Label attached to hits
}

// LLMConfig contains settings for an LLM provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// GenerationConfig contains settings for the answer generation provider.
type GenerationConfig struct {
	// BaseURL overrides the OpenAI-compatible endpoint. Empty means the
	// Groq default.
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`

	// MaxRetries is the total number of attempts made for each upstream
	// call, including the first.
	MaxRetries int `yaml:"max_retries"`
}

// WebSearchConfig contains settings for the web search fallback.
type WebSearchConfig struct {
	// MaxResults caps web results fetched per request.
	MaxResults int `yaml:"max_results"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	Enabled *bool `yaml:"enabled"` // Default: true
}

// Defaults contains per-request default values.
type Defaults struct {
	TopK          int     `yaml:"top_k"`
	MinScore      float64 `yaml:"min_score"`
	MaxWebResults int     `yaml:"max_web_results"`
}

// Request parameter caps.
const (
	MaxTopK          = 100
	MaxWebResultsCap = 20
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	rateLimitOn := true
	cacheOn := true
	return &Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			Port:          8080,
			TLS: TLSConfig{
				Enabled: false,
			},
			RateLimit: RateLimitConfig{
				Enabled:           &rateLimitOn,
				RequestsPerMinute: 30,
			},
			MaxConcurrent: 64,
		},
		Retrieval: RetrievalConfig{
			Backend:   "pinecone",
			TextField: "chunk_text",
		},
		Generation: GenerationConfig{
			Model:          "llama-3.1-8b-instant",
			Temperature:    0.2,
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
		WebSearch: WebSearchConfig{
			MaxResults: 5,
		},
		Cache: CacheConfig{
			Enabled: &cacheOn,
		},
		Defaults: Defaults{
			TopK:          5,
			MinScore:      0.25,
			MaxWebResults: 5,
		},
	}
}

// RateLimitEnabled reports whether per-client rate limiting is on.
func (c *Config) RateLimitEnabled() bool {
	return c.Server.RateLimit.Enabled == nil || *c.Server.RateLimit.Enabled
}

// CacheEnabled reports whether the response cache is on.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled == nil || *c.Cache.Enabled
}
