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

// Environment variable names for API keys.
const (
	EnvPineconeAPIKey = "PINECONE_API_KEY"
	EnvGroqAPIKey     = "GROQ_API_KEY"
	EnvTavilyAPIKey   = "TAVILY_API_KEY"
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
)

// Default API key file paths (relative to home directory).
const (
	DefaultPineconeKeyFile = ".pinecone-api-key"
	DefaultGroqKeyFile     = ".groq-api-key"
	DefaultTavilyKeyFile   = ".tavily-api-key"
	DefaultOpenAIKeyFile   = ".openai-api-key"
)

// LoadedKeys holds all loaded API keys. Tavily is empty when web search is
// not configured.
type LoadedKeys struct {
	Pinecone string
	Groq     string
	Tavily   string
	OpenAI   string
}

// APIKeyLoader handles loading API keys from configured paths, environment
// variables, or default file locations.
type APIKeyLoader struct {
	config APIKeysConfig
}

// NewAPIKeyLoader creates a new API key loader with the given configuration.
func NewAPIKeyLoader(cfg APIKeysConfig) *APIKeyLoader {
	return &APIKeyLoader{config: cfg}
}

// LoadPineconeKey loads the Pinecone API key.
func (l *APIKeyLoader) LoadPineconeKey() (string, error) {
	return l.loadKey(
		l.config.Pinecone,
		EnvPineconeAPIKey,
		DefaultPineconeKeyFile,
		"Pinecone",
	)
}

// LoadGroqKey loads the Groq API key.
func (l *APIKeyLoader) LoadGroqKey() (string, error) {
	return l.loadKey(
		l.config.Groq,
		EnvGroqAPIKey,
		DefaultGroqKeyFile,
		"Groq",
	)
}

// LoadTavilyKey loads the Tavily API key. A missing key is not an error;
// it returns an empty string, and web search is treated as unavailable.
func (l *APIKeyLoader) LoadTavilyKey() (string, error) {
	key, err := l.loadKey(
		l.config.Tavily,
		EnvTavilyAPIKey,
		DefaultTavilyKeyFile,
		"Tavily",
	)
	if err != nil {
		// Only an explicitly configured path is required to exist.
		if l.config.Tavily != "" {
			return "", err
		}
		return "", nil
	}
	return key, nil
}

// LoadOpenAIKey loads the OpenAI API key.
func (l *APIKeyLoader) LoadOpenAIKey() (string, error) {
	return l.loadKey(
		l.config.OpenAI,
		EnvOpenAIAPIKey,
		DefaultOpenAIKeyFile,
		"OpenAI",
	)
}

// LoadKeys loads the API keys required by the configuration: Pinecone or
// OpenAI depending on the retrieval backend, Groq always, Tavily if
// available.
func (l *APIKeyLoader) LoadKeys(cfg *Config) (*LoadedKeys, error) {
	keys := &LoadedKeys{}

	switch cfg.Retrieval.Backend {
	case "pinecone":
		key, err := l.LoadPineconeKey()
		if err != nil {
			return nil, err
		}
		keys.Pinecone = key
	case "postgres":
		key, err := l.LoadOpenAIKey()
		if err != nil {
			return nil, err
		}
		keys.OpenAI = key
	}

	groqKey, err := l.LoadGroqKey()
	if err != nil {
		return nil, err
	}
	keys.Groq = groqKey

	tavilyKey, err := l.LoadTavilyKey()
	if err != nil {
		return nil, err
	}
	keys.Tavily = tavilyKey

	return keys, nil
}

// loadKey loads an API key with the following priority:
// 1. Configured file path (if specified in config)
// 2. Environment variable
// 3. Default file location (~/.provider-api-key)
func (l *APIKeyLoader) loadKey(
	configPath, envVar, defaultFile, providerName string,
) (string, error) {
	// Priority 1: Configured file path
	if configPath != "" {
		path := expandPath(configPath)
		return readKeyFile(path, providerName)
	}

	// Priority 2: Environment variable
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}

	// Priority 3: Default file location
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	path := filepath.Join(homeDir, defaultFile)

	// Check if default file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf(
			"%s API key not found: set %s environment variable or create %s",
			providerName, envVar, path)
	}

	return readKeyFile(path, providerName)
}

// readKeyFile reads an API key from a file.
func readKeyFile(path, providerName string) (string, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%s API key file not found: %s", providerName, path)
	}

	// Read the key
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s API key: %w", providerName, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%s API key file is empty: %s", providerName, path)
	}

	return key, nil
}
