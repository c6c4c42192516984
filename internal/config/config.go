// Package config loads and validates the corpus configuration file, a
// TOML document at ~/.corpus/config.toml by default. Missing files and
// missing keys fall back to defaults so the tool works out of the box.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration.
type Config struct {
	Documents DocumentsConfig `toml:"documents"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Ingestion IngestionConfig `toml:"ingestion"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Store     StoreConfig     `toml:"store"`
	Embedding ProviderConfig  `toml:"embedding"`
	LLM       ProviderConfig  `toml:"llm"`
}

// DocumentsConfig locates the document corpus.
type DocumentsConfig struct {
	// Path is the document root. Commands that take a directory
	// argument fall back to it.
	Path string `toml:"path"`

	// Extensions restricts ingestion to these file types. Empty means
	// every supported type.
	Extensions []string `toml:"extensions"`
}

// ChunkingConfig tunes the chunkers.
type ChunkingConfig struct {
	ChunkSize         int  `toml:"chunk_size"`
	ChunkOverlap      int  `toml:"chunk_overlap"`
	ExcelRowsPerChunk int  `toml:"excel_rows_per_chunk"`
	ExcelSummaries    bool `toml:"excel_summaries"`
}

// IngestionConfig tunes the pipeline.
type IngestionConfig struct {
	Workers         int     `toml:"workers"`
	BatchSize       int     `toml:"batch_size"`
	SkipExisting    bool    `toml:"skip_existing"`
	EmbedRatePerSec float64 `toml:"embed_rate_per_sec"`
}

// RetrievalConfig tunes the hybrid retriever.
type RetrievalConfig struct {
	TopK                int     `toml:"top_k"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	ExactScanLimit      int     `toml:"exact_scan_limit"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	// Backend is one of sqlite, chroma or memory.
	Backend string `toml:"backend"`

	// Path is the database file for the sqlite backend.
	Path string `toml:"path"`

	// ChromaURL is the server URL for the chroma backend.
	ChromaURL string `toml:"chroma_url"`

	// Collection is the chroma collection name.
	Collection string `toml:"collection"`
}

// ProviderConfig selects and configures an AI provider.
type ProviderConfig struct {
	// Provider is one of openai, ollama or anthropic.
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

// ResolveAPIKey returns the configured key, falling back to the
// provider's conventional environment variable.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	switch p.Provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "ollama":
		return ""
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// DefaultPath returns ~/.corpus/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".corpus", "config.toml"), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Chunking: ChunkingConfig{
			ChunkSize:         800,
			ChunkOverlap:      200,
			ExcelRowsPerChunk: 50,
			ExcelSummaries:    true,
		},
		Ingestion: IngestionConfig{
			Workers:      4,
			BatchSize:    50,
			SkipExisting: true,
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			SimilarityThreshold: 0.35,
			ExactScanLimit:      500,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			ChromaURL:  "http://localhost:8000",
			Collection: "corpus",
		},
		Embedding: ProviderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		LLM: ProviderConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
	}
}

// Load reads the config at path, layered over the defaults. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if home, err := os.UserHomeDir(); err == nil {
		cfg.Store.Path = filepath.Join(home, ".corpus", "corpus.db")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating the directory with owner
// only permissions since it may hold API keys.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate range-checks the tunables.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize < 1 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ExcelRowsPerChunk < 1 {
		return fmt.Errorf("chunking.excel_rows_per_chunk must be positive, got %d", c.Chunking.ExcelRowsPerChunk)
	}
	if c.Ingestion.Workers < 1 || c.Ingestion.Workers > 32 {
		return fmt.Errorf("ingestion.workers must be in [1, 32], got %d", c.Ingestion.Workers)
	}
	if c.Ingestion.BatchSize < 1 {
		return fmt.Errorf("ingestion.batch_size must be positive, got %d", c.Ingestion.BatchSize)
	}
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 20 {
		return fmt.Errorf("retrieval.top_k must be in [1, 20], got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be in [0, 1], got %g", c.Retrieval.SimilarityThreshold)
	}
	if c.Retrieval.ExactScanLimit < 1 {
		return fmt.Errorf("retrieval.exact_scan_limit must be positive, got %d", c.Retrieval.ExactScanLimit)
	}
	switch c.Store.Backend {
	case "sqlite", "chroma", "memory":
	default:
		return fmt.Errorf("store.backend must be sqlite, chroma or memory, got %q", c.Store.Backend)
	}
	return nil
}
