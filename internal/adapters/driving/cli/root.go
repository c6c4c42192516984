// Package cli implements the corpus command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpus-cli/internal/adapters/driven/ai"
	"github.com/corpusworks/corpus-cli/internal/adapters/driven/vectorstore/chroma"
	"github.com/corpusworks/corpus-cli/internal/adapters/driven/vectorstore/memory"
	"github.com/corpusworks/corpus-cli/internal/adapters/driven/vectorstore/sqlite"
	"github.com/corpusworks/corpus-cli/internal/chunkers"
	"github.com/corpusworks/corpus-cli/internal/config"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
	"github.com/corpusworks/corpus-cli/internal/core/services"
	"github.com/corpusworks/corpus-cli/internal/loaders"
	"github.com/corpusworks/corpus-cli/internal/logger"
	"golang.org/x/time/rate"
)

var (
	flagVerbose bool
	flagConfig  string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Index office documents and search them with hybrid retrieval",
	Long: `corpus ingests PDF, Word, Excel and CSV files into a vector store
and answers queries by combining literal identifier matching with
semantic similarity search.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetVerbose(flagVerbose)
		path := flagConfig
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			if err != nil {
				return err
			}
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Debug("config loaded from %s (store backend %s)", path, cfg.Store.Backend)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.corpus/config.toml)")
}

// ExecuteContext runs the command tree.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// buildStore wires the configured backend behind the vector store port.
// The embedding provider is pinged first so misconfiguration surfaces
// before any documents are touched.
func buildStore(ctx context.Context) (driven.VectorStore, error) {
	embedder, err := ai.CreateAndValidateEmbedding(ctx, ai.EmbeddingConfig{
		Provider: ai.Provider(cfg.Embedding.Provider),
		Model:    cfg.Embedding.Model,
		APIKey:   cfg.Embedding.ResolveAPIKey(),
		BaseURL:  cfg.Embedding.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case "sqlite", "":
		return sqlite.NewStore(cfg.Store.Path, embedder)
	case "chroma":
		return chroma.NewStore(chroma.Config{
			BaseURL:    cfg.Store.ChromaURL,
			Collection: cfg.Store.Collection,
		}, embedder)
	case "memory":
		return memory.NewStore(embedder), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildPipeline wires the ingestion pipeline over the store. baseDir is
// the document root used for relative paths and categories.
func buildPipeline(store driven.VectorStore, baseDir string) *services.IngestionPipeline {
	registry := loaders.NewRegistry(loaders.Options{
		ExcelRowsPerChunk: cfg.Chunking.ExcelRowsPerChunk,
		ExcelSummaries:    cfg.Chunking.ExcelSummaries,
	})
	splitter := chunkers.NewSemanticChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	enricher := chunkers.NewEnricher(baseDir)
	return services.NewIngestionPipeline(store, registry, splitter, enricher, services.IngestConfig{
		Workers:        cfg.Ingestion.Workers,
		BatchSize:      cfg.Ingestion.BatchSize,
		SkipExisting:   cfg.Ingestion.SkipExisting,
		Extensions:     cfg.Documents.Extensions,
		EmbedRateLimit: rate.Limit(cfg.Ingestion.EmbedRatePerSec),
	})
}

func buildRetriever(store driven.VectorStore) *services.HybridRetriever {
	return services.NewHybridRetriever(store, services.RetrieveConfig{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		ExactScanLimit:      cfg.Retrieval.ExactScanLimit,
	})
}

// documentRoot resolves the directory argument against the config.
func documentRoot(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Documents.Path != "" {
		return cfg.Documents.Path, nil
	}
	return "", fmt.Errorf("no directory given and documents.path is not configured")
}
