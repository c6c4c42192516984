package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpus-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagConfig
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			if err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		defaults := config.Default()
		if home, err := os.UserHomeDir(); err == nil {
			defaults.Store.Path = filepath.Join(home, ".corpus", "corpus.db")
		}
		if err := config.Save(path, defaults); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("documents.path        = %s\n", cfg.Documents.Path)
		fmt.Printf("chunking.chunk_size   = %d\n", cfg.Chunking.ChunkSize)
		fmt.Printf("chunking.chunk_overlap = %d\n", cfg.Chunking.ChunkOverlap)
		fmt.Printf("ingestion.workers     = %d\n", cfg.Ingestion.Workers)
		fmt.Printf("ingestion.batch_size  = %d\n", cfg.Ingestion.BatchSize)
		fmt.Printf("retrieval.top_k       = %d\n", cfg.Retrieval.TopK)
		fmt.Printf("retrieval.similarity_threshold = %g\n", cfg.Retrieval.SimilarityThreshold)
		fmt.Printf("store.backend         = %s\n", cfg.Store.Backend)
		fmt.Printf("embedding             = %s/%s\n", cfg.Embedding.Provider, cfg.Embedding.Model)
		fmt.Printf("llm                   = %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
