package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := buildStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Backend: %s\n", stats.Backend)
		fmt.Printf("Chunks:  %d\n", stats.Count)
		if len(stats.DocTypes) > 0 {
			fmt.Println("Types:")
			types := make([]string, 0, len(stats.DocTypes))
			for t := range stats.DocTypes {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Printf("  %-8s %d\n", t, stats.DocTypes[t])
			}
		}
		fmt.Printf("\nChunk size: %d (overlap %d)\n", cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
		fmt.Printf("Embedding:  %s/%s\n", cfg.Embedding.Provider, cfg.Embedding.Model)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
