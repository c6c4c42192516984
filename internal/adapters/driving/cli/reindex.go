package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex <file>",
	Short: "Remove a file's stored chunks and ingest it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := buildStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		pipeline := buildPipeline(store, cfg.Documents.Path)
		res, err := pipeline.Reindex(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Removed:  %d chunks\n", res.Deleted)
		switch res.File.Status {
		case driving.FileIngested:
			fmt.Printf("Added:    %d chunks\n", res.File.ChunksAdded)
		case driving.FileSkipped:
			fmt.Println("Added:    0 chunks (already indexed)")
		default:
			return fmt.Errorf("reindex %s: %w", res.File.Path, res.File.Err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
