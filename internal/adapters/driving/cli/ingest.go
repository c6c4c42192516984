package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
)

var (
	ingestRecursive bool
	ingestTypes     []string
	ingestForce     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index documents from a directory",
	Long: `Ingest walks the directory, loads every supported document, splits it
into chunks and stores them with embeddings. Chunks that are already
indexed are skipped unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := documentRoot(args)
		if err != nil {
			return err
		}

		store, err := buildStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		pipeline := buildPipeline(store, dir)
		stats, err := pipeline.IngestDirectory(cmd.Context(), dir, driving.IngestOptions{
			Recursive:  ingestRecursive,
			Extensions: ingestTypes,
			Force:      ingestForce,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Files:    %d\n", stats.TotalFiles)
		fmt.Printf("Ingested: %d\n", stats.Successful)
		fmt.Printf("Skipped:  %d\n", stats.Skipped)
		fmt.Printf("Failed:   %d\n", stats.Failed)
		fmt.Printf("Chunks:   %d\n", stats.TotalChunks)
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestRecursive, "recursive", true, "descend into subdirectories")
	ingestCmd.Flags().StringSliceVar(&ingestTypes, "types", nil, "file extensions to include (default: all supported)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-ingest chunks that already exist")
	rootCmd.AddCommand(ingestCmd)
}
