package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
)

var (
	searchLimit    int
	searchDocType  string
	searchCategory string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Long: `Search combines exact identifier matching with semantic similarity.
Identifier-like tokens in the query (part numbers, codes) are matched
literally and ranked first; remaining slots are filled by embedding
similarity.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := joinArgs(args)

		store, err := buildStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		retriever := buildRetriever(store)
		results, err := retriever.Retrieve(cmd.Context(), query, driving.RetrieveOptions{
			TopK:     searchLimit,
			DocType:  searchDocType,
			Category: searchCategory,
		})
		if err != nil {
			return err
		}

		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for i, res := range results {
			printResult(i+1, res)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default from config)")
	searchCmd.Flags().StringVar(&searchDocType, "type", "", "restrict to a document type (pdf, docx, excel, csv)")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "restrict to a category")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func printResult(rank int, res domain.RetrievalResult) {
	source := domain.MetaStringOf(res.Metadata, domain.MetaFilename)
	if source == "" {
		source = domain.MetaStringOf(res.Metadata, domain.MetaSource)
	}
	location := source
	if page, ok := domain.MetaIntOf(res.Metadata, domain.MetaPageNumber); ok && page > 0 {
		location = fmt.Sprintf("%s (page %d)", source, page)
	}

	fmt.Printf("%d. [%.2f %s] %s\n", rank, res.Similarity, res.Match, location)
	preview := domain.MetaStringOf(res.Metadata, domain.MetaPreview)
	if preview == "" {
		preview = res.Content
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
	}
	fmt.Printf("   %s\n", preview)
}

func joinArgs(args []string) string {
	query := args[0]
	for _, a := range args[1:] {
		query += " " + a
	}
	return query
}
