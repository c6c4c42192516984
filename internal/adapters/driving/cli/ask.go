package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpus-cli/internal/adapters/driven/ai"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
	"github.com/corpusworks/corpus-cli/internal/core/services"
)

var (
	askLimit    int
	askDocType  string
	askCategory string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Ask retrieves the most relevant chunks for the question and has the
configured LLM compose an answer grounded in them. Sources are listed
after the answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := joinArgs(args)

		store, err := buildStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		llm, err := ai.CreateAndValidateLLM(cmd.Context(), ai.LLMConfig{
			Provider: ai.Provider(cfg.LLM.Provider),
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.ResolveAPIKey(),
			BaseURL:  cfg.LLM.BaseURL,
		})
		if err != nil {
			return err
		}
		defer llm.Close() //nolint:errcheck

		answerer := services.NewAnswerService(buildRetriever(store), llm)
		answer, err := answerer.Ask(cmd.Context(), question, driving.RetrieveOptions{
			TopK:     askLimit,
			DocType:  askDocType,
			Category: askCategory,
		})
		if err != nil {
			return err
		}

		fmt.Println(answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Println("\nSources:")
			for i, src := range answer.Sources {
				if src.Page > 0 {
					fmt.Printf("  %d. %s (page %d)\n", i+1, src.File, src.Page)
				} else {
					fmt.Printf("  %d. %s\n", i+1, src.File)
				}
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().IntVar(&askLimit, "limit", 0, "maximum chunks to retrieve (default from config)")
	askCmd.Flags().StringVar(&askDocType, "type", "", "restrict to a document type (pdf, docx, excel, csv)")
	askCmd.Flags().StringVar(&askCategory, "category", "", "restrict to a category")
	rootCmd.AddCommand(askCmd)
}
