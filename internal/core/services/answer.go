package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
	"github.com/corpusworks/corpus-cli/internal/logger"
)

var _ driving.Answerer = (*AnswerService)(nil)

// AnswerService generates grounded answers: it retrieves relevant
// chunks, renders them as numbered context blocks and asks the LLM to
// answer from that context only.
type AnswerService struct {
	retriever driving.Retriever
	llm       driven.LLMService
}

// NewAnswerService wires an answer service. llm may be nil, in which
// case Ask fails with domain.ErrLLMUnavailable.
func NewAnswerService(retriever driving.Retriever, llm driven.LLMService) *AnswerService {
	return &AnswerService{retriever: retriever, llm: llm}
}

const answerPrompt = `You are an assistant answering questions about an indexed document corpus.

Use the following context from the indexed documents to answer the question. If the answer is not in the context, say so clearly. Be specific and reference the source documents.

Context:
%s

Question: %s

Answer:`

// Ask implements driving.Answerer.
func (s *AnswerService) Ask(ctx context.Context, question string, opts driving.RetrieveOptions) (*driving.Answer, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	results, err := s.retriever.Retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &driving.Answer{
			Text: "No relevant documents were found for this question. Try rephrasing it or ingesting more documents.",
		}, nil
	}

	prompt := fmt.Sprintf(answerPrompt, buildContext(results), question)
	logger.Debug("answer prompt: %d chars over %d chunks", len(prompt), len(results))

	text, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   1024,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &driving.Answer{
		Text:    strings.TrimSpace(text),
		Sources: extractSources(results),
		Results: results,
	}, nil
}

// buildContext renders retrieved chunks as numbered source blocks.
func buildContext(results []domain.RetrievalResult) string {
	var parts []string
	for i, res := range results {
		name := filepath.Base(domain.MetaStringOf(res.Metadata, domain.MetaSource))
		label := fmt.Sprintf("[Source %d: %s", i+1, name)
		if page, ok := domain.MetaIntOf(res.Metadata, domain.MetaPageNumber); ok {
			label += fmt.Sprintf(", page %d", page)
		}
		label += "]"
		parts = append(parts, label+"\n"+res.Content)
	}
	return strings.Join(parts, "\n\n")
}

// extractSources lists the unique file/page pairs behind the results,
// in result order.
func extractSources(results []domain.RetrievalResult) []driving.Source {
	seen := make(map[string]bool)
	var sources []driving.Source
	for _, res := range results {
		file := domain.MetaStringOf(res.Metadata, domain.MetaSource)
		page, _ := domain.MetaIntOf(res.Metadata, domain.MetaPageNumber)
		key := fmt.Sprintf("%s:%d", file, page)
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, driving.Source{
			File:    file,
			Page:    page,
			DocType: domain.MetaStringOf(res.Metadata, domain.MetaDocType),
		})
	}
	return sources
}
