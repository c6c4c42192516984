package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
)

type fakeRetriever struct {
	results []domain.RetrievalResult
	err     error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, opts driving.RetrieveOptions) ([]domain.RetrievalResult, error) {
	return f.results, f.err
}

type fakeLLM struct {
	response string
	err      error
	prompt   string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func (f *fakeLLM) ModelName() string              { return "fake" }
func (f *fakeLLM) Ping(ctx context.Context) error { return nil }
func (f *fakeLLM) Close() error                   { return nil }

func chunkResult(id, content, source string, page int) domain.RetrievalResult {
	md := map[string]any{
		domain.MetaSource:  source,
		domain.MetaDocType: "pdf",
	}
	if page > 0 {
		md[domain.MetaPageNumber] = page
	}
	return domain.RetrievalResult{ID: id, Content: content, Metadata: md, Similarity: 0.8}
}

func TestAskWithoutLLM(t *testing.T) {
	s := NewAnswerService(&fakeRetriever{}, nil)

	_, err := s.Ask(context.Background(), "anything", driving.RetrieveOptions{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestAskNoResults(t *testing.T) {
	llm := &fakeLLM{response: "should not be called"}
	s := NewAnswerService(&fakeRetriever{}, llm)

	answer, err := s.Ask(context.Background(), "obscure question", driving.RetrieveOptions{})
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "No relevant documents")
	assert.Empty(t, answer.Sources)
	assert.Empty(t, llm.prompt, "LLM must not be invoked without context")
}

func TestAskBuildsGroundedPrompt(t *testing.T) {
	llm := &fakeLLM{response: "  Replace it every 500 hours.  "}
	s := NewAnswerService(&fakeRetriever{
		results: []domain.RetrievalResult{
			chunkResult("c1", "Replace the filter every 500 hours.", "/docs/manuals/pump.pdf", 3),
			chunkResult("c2", "Use filter type F-200.", "/docs/manuals/pump.pdf", 3),
			chunkResult("c3", "Order filters from stores.", "/docs/manuals/ordering.pdf", 0),
		},
	}, llm)

	answer, err := s.Ask(context.Background(), "how often is the filter replaced", driving.RetrieveOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Replace it every 500 hours.", answer.Text)

	assert.Contains(t, llm.prompt, "[Source 1: pump.pdf, page 3]")
	assert.Contains(t, llm.prompt, "Replace the filter every 500 hours.")
	assert.Contains(t, llm.prompt, "Question: how often is the filter replaced")

	// two chunks from the same file and page collapse into one source
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "/docs/manuals/pump.pdf", answer.Sources[0].File)
	assert.Equal(t, 3, answer.Sources[0].Page)
	assert.Equal(t, "/docs/manuals/ordering.pdf", answer.Sources[1].File)
	assert.Equal(t, 0, answer.Sources[1].Page)

	require.Len(t, answer.Results, 3)
}

func TestAskRetrieverErrorPropagates(t *testing.T) {
	wantErr := errors.New("store offline")
	s := NewAnswerService(&fakeRetriever{err: wantErr}, &fakeLLM{})

	_, err := s.Ask(context.Background(), "question", driving.RetrieveOptions{})
	assert.ErrorIs(t, err, wantErr)
}

func TestAskGenerateErrorPropagates(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model overloaded")}
	s := NewAnswerService(&fakeRetriever{
		results: []domain.RetrievalResult{chunkResult("c1", "content", "/a.pdf", 1)},
	}, llm)

	_, err := s.Ask(context.Background(), "question", driving.RetrieveOptions{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "generate answer"))
}
