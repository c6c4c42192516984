package driving

import (
	"context"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
)

// RetrieveOptions narrows a retrieval request.
type RetrieveOptions struct {
	// TopK caps the number of results. Zero uses the configured default.
	TopK int

	// DocType filters by the doc_type metadata value.
	DocType string

	// Category filters by the category metadata value.
	Category string
}

// Retriever answers queries with ranked chunks.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]domain.RetrievalResult, error)
}

// Source identifies a document a generated answer drew from.
type Source struct {
	File    string `json:"file"`
	Page    int    `json:"page,omitempty"`
	DocType string `json:"doc_type"`
}

// Answer is a generated response grounded in retrieved chunks.
type Answer struct {
	Text    string                   `json:"answer"`
	Sources []Source                 `json:"sources"`
	Results []domain.RetrievalResult `json:"-"`
}

// Answerer generates grounded answers to free-text questions.
type Answerer interface {
	Ask(ctx context.Context, question string, opts RetrieveOptions) (*Answer, error)
}
