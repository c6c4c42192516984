package driven

import (
	"context"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
)

// QueryHit is one nearest-neighbour result from a vector query.
type QueryHit struct {
	ID       string
	Content  string
	Metadata map[string]any

	// Distance is the backend's raw distance metric (L2 for the bundled
	// backends). Smaller is closer.
	Distance float64
}

// Record is a stored chunk returned by Get, without distance
// information.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// GetRequest selects stored records. IDs takes precedence when set;
// otherwise Filter narrows by metadata equality and Limit caps the
// result count (0 means backend default).
type GetRequest struct {
	IDs    []string
	Filter map[string]any
	Limit  int
}

// VectorStore is the single durable store for chunks and their
// embeddings. Implementations embed document content on Add and query
// text on Query, so callers never handle raw vectors.
type VectorStore interface {
	// Add stores the documents and returns their ids. The id comes from
	// doc_id metadata when present, otherwise a content hash. Adding an
	// existing id replaces the record. Returns an error wrapping
	// domain.ErrRequestTooLarge when the embedding request exceeds the
	// provider limit.
	Add(ctx context.Context, docs []domain.Document) ([]string, error)

	// Query embeds the text and returns up to n nearest chunks matching
	// the optional metadata filter, closest first.
	Query(ctx context.Context, text string, n int, filter map[string]any) ([]QueryHit, error)

	// Get returns stored records without scoring.
	Get(ctx context.Context, req GetRequest) ([]Record, error)

	// DeleteBySource removes every chunk whose source metadata equals
	// the given path and reports how many were removed.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// Exists reports whether a chunk with the given id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Stats returns store-level statistics for reporting.
	Stats(ctx context.Context) (*domain.StoreStats, error)

	// Close releases backend resources.
	Close() error
}
