// Package driven defines the outbound ports: interfaces the core
// services depend on, implemented by adapters.
package driven

import (
	"context"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
)

// DocumentLoader extracts text units from a file on disk. One loader
// handles one family of formats, keyed by extension.
type DocumentLoader interface {
	// Extensions returns the lowercase extensions this loader handles,
	// including the leading dot.
	Extensions() []string

	// Load reads the file and returns its extracted units with base
	// metadata attached. A file that parses but yields no text produces
	// a single placeholder unit, never an empty slice.
	Load(ctx context.Context, path string) ([]domain.Document, error)
}
