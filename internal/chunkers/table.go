// Package chunkers splits loader output into embedding-sized chunks
// and stamps derived metadata on them before storage.
package chunkers

import "github.com/corpusworks/corpus-cli/internal/core/domain"

// TableChunker passes table-flagged units through whole. Splitting a
// rendered table mid-row destroys the column alignment that exact
// identifier matching relies on, so table units never reach the
// size-based splitter.
type TableChunker struct{}

// NewTableChunker creates a table chunker.
func NewTableChunker() *TableChunker { return &TableChunker{} }

// Chunk stamps chunk metadata on table units and leaves prose units
// untouched for the semantic splitter. Units that already carry a
// chunk index (spreadsheet row batches) keep it.
func (c *TableChunker) Chunk(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.MetaBool(domain.MetaHasTables) {
			md := doc.CloneMetadata()
			if _, ok := doc.MetaInt(domain.MetaChunkIndex); !ok {
				md[domain.MetaChunkIndex] = 0
				md[domain.MetaTotalChunks] = 1
			}
			md[domain.MetaChunkSize] = len(doc.Content)
			doc.Metadata = md
		}
		out = append(out, doc)
	}
	return out
}
