package loaders

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
	"github.com/corpusworks/corpus-cli/internal/logger"
)

var _ driven.DocumentLoader = (*PDFLoader)(nil)

// Horizontal gap, in points, that separates two cells on a text row.
const columnGap = 18.0

// PDFLoader extracts one document per page. Rows whose fragments are
// separated by wide horizontal gaps are treated as table cells; two or
// more consecutive cell rows form a table, rendered pipe-delimited
// after the page prose.
type PDFLoader struct{}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader() *PDFLoader { return &PDFLoader{} }

// Extensions implements driven.DocumentLoader.
func (l *PDFLoader) Extensions() []string { return []string{".pdf"} }

// Load implements driven.DocumentLoader.
func (l *PDFLoader) Load(ctx context.Context, path string) (docs []domain.Document, err error) {
	// The parser panics on some malformed files; turn that into a
	// load error so one bad file cannot take down an ingestion run.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("parse pdf %s: %v", filepath.Base(path), r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	base := baseMetadata(path)
	pageCount := reader.NumPage()

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		prose, tables := extractPage(page)
		content := prose
		if len(tables) > 0 {
			content = strings.TrimSpace(prose + "\n\n" + formatTables(tables))
		}
		content = NormalizeText(content)
		if content == "" {
			// Image-only or scanned page.
			content = PlaceholderEmpty
		}
		md := withMeta(base, map[string]any{
			domain.MetaDocType:    domain.DocTypePDF,
			domain.MetaPageNumber: i,
			domain.MetaPageCount:  pageCount,
			domain.MetaHasTables:  len(tables) > 0,
			domain.MetaTableCount: len(tables),
		})
		docs = append(docs, domain.NewDocument(content, md))
	}

	if len(docs) == 0 {
		logger.Debug("pdf %s has no readable pages", filepath.Base(path))
		md := withMeta(base, map[string]any{
			domain.MetaDocType:    domain.DocTypePDF,
			domain.MetaPageNumber: 1,
			domain.MetaPageCount:  pageCount,
			domain.MetaHasTables:  false,
			domain.MetaTableCount: 0,
		})
		docs = append(docs, domain.NewDocument(PlaceholderEmpty, md))
	}
	return docs, nil
}

// extractPage returns the prose text and the detected tables of a page.
// A table is two or more consecutive rows that each split into at least
// three cells.
func extractPage(page pdf.Page) (string, [][][]string) {
	rows, err := page.GetTextByRow()
	if err != nil {
		// Positional extraction failed, fall back to the flat stream.
		text, _ := page.GetPlainText(nil)
		return text, nil
	}

	var proseLines []string
	var tables [][][]string
	var block [][]string

	flush := func() {
		if len(block) >= 2 {
			tables = append(tables, block)
		} else {
			for _, cells := range block {
				proseLines = append(proseLines, strings.Join(cells, " "))
			}
		}
		block = nil
	}

	for _, row := range rows {
		cells := splitCells(row)
		if len(cells) >= 3 {
			block = append(block, cells)
			continue
		}
		flush()
		if len(cells) > 0 {
			proseLines = append(proseLines, strings.Join(cells, " "))
		}
	}
	flush()

	return strings.Join(proseLines, "\n"), tables
}

// splitCells groups a row's text fragments into cells on wide gaps and
// inserts spaces on narrow ones.
func splitCells(row *pdf.Row) []string {
	var cells []string
	var cur strings.Builder
	var lastEnd float64

	for i, t := range row.Content {
		if i > 0 {
			gap := t.X - lastEnd
			if gap > columnGap {
				if s := strings.TrimSpace(cur.String()); s != "" {
					cells = append(cells, s)
				}
				cur.Reset()
			} else if gap > 1 {
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(t.S)
		lastEnd = t.X + t.W
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		cells = append(cells, s)
	}
	return cells
}

func formatTables(tables [][][]string) string {
	var parts []string
	for i, table := range tables {
		var b strings.Builder
		fmt.Fprintf(&b, "Table %d:\n", i+1)
		for _, cells := range table {
			b.WriteString(strings.Join(cells, " | "))
			b.WriteByte('\n')
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(parts, "\n\n")
}
