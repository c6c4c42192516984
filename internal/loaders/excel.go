package loaders

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

var _ driven.DocumentLoader = (*ExcelLoader)(nil)

// DefaultRowsPerChunk caps how many data rows land in one unit.
const DefaultRowsPerChunk = 50

// ExcelLoader extracts spreadsheet data as row batches. Each batch
// renders the sheet name, the column header and every row as labelled
// values, optionally preceded by a natural-language sheet summary so
// semantic queries about the data can land on it. CSV files are read
// as a single sheet named "data".
type ExcelLoader struct {
	rowsPerChunk int
	summaries    bool
}

// NewExcelLoader creates a spreadsheet loader.
func NewExcelLoader(rowsPerChunk int, summaries bool) *ExcelLoader {
	if rowsPerChunk <= 0 {
		rowsPerChunk = DefaultRowsPerChunk
	}
	return &ExcelLoader{rowsPerChunk: rowsPerChunk, summaries: summaries}
}

// Extensions implements driven.DocumentLoader.
func (l *ExcelLoader) Extensions() []string {
	return []string{".xlsx", ".xlsm", ".xls", ".csv"}
}

// Load implements driven.DocumentLoader.
func (l *ExcelLoader) Load(ctx context.Context, path string) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return l.loadCSV(path)
	}
	return l.loadWorkbook(path)
}

func (l *ExcelLoader) loadWorkbook(path string) ([]domain.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	base := baseMetadata(path)
	sheets := f.GetSheetList()
	var docs []domain.Document
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		docs = append(docs, l.sheetDocuments(base, domain.DocTypeExcel, sheet, len(sheets), rows)...)
	}
	if len(docs) == 0 {
		docs = append(docs, l.placeholder(base, domain.DocTypeExcel, len(sheets)))
	}
	return docs, nil
}

func (l *ExcelLoader) loadCSV(path string) ([]domain.Document, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	base := baseMetadata(path)
	docs := l.sheetDocuments(base, domain.DocTypeCSV, "data", 1, rows)
	if len(docs) == 0 {
		docs = append(docs, l.placeholder(base, domain.DocTypeCSV, 1))
	}
	return docs, nil
}

func (l *ExcelLoader) placeholder(base map[string]any, docType string, sheetCount int) domain.Document {
	md := withMeta(base, map[string]any{
		domain.MetaDocType:    docType,
		domain.MetaSheetCount: sheetCount,
		domain.MetaHasTables:  false,
		domain.MetaTableCount: 0,
	})
	return domain.NewDocument(PlaceholderEmpty, md)
}

// sheetDocuments batches the data rows (everything after the header)
// and renders each batch. Row numbers are spreadsheet row numbers, so
// the header is row 1 and data starts at row 2.
func (l *ExcelLoader) sheetDocuments(base map[string]any, docType, sheet string, sheetCount int, rows [][]string) []domain.Document {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0]
	data := rows[1:]

	summary := ""
	if l.summaries && len(data) > 0 {
		summary = sheetSummary(sheet, header, data)
	}

	total := (len(data) + l.rowsPerChunk - 1) / l.rowsPerChunk
	if total == 0 {
		total = 1
	}

	var docs []domain.Document
	for ci := 0; ci < total; ci++ {
		start := ci * l.rowsPerChunk
		end := start + l.rowsPerChunk
		if end > len(data) {
			end = len(data)
		}

		var b strings.Builder
		if summary != "" {
			b.WriteString(summary)
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Sheet: %s\n\n", sheet)
		fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(header, " | "))
		for ri := start; ri < end; ri++ {
			fmt.Fprintf(&b, "Row %d: %s\n", ri+2, formatRow(header, data[ri]))
		}

		md := withMeta(base, map[string]any{
			domain.MetaDocType:     docType,
			domain.MetaSheetName:   sheet,
			domain.MetaSheetCount:  sheetCount,
			domain.MetaHasTables:   true,
			domain.MetaTableCount:  1,
			domain.MetaChunkIndex:  ci,
			domain.MetaTotalChunks: total,
			"row_start":            start + 2,
			"row_end":              end + 1,
			"row_count":            end - start,
			"column_count":         len(header),
			"columns":              strings.Join(header, ", "),
		})
		docs = append(docs, domain.NewDocument(strings.TrimSpace(b.String()), md))
	}
	return docs
}

// formatRow renders one data row as "column: value | column: value",
// dropping empty cells.
func formatRow(header, row []string) string {
	var parts []string
	for i, col := range header {
		val := ""
		if i < len(row) {
			val = strings.TrimSpace(row[i])
		}
		if val == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", col, val))
	}
	if len(parts) == 0 {
		return "(empty row)"
	}
	return strings.Join(parts, " | ")
}

// sheetSummary writes a short description of the sheet, including the
// value range of every fully numeric column.
func sheetSummary(sheet string, header []string, data [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is data from the sheet '%s'. It contains %d rows and %d columns. The columns are: %s.",
		sheet, len(data), len(header), strings.Join(header, ", "))

	for i, col := range header {
		minV, maxV, sum, n, nonEmpty := columnStats(data, i)
		if n == 0 || n != nonEmpty {
			continue
		}
		fmt.Fprintf(&b, "\nThe column '%s' ranges from %s to %s with an average of %.2f.",
			col, formatNumber(minV), formatNumber(maxV), sum/float64(n))
	}
	return b.String()
}

func columnStats(data [][]string, col int) (minV, maxV, sum float64, n, nonEmpty int) {
	for _, row := range data {
		if col >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[col])
		if val == "" {
			continue
		}
		nonEmpty++
		f, err := strconv.ParseFloat(strings.ReplaceAll(val, ",", ""), 64)
		if err != nil {
			continue
		}
		if n == 0 || f < minV {
			minV = f
		}
		if n == 0 || f > maxV {
			maxV = f
		}
		sum += f
		n++
	}
	return minV, maxV, sum, n, nonEmpty
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
