// Package domain defines the core types shared by the ingestion and
// retrieval services: documents with open metadata, retrieval results,
// ingestion statistics and the error taxonomy.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
)

// Metadata keys written by loaders, chunkers and the enricher.
const (
	MetaSource        = "source"
	MetaFilename      = "filename"
	MetaDocType       = "doc_type"
	MetaFileType      = "file_type"
	MetaFileSizeBytes = "file_size_bytes"
	MetaModifiedTime  = "modified_time"
	MetaCreatedTime   = "created_time"

	MetaPageNumber = "page_number"
	MetaPageCount  = "page_count"
	MetaSheetName  = "sheet_name"
	MetaSheetCount = "sheet_count"
	MetaHasTables  = "has_tables"
	MetaTableCount = "table_count"

	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaChunkSize   = "chunk_size"

	MetaDocID         = "doc_id"
	MetaIngestionTime = "ingestion_timestamp"
	MetaRelativePath  = "relative_path"
	MetaCategory      = "category"
	MetaCharCount     = "char_count"
	MetaWordCount     = "word_count"
	MetaPreview       = "preview"
)

// Document type vocabulary stored under the doc_type metadata key.
const (
	DocTypePDF     = "pdf"
	DocTypeDOCX    = "docx"
	DocTypeDOC     = "doc"
	DocTypeExcel   = "excel"
	DocTypeCSV     = "csv"
	DocTypeUnknown = "unknown"
)

// Document is a unit of extracted text plus its metadata. Loaders emit
// coarse units (a PDF page, a DOCX body, an Excel row batch); the
// chunkers re-emit them as embedding-sized chunks of the same shape.
type Document struct {
	Content  string
	Metadata map[string]any
}

// NewDocument builds a document, guaranteeing the metadata map exists
// and carries at least a source and a doc_type.
func NewDocument(content string, metadata map[string]any) Document {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	if _, ok := metadata[MetaSource]; !ok {
		metadata[MetaSource] = ""
	}
	if _, ok := metadata[MetaDocType]; !ok {
		metadata[MetaDocType] = DocTypeUnknown
	}
	return Document{Content: content, Metadata: metadata}
}

// DocID derives the stable chunk id: the first 16 hex characters of
// sha256 over content, source path, page number and chunk index. The
// enricher stamps it on every chunk; stores compute it themselves when
// a document arrives without one, so ids stay deterministic either way.
func DocID(doc Document) string {
	h := sha256.New()
	io.WriteString(h, doc.Content)
	io.WriteString(h, doc.MetaString(MetaSource))
	if page, ok := doc.MetaInt(MetaPageNumber); ok {
		io.WriteString(h, strconv.Itoa(page))
	}
	if idx, ok := doc.MetaInt(MetaChunkIndex); ok {
		io.WriteString(h, strconv.Itoa(idx))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// CloneMetadata returns a shallow copy of the metadata map so chunkers
// can derive per-chunk metadata without aliasing the parent document.
func (d Document) CloneMetadata() map[string]any {
	out := make(map[string]any, len(d.Metadata))
	for k, v := range d.Metadata {
		out[k] = v
	}
	return out
}

// MetaString reads a string metadata value from the document.
func (d Document) MetaString(key string) string {
	return MetaStringOf(d.Metadata, key)
}

// MetaInt reads an integer metadata value from the document.
func (d Document) MetaInt(key string) (int, bool) {
	return MetaIntOf(d.Metadata, key)
}

// MetaBool reads a boolean metadata value from the document.
func (d Document) MetaBool(key string) bool {
	return MetaBoolOf(d.Metadata, key)
}

// MetaStringOf reads a string value from a metadata map.
func MetaStringOf(md map[string]any, key string) string {
	s, _ := md[key].(string)
	return s
}

// MetaIntOf reads an integer value from a metadata map. Numeric values
// arrive as int from loaders but as float64 after a JSON round trip, so
// both are accepted.
func MetaIntOf(md map[string]any, key string) (int, bool) {
	switch v := md[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// MetaBoolOf reads a boolean value from a metadata map.
func MetaBoolOf(md map[string]any, key string) bool {
	b, _ := md[key].(bool)
	return b
}
