package chunkers

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
)

// PreviewLength caps the preview metadata field.
const PreviewLength = 200

// Enricher stamps derived metadata on chunks before storage. The
// doc_id hash covers content, source, page number and chunk index, so
// re-running ingestion over unchanged files produces identical ids.
type Enricher struct {
	basePath string
	now      func() time.Time
}

// NewEnricher creates an enricher. basePath is the document root used
// for relative paths and categories; it may be empty.
func NewEnricher(basePath string) *Enricher {
	return &Enricher{basePath: basePath, now: time.Now}
}

// Enrich returns the chunks with derived metadata attached.
func (e *Enricher) Enrich(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i, doc := range docs {
		out[i] = e.enrich(doc)
	}
	return out
}

func (e *Enricher) enrich(doc domain.Document) domain.Document {
	source := doc.MetaString(domain.MetaSource)
	rel := relativePath(source, e.basePath)

	md := doc.CloneMetadata()
	md[domain.MetaDocID] = domain.DocID(doc)
	md[domain.MetaIngestionTime] = e.now().UTC().Format(time.RFC3339)
	md[domain.MetaRelativePath] = rel
	md[domain.MetaCategory] = category(source, rel)
	md[domain.MetaCharCount] = utf8.RuneCountInString(doc.Content)
	md[domain.MetaWordCount] = len(strings.Fields(doc.Content))
	md[domain.MetaPreview] = Preview(doc.Content, PreviewLength)

	doc.Metadata = md
	return doc
}

// Preview truncates content at the last word boundary within limit and
// marks the truncation with an ellipsis.
func Preview(content string, limit int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= limit {
		return content
	}
	cut := content[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

// relativePath resolves source against the document root. Files outside
// the root keep their full path.
func relativePath(source, base string) string {
	if base == "" || source == "" {
		return source
	}
	rel, err := filepath.Rel(base, source)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return source
	}
	return rel
}

// category is the first directory segment under the document root. A
// file sitting directly in the root, or outside it, takes its parent
// directory's name instead.
func category(source, rel string) string {
	if rel != source {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) > 1 {
			return parts[0]
		}
	}
	dir := filepath.Base(filepath.Dir(source))
	if dir == "." || dir == string(filepath.Separator) || dir == "" {
		return "root"
	}
	return dir
}
