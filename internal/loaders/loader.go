// Package loaders turns office documents into text units ready for
// chunking. Each loader handles one format family; the registry routes
// a file to its loader by extension.
package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

// PlaceholderEmpty is stored when a file parses but yields no text, so
// hashing and chunking stay well-defined.
const PlaceholderEmpty = "[empty document]"

// Options configures the default loader set.
type Options struct {
	// ExcelRowsPerChunk caps rows per spreadsheet unit (default 50).
	ExcelRowsPerChunk int

	// ExcelSummaries prepends a natural-language sheet description to
	// each spreadsheet unit.
	ExcelSummaries bool
}

// Registry maps file extensions to loaders.
type Registry struct {
	byExt map[string]driven.DocumentLoader
}

// NewRegistry builds a registry with the PDF, Word and spreadsheet
// loaders registered.
func NewRegistry(opts Options) *Registry {
	r := &Registry{byExt: make(map[string]driven.DocumentLoader)}
	r.Register(NewPDFLoader())
	r.Register(NewWordLoader())
	r.Register(NewExcelLoader(opts.ExcelRowsPerChunk, opts.ExcelSummaries))
	return r
}

// Register adds a loader for each of its extensions, replacing any
// previous registration.
func (r *Registry) Register(l driven.DocumentLoader) {
	for _, ext := range l.Extensions() {
		r.byExt[strings.ToLower(ext)] = l
	}
}

// For returns the loader responsible for the file's extension.
func (r *Registry) For(path string) (driven.DocumentLoader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%q: %w", ext, domain.ErrUnsupportedType)
	}
	return l, nil
}

// SupportedExtensions returns the registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

var (
	spaceRuns = regexp.MustCompile(`[ \t]+`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText collapses whitespace runs and strips control characters
// so hashes and previews are stable across parsers. Line structure is
// preserved; runs of blank lines collapse to one.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = spaceRuns.ReplaceAllString(s, " ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// baseMetadata stats the file and returns the metadata every loader
// attaches. created_time falls back to the modification time since
// creation time is not portable.
func baseMetadata(path string) map[string]any {
	md := map[string]any{
		domain.MetaSource:   path,
		domain.MetaFilename: filepath.Base(path),
		domain.MetaFileType: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
	}
	if info, err := os.Stat(path); err == nil {
		md[domain.MetaFileSizeBytes] = info.Size()
		mod := info.ModTime().UTC().Format(time.RFC3339)
		md[domain.MetaModifiedTime] = mod
		md[domain.MetaCreatedTime] = mod
	}
	return md
}

// withMeta merges per-unit metadata over a copy of the base metadata.
func withMeta(base map[string]any, extra map[string]any) map[string]any {
	md := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		md[k] = v
	}
	for k, v := range extra {
		md[k] = v
	}
	return md
}
