package chunkers

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
)

func TestDocIDIgnoresTimestamps(t *testing.T) {
	e := NewEnricher("/docs")
	doc := domain.NewDocument("content", map[string]any{domain.MetaSource: "/docs/a.pdf"})

	e.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	first := e.Enrich([]domain.Document{doc})[0]

	e.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }
	second := e.Enrich([]domain.Document{doc})[0]

	assert.Equal(t, first.MetaString(domain.MetaDocID), second.MetaString(domain.MetaDocID))
	assert.NotEqual(t,
		first.MetaString(domain.MetaIngestionTime),
		second.MetaString(domain.MetaIngestionTime))
}

func TestPreviewCutsAtWordBoundary(t *testing.T) {
	long := strings.Repeat("maintenance schedule ", 30)
	preview := Preview(long, PreviewLength)

	assert.LessOrEqual(t, len(preview), PreviewLength+3)
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(preview, "..."), "mainte"),
		"preview should not cut mid-word")
}

func TestPreviewCollapsesWhitespace(t *testing.T) {
	preview := Preview("a  b\n\nc\td", PreviewLength)
	assert.Equal(t, "a b c d", preview)
}

func TestEnrichCategory(t *testing.T) {
	base := filepath.Join("/", "data", "docs")

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"subdirectory", filepath.Join(base, "manuals", "pump.pdf"), "manuals"},
		{"nested subdirectory", filepath.Join(base, "manuals", "2024", "pump.pdf"), "manuals"},
		{"document root", filepath.Join(base, "pump.pdf"), "docs"},
		{"outside root", filepath.Join("/", "tmp", "stray.pdf"), "tmp"},
	}

	e := NewEnricher(base)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := domain.NewDocument("x", map[string]any{domain.MetaSource: tt.source})
			out := e.Enrich([]domain.Document{doc})[0]
			assert.Equal(t, tt.want, out.MetaString(domain.MetaCategory))
		})
	}
}

func TestEnrichCounts(t *testing.T) {
	e := NewEnricher("")
	doc := domain.NewDocument("three short words", map[string]any{domain.MetaSource: "/a.txt"})

	out := e.Enrich([]domain.Document{doc})[0]

	chars, ok := out.MetaInt(domain.MetaCharCount)
	require.True(t, ok)
	assert.Equal(t, len("three short words"), chars)

	words, ok := out.MetaInt(domain.MetaWordCount)
	require.True(t, ok)
	assert.Equal(t, 3, words)
}

func TestEnrichCharCountIsRunes(t *testing.T) {
	e := NewEnricher("")
	content := "Größe 10 µm"
	doc := domain.NewDocument(content, map[string]any{domain.MetaSource: "/a.pdf"})

	out := e.Enrich([]domain.Document{doc})[0]

	chars, ok := out.MetaInt(domain.MetaCharCount)
	require.True(t, ok)
	assert.Equal(t, utf8.RuneCountInString(content), chars)
	assert.Less(t, chars, len(content))
}
