package services

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpus-cli/internal/adapters/driven/vectorstore/memory"
	"github.com/corpusworks/corpus-cli/internal/chunkers"
	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
	"github.com/corpusworks/corpus-cli/internal/loaders"
)

func newTestPipeline(t *testing.T, store *fakeStore, baseDir string, cfg IngestConfig) *IngestionPipeline {
	t.Helper()
	registry := loaders.NewRegistry(loaders.Options{ExcelRowsPerChunk: 10})
	splitter := chunkers.NewSemanticChunker(800, 200)
	enricher := chunkers.NewEnricher(baseDir)
	return NewIngestionPipeline(store, registry, splitter, enricher, cfg)
}

func writeCSV(t *testing.T, dir, name string, rows int) string {
	t.Helper()
	content := "part,qty\n"
	for i := 0; i < rows; i++ {
		content += fmt.Sprintf("12-%03dA,%d\n", i, i+1)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestDirectoryStats(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "parts.csv", 5)
	writeCSV(t, dir, "stock.csv", 5)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o644))

	var (
		mu     sync.Mutex
		stored []domain.Document
	)
	store := &fakeStore{
		addFn: func(ctx context.Context, docs []domain.Document) ([]string, error) {
			mu.Lock()
			defer mu.Unlock()
			stored = append(stored, docs...)
			return make([]string, len(docs)), nil
		},
	}
	p := newTestPipeline(t, store, dir, IngestConfig{Workers: 2, BatchSize: 3})

	stats, err := p.IngestDirectory(context.Background(), dir, driving.IngestOptions{Recursive: true})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, len(stored), stats.TotalChunks)
	require.NotEmpty(t, stored)

	for _, doc := range stored {
		assert.NotEmpty(t, doc.MetaString(domain.MetaDocID))
		assert.True(t, filepath.IsAbs(doc.MetaString(domain.MetaSource)))
		assert.Equal(t, domain.DocTypeCSV, doc.MetaString(domain.MetaDocType))
	}
}

func TestIngestDirectoryExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "parts.csv", 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	store := &fakeStore{}
	p := newTestPipeline(t, store, dir, IngestConfig{})

	stats, err := p.IngestDirectory(context.Background(), dir, driving.IngestOptions{
		Recursive:  true,
		Extensions: []string{"csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.Successful)
}

func TestIngestFileSkipExisting(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "parts.csv", 3)

	adds := 0
	store := &fakeStore{
		existsFn: func(ctx context.Context, id string) (bool, error) { return true, nil },
		addFn: func(ctx context.Context, docs []domain.Document) ([]string, error) {
			adds++
			return make([]string, len(docs)), nil
		},
	}
	p := newTestPipeline(t, store, dir, IngestConfig{SkipExisting: true})

	res, err := p.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, driving.FileSkipped, res.Status)
	assert.Zero(t, adds)
}

func TestIngestFileUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	p := newTestPipeline(t, &fakeStore{}, dir, IngestConfig{})

	res, err := p.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, driving.FileFailed, res.Status)
	assert.ErrorIs(t, res.Err, domain.ErrUnsupportedType)
}

func TestFlushBisectsOversizedBatches(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "parts.csv", 35) // 4 row batches at 10 rows each

	var (
		mu        sync.Mutex
		callSizes []int
	)
	store := &fakeStore{
		addFn: func(ctx context.Context, docs []domain.Document) ([]string, error) {
			mu.Lock()
			callSizes = append(callSizes, len(docs))
			mu.Unlock()
			if len(docs) > 1 {
				return nil, fmt.Errorf("batch rejected: %w", domain.ErrRequestTooLarge)
			}
			return make([]string, len(docs)), nil
		},
	}
	p := newTestPipeline(t, store, dir, IngestConfig{BatchSize: 100})

	res, err := p.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, driving.FileIngested, res.Status)
	assert.Equal(t, 4, res.ChunksAdded)

	singles := 0
	for _, n := range callSizes {
		if n == 1 {
			singles++
		}
	}
	assert.Equal(t, 4, singles, "every chunk should eventually be stored alone")
}

func TestFlushDropsChunksThatNeverFit(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "parts.csv", 5)

	store := &fakeStore{
		addFn: func(ctx context.Context, docs []domain.Document) ([]string, error) {
			return nil, domain.ErrRequestTooLarge
		},
	}
	p := newTestPipeline(t, store, dir, IngestConfig{})

	res, err := p.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, driving.FileFailed, res.Status)
	require.Error(t, res.Err)
}

func TestReindexDeletesBeforeIngest(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "parts.csv", 3)
	absPath, err := filepath.Abs(path)
	require.NoError(t, err)

	var deletedSource string
	order := []string{}
	store := &fakeStore{
		deleteFn: func(ctx context.Context, source string) (int, error) {
			deletedSource = source
			order = append(order, "delete")
			return 2, nil
		},
		addFn: func(ctx context.Context, docs []domain.Document) ([]string, error) {
			order = append(order, "add")
			return make([]string, len(docs)), nil
		},
	}
	p := newTestPipeline(t, store, dir, IngestConfig{})

	res, err := p.Reindex(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, driving.FileIngested, res.File.Status)
	assert.Equal(t, absPath, deletedSource)
	assert.Equal(t, []string{"delete", "add"}, order)
}

// proseBodyXML is a table-free Word body of roughly 300 characters.
const proseBodyXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>The plant overview covers the compressor hall and the two pump groups. Routine maintenance follows the interval plan posted at each station. Operators record completed work in the shift log, and any deviation from the plan is reported to the maintenance coordinator before the next shift begins.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeProseDocx(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	fh, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(fh)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(proseBodyXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, fh.Close())
	return path
}

func newMemoryPipeline(store *memory.Store, baseDir string, cfg IngestConfig) *IngestionPipeline {
	registry := loaders.NewRegistry(loaders.Options{ExcelRowsPerChunk: 10})
	splitter := chunkers.NewSemanticChunker(800, 200)
	enricher := chunkers.NewEnricher(baseDir)
	return NewIngestionPipeline(store, registry, splitter, enricher, cfg)
}

func TestIngestDirectoryTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "parts.csv", 5)
	writeCSV(t, dir, "stock.csv", 5)

	store := memory.NewStore(nil)
	p := newMemoryPipeline(store, dir, IngestConfig{SkipExisting: true})
	ctx := context.Background()

	first, err := p.IngestDirectory(ctx, dir, driving.IngestOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Successful)

	countAfterFirst, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.TotalChunks, countAfterFirst)

	second, err := p.IngestDirectory(ctx, dir, driving.IngestOptions{Recursive: true})
	require.NoError(t, err)
	assert.Zero(t, second.Successful)
	assert.Equal(t, second.TotalFiles, second.Skipped)
	assert.Zero(t, second.TotalChunks)

	countAfterSecond, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, countAfterFirst, countAfterSecond, "re-running must not grow the store")
}

func TestIngestDirectoryMixedProseAndTables(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "plant")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeProseDocx(t, sub, "overview.docx")
	writeCSV(t, sub, "inventory.csv", 5)

	store := memory.NewStore(nil)
	p := newMemoryPipeline(store, dir, IngestConfig{})
	ctx := context.Background()

	stats, err := p.IngestDirectory(ctx, dir, driving.IngestOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 2, stats.TotalChunks)

	recs, err := store.Get(ctx, driven.GetRequest{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	ids := make(map[string]bool)
	tableChunks, proseChunks := 0, 0
	for _, rec := range recs {
		ids[rec.ID] = true
		assert.Equal(t, rec.ID, domain.MetaStringOf(rec.Metadata, domain.MetaDocID))
		assert.Equal(t, "plant", domain.MetaStringOf(rec.Metadata, domain.MetaCategory))
		if domain.MetaBoolOf(rec.Metadata, domain.MetaHasTables) {
			tableChunks++
			assert.Contains(t, rec.Content, "Row 2:")
		} else {
			proseChunks++
			assert.LessOrEqual(t, utf8.RuneCountInString(rec.Content), 800,
				"prose below the chunk size stays in one piece")
		}
	}
	assert.Len(t, ids, 2, "chunk ids are distinct")
	assert.Equal(t, 1, tableChunks)
	assert.Equal(t, 1, proseChunks)
}

func TestIngestDirectoryCancelled(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "parts.csv", 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, &fakeStore{}, dir, IngestConfig{})
	_, err := p.IngestDirectory(ctx, dir, driving.IngestOptions{Recursive: true})
	assert.ErrorIs(t, err, context.Canceled)
}
