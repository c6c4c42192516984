// Package services implements the core use cases: the ingestion
// pipeline, the hybrid retriever and answer generation.
package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/corpusworks/corpus-cli/internal/chunkers"
	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
	"github.com/corpusworks/corpus-cli/internal/loaders"
	"github.com/corpusworks/corpus-cli/internal/logger"
)

var _ driving.Ingestor = (*IngestionPipeline)(nil)

// IngestConfig tunes the pipeline.
type IngestConfig struct {
	// Workers bounds the loading/chunking worker pool (default 4).
	Workers int

	// BatchSize is how many chunks accumulate before a store flush
	// (default 50).
	BatchSize int

	// SkipExisting drops chunks whose ids are already stored.
	SkipExisting bool

	// Extensions is the default allow-list for directory walks. Empty
	// means every registered loader extension.
	Extensions []string

	// EmbedRateLimit caps store flushes per second. Zero disables the
	// limiter.
	EmbedRateLimit rate.Limit
}

// IngestionPipeline loads files concurrently, chunks and enriches them,
// and stores the chunks in embedding batches. Loading fans out over a
// bounded worker pool; a single consumer owns batching and flushing so
// the store sees one writer.
type IngestionPipeline struct {
	store    driven.VectorStore
	registry *loaders.Registry
	tables   *chunkers.TableChunker
	splitter *chunkers.SemanticChunker
	enricher *chunkers.Enricher
	limiter  *rate.Limiter
	cfg      IngestConfig
}

// NewIngestionPipeline wires a pipeline.
func NewIngestionPipeline(
	store driven.VectorStore,
	registry *loaders.Registry,
	splitter *chunkers.SemanticChunker,
	enricher *chunkers.Enricher,
	cfg IngestConfig,
) *IngestionPipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	var limiter *rate.Limiter
	if cfg.EmbedRateLimit > 0 {
		limiter = rate.NewLimiter(cfg.EmbedRateLimit, 1)
	}
	return &IngestionPipeline{
		store:    store,
		registry: registry,
		tables:   chunkers.NewTableChunker(),
		splitter: splitter,
		enricher: enricher,
		limiter:  limiter,
		cfg:      cfg,
	}
}

// fileState tracks one file's progress through the run so flush
// outcomes can be attributed per file.
type fileState struct {
	path    string
	stored  int
	skipped bool
	loadErr error
}

// loadResult carries one file's prepared chunks from a worker to the
// batching consumer.
type loadResult struct {
	state *fileState
	docs  []domain.Document
}

// pendingDoc ties a batched chunk back to its file.
type pendingDoc struct {
	doc   domain.Document
	state *fileState
}

// IngestDirectory implements driving.Ingestor.
func (p *IngestionPipeline) IngestDirectory(ctx context.Context, dir string, opts driving.IngestOptions) (*domain.IngestStats, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve document root: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory: %w", dir, domain.ErrInvalidInput)
	}

	files, err := listFiles(dir, p.allowList(opts.Extensions), opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	runID := uuid.NewString()
	logger.Section("Ingestion")
	logger.Info("run %s: %d files under %s (workers=%d, batch=%d)",
		runID, len(files), dir, p.cfg.Workers, p.cfg.BatchSize)

	stats := &domain.IngestStats{TotalFiles: len(files)}
	if len(files) == 0 {
		return stats, nil
	}

	skipExisting := p.cfg.SkipExisting && !opts.Force
	results := make(chan loadResult)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	go func() {
		defer close(results)
		for _, path := range files {
			g.Go(func() error {
				res := loadResult{state: &fileState{path: path}}
				docs, skipped, err := p.prepareFile(gctx, path, skipExisting)
				res.docs = docs
				res.state.skipped = skipped
				res.state.loadErr = err
				select {
				case results <- res:
				case <-gctx.Done():
				}
				// Per-file failures never abort the run.
				return nil
			})
		}
		g.Wait() //nolint:errcheck // workers always return nil
	}()

	// Single consumer: accumulate chunks and flush full batches.
	states := make([]*fileState, 0, len(files))
	var batch []pendingDoc
	for res := range results {
		states = append(states, res.state)
		if res.state.loadErr != nil || res.state.skipped {
			continue
		}
		for _, doc := range res.docs {
			batch = append(batch, pendingDoc{doc: doc, state: res.state})
		}
		for len(batch) >= p.cfg.BatchSize {
			p.flush(ctx, batch[:p.cfg.BatchSize])
			batch = batch[p.cfg.BatchSize:]
		}
	}
	if len(batch) > 0 {
		p.flush(ctx, batch)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, st := range states {
		switch {
		case st.loadErr != nil:
			stats.Failed++
			logger.Warn("failed %s: %v", st.path, st.loadErr)
		case st.skipped:
			stats.Skipped++
			logger.Debug("skipped %s: all chunks already stored", st.path)
		case st.stored > 0:
			stats.Successful++
			stats.TotalChunks += st.stored
		default:
			stats.Failed++
		}
	}

	logger.Info("run %s done: %d ingested, %d skipped, %d failed, %d chunks",
		runID, stats.Successful, stats.Skipped, stats.Failed, stats.TotalChunks)
	return stats, nil
}

// IngestFile implements driving.Ingestor.
func (p *IngestionPipeline) IngestFile(ctx context.Context, path string) (*driving.FileResult, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	docs, skipped, err := p.prepareFile(ctx, path, p.cfg.SkipExisting)
	if err != nil {
		return &driving.FileResult{Path: path, Status: driving.FileFailed, Err: err}, nil
	}
	if skipped {
		return &driving.FileResult{Path: path, Status: driving.FileSkipped}, nil
	}

	state := &fileState{path: path}
	batch := make([]pendingDoc, len(docs))
	for i, doc := range docs {
		batch[i] = pendingDoc{doc: doc, state: state}
	}
	p.flush(ctx, batch)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if state.stored == 0 {
		return &driving.FileResult{
			Path:   path,
			Status: driving.FileFailed,
			Err:    errors.New("no chunks stored"),
		}, nil
	}
	return &driving.FileResult{Path: path, Status: driving.FileIngested, ChunksAdded: state.stored}, nil
}

// Reindex implements driving.Ingestor. Deleting first means the
// skip-existing check cannot mask the re-add.
func (p *IngestionPipeline) Reindex(ctx context.Context, path string) (*driving.ReindexResult, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	deleted, err := p.store.DeleteBySource(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("delete existing chunks: %w", err)
	}
	logger.Info("reindex %s: removed %d stored chunks", path, deleted)

	res, err := p.IngestFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &driving.ReindexResult{Deleted: deleted, File: res}, nil
}

// StoreStats implements driving.Ingestor.
func (p *IngestionPipeline) StoreStats(ctx context.Context) (*domain.StoreStats, error) {
	return p.store.Stats(ctx)
}

// prepareFile loads, chunks and enriches one file. With skipExisting it
// also drops chunks already present in the store; skipped reports that
// nothing was left to add.
func (p *IngestionPipeline) prepareFile(ctx context.Context, path string, skipExisting bool) (docs []domain.Document, skipped bool, err error) {
	loader, err := p.registry.For(path)
	if err != nil {
		return nil, false, err
	}
	docs, err = loader.Load(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("load: %w", err)
	}
	if len(docs) == 0 {
		return nil, false, domain.ErrEmptyDocument
	}

	docs = p.tables.Chunk(docs)
	docs = p.splitter.Chunk(docs)
	docs = p.enricher.Enrich(docs)

	if !skipExisting {
		return docs, false, nil
	}
	fresh := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		exists, err := p.store.Exists(ctx, doc.MetaString(domain.MetaDocID))
		if err != nil {
			return nil, false, fmt.Errorf("check existing chunk: %w", err)
		}
		if !exists {
			fresh = append(fresh, doc)
		}
	}
	if len(fresh) == 0 {
		return nil, true, nil
	}
	return fresh, false, nil
}

// flush stores a batch of chunks. When the provider rejects a request
// as too large, the batch is bisected on an explicit work stack until
// sub-batches fit; a single chunk that still overflows is dropped and
// its file keeps whatever else got stored. Other store errors fail the
// current sub-batch without retry and the run moves on.
func (p *IngestionPipeline) flush(ctx context.Context, batch []pendingDoc) {
	stack := [][]pendingDoc{batch}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
		}

		docs := make([]domain.Document, len(cur))
		for i, pd := range cur {
			docs[i] = pd.doc
		}
		_, err := p.store.Add(ctx, docs)
		switch {
		case err == nil:
			for _, pd := range cur {
				pd.state.stored++
			}
		case errors.Is(err, domain.ErrRequestTooLarge):
			if len(cur) == 1 {
				logger.Warn("chunk %s from %s exceeds the provider size limit, dropped",
					cur[0].doc.MetaString(domain.MetaDocID), cur[0].state.path)
				continue
			}
			logger.Debug("batch of %d chunks too large, bisecting", len(cur))
			mid := len(cur) / 2
			stack = append(stack, cur[mid:], cur[:mid])
		default:
			logger.Warn("store %d chunks: %v", len(cur), err)
		}
	}
}

// allowList normalises the effective extension set for a run.
func (p *IngestionPipeline) allowList(override []string) map[string]bool {
	exts := p.cfg.Extensions
	if len(override) > 0 {
		exts = override
	}
	if len(exts) == 0 {
		exts = p.registry.SupportedExtensions()
	}
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// listFiles enumerates matching files under dir in a stable order.
// Hidden directories are not descended into.
func listFiles(dir string, exts map[string]bool, recursive bool) ([]string, error) {
	var files []string
	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if exts[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if exts[strings.ToLower(filepath.Ext(e.Name()))] {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
