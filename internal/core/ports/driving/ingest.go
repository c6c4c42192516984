// Package driving defines the inbound ports: the use-case interfaces
// exposed to the CLI.
package driving

import (
	"context"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
)

// IngestOptions tunes a directory ingestion run.
type IngestOptions struct {
	// Recursive descends into subdirectories.
	Recursive bool

	// Extensions overrides the configured allow-list. Entries may be
	// given with or without the leading dot.
	Extensions []string

	// Force re-ingests chunks even when their ids already exist.
	Force bool
}

// FileStatus is the outcome of ingesting a single file.
type FileStatus string

const (
	FileIngested FileStatus = "ingested"
	FileSkipped  FileStatus = "skipped"
	FileFailed   FileStatus = "failed"
)

// FileResult reports the outcome for one file.
type FileResult struct {
	Path        string
	Status      FileStatus
	ChunksAdded int
	Err         error
}

// ReindexResult reports a delete-then-ingest cycle for one file.
type ReindexResult struct {
	Deleted int
	File    *FileResult
}

// Ingestor drives the ingestion pipeline.
type Ingestor interface {
	// IngestDirectory indexes every supported file under dir. A single
	// file's failure never aborts the run.
	IngestDirectory(ctx context.Context, dir string, opts IngestOptions) (*domain.IngestStats, error)

	// IngestFile indexes one file. Failures are reported in the result,
	// not as an error.
	IngestFile(ctx context.Context, path string) (*FileResult, error)

	// Reindex removes all stored chunks for the file and ingests it
	// again.
	Reindex(ctx context.Context, path string) (*ReindexResult, error)

	// StoreStats reports the backing store's statistics.
	StoreStats(ctx context.Context) (*domain.StoreStats, error)
}
