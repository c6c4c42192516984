package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driving"
	"github.com/corpusworks/corpus-cli/internal/logger"
)

var _ driving.Retriever = (*HybridRetriever)(nil)

// RetrieveConfig tunes the hybrid retriever.
type RetrieveConfig struct {
	// TopK is the default result cap (default 5).
	TopK int

	// SimilarityThreshold drops semantic matches scoring below it
	// (default 0.35).
	SimilarityThreshold float64

	// ExactScanLimit bounds how many stored chunks the exact scan
	// samples (default 500).
	ExactScanLimit int
}

// HybridRetriever combines literal identifier matching with vector
// similarity. Exact matches always rank before semantic ones: a user
// asking for a specific part or procedure number wants the chunk that
// contains it, not a paraphrase.
type HybridRetriever struct {
	store driven.VectorStore
	cfg   RetrieveConfig
}

// NewHybridRetriever wires a retriever over the store.
func NewHybridRetriever(store driven.VectorStore, cfg RetrieveConfig) *HybridRetriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.35
	}
	if cfg.ExactScanLimit <= 0 {
		cfg.ExactScanLimit = 500
	}
	return &HybridRetriever{store: store, cfg: cfg}
}

// codePatterns match the identifier shapes that show up in technical
// documents: separator-joined part numbers (12-345A), word-number
// tokens (iso9001) and uppercase designators followed by digits (QM12).
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+[-_/.]\d+[A-Za-z0-9]*\b`),
	regexp.MustCompile(`\b[A-Za-z]+\d+\b`),
	regexp.MustCompile(`\b[A-Z]{2,}\d+\b`),
}

// ExtractCodes pulls identifier-like tokens out of a query, deduped
// case-insensitively with the first occurrence winning.
func ExtractCodes(query string) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, re := range codePatterns {
		for _, m := range re.FindAllString(query, -1) {
			key := strings.ToLower(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			codes = append(codes, m)
		}
	}
	return codes
}

// Retrieve implements driving.Retriever. Exact-scan failures degrade to
// semantic-only results; semantic failures propagate since without them
// there is nothing left to return.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, opts driving.RetrieveOptions) ([]domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	k := opts.TopK
	if k <= 0 {
		k = r.cfg.TopK
	}
	filter := buildFilter(opts)

	logger.Section("Retrieval")

	var exact []domain.RetrievalResult
	if codes := ExtractCodes(query); len(codes) > 0 {
		logger.Debug("extracted codes: %v", codes)
		var err error
		exact, err = r.exactMatches(ctx, codes, filter)
		if err != nil {
			logger.Warn("exact scan failed, continuing with semantic only: %v", err)
			exact = nil
		}
	}

	semantic, err := r.semanticMatches(ctx, query, k, filter)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	merged := make([]domain.RetrievalResult, 0, len(exact)+len(semantic))
	seen := make(map[string]bool)
	for _, res := range exact {
		if !seen[res.ID] {
			seen[res.ID] = true
			merged = append(merged, res)
		}
	}
	for _, res := range semantic {
		if !seen[res.ID] {
			seen[res.ID] = true
			merged = append(merged, res)
		}
	}
	if len(merged) > k {
		merged = merged[:k]
	}

	logger.Info("%d exact + %d semantic, returning %d", len(exact), len(semantic), len(merged))
	return merged, nil
}

func buildFilter(opts driving.RetrieveOptions) map[string]any {
	filter := make(map[string]any)
	if opts.DocType != "" {
		filter[domain.MetaDocType] = opts.DocType
	}
	if opts.Category != "" {
		filter[domain.MetaCategory] = opts.Category
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// exactMatches scans a bounded sample of stored chunks for literal code
// occurrences, case-insensitively. The cap keeps the scan cheap on
// large stores; codes in unsampled chunks can still surface through the
// semantic path.
func (r *HybridRetriever) exactMatches(ctx context.Context, codes []string, filter map[string]any) ([]domain.RetrievalResult, error) {
	records, err := r.store.Get(ctx, driven.GetRequest{Filter: filter, Limit: r.cfg.ExactScanLimit})
	if err != nil {
		return nil, err
	}

	lowered := make([]string, len(codes))
	for i, code := range codes {
		lowered[i] = strings.ToLower(code)
	}

	var out []domain.RetrievalResult
	for _, rec := range records {
		content := strings.ToLower(rec.Content)
		hits := 0
		for _, code := range lowered {
			hits += strings.Count(content, code)
		}
		if hits == 0 {
			continue
		}
		out = append(out, domain.RetrievalResult{
			ID:          rec.ID,
			Content:     rec.Content,
			Metadata:    rec.Metadata,
			Similarity:  1.0,
			Match:       domain.MatchExact,
			Occurrences: hits,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Occurrences > out[j].Occurrences
	})
	return out, nil
}

func (r *HybridRetriever) semanticMatches(ctx context.Context, query string, k int, filter map[string]any) ([]domain.RetrievalResult, error) {
	hits, err := r.store.Query(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	var out []domain.RetrievalResult
	for _, hit := range hits {
		score := domain.SimilarityFromDistance(hit.Distance)
		if score < r.cfg.SimilarityThreshold {
			logger.Debug("dropping %s: similarity %.3f below threshold %.2f",
				hit.ID, score, r.cfg.SimilarityThreshold)
			continue
		}
		out = append(out, domain.RetrievalResult{
			ID:         hit.ID,
			Content:    hit.Content,
			Metadata:   hit.Metadata,
			Distance:   hit.Distance,
			Similarity: score,
			Match:      domain.MatchSemantic,
		})
	}
	return out, nil
}
