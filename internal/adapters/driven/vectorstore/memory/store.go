// Package memory provides an in-memory vector store. It backs tests
// and the `memory` backend, which is useful for trying the pipeline
// without any external service.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

type record struct {
	id       string
	content  string
	metadata map[string]any
	vector   []float32
}

// Store keeps chunks in insertion order with unique ids.
type Store struct {
	mu       sync.RWMutex
	embedder driven.EmbeddingService
	recs     []record
	index    map[string]int
}

// NewStore creates an in-memory store. embedder may be nil, in which
// case Query fails with domain.ErrEmbeddingUnavailable but all other
// operations work.
func NewStore(embedder driven.EmbeddingService) *Store {
	return &Store{
		embedder: embedder,
		index:    make(map[string]int),
	}
}

// Add implements driven.VectorStore. Existing ids are replaced.
func (s *Store) Add(ctx context.Context, docs []domain.Document) ([]string, error) {
	var vectors [][]float32
	if s.embedder != nil {
		texts := make([]string, len(docs))
		for i, doc := range docs {
			texts[i] = doc.Content
		}
		var err error
		vectors, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := doc.MetaString(domain.MetaDocID)
		if id == "" {
			id = domain.DocID(doc)
		}
		rec := record{id: id, content: doc.Content, metadata: doc.CloneMetadata()}
		if vectors != nil {
			rec.vector = vectors[i]
		}
		if j, ok := s.index[id]; ok {
			s.recs[j] = rec
		} else {
			s.index[id] = len(s.recs)
			s.recs = append(s.recs, rec)
		}
		ids[i] = id
	}
	return ids, nil
}

// Query implements driven.VectorStore with a brute-force L2 scan.
func (s *Store) Query(ctx context.Context, text string, n int, filter map[string]any) ([]driven.QueryHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	qv, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []driven.QueryHit
	for _, rec := range s.recs {
		if !matchesFilter(rec.metadata, filter) {
			continue
		}
		hits = append(hits, driven.QueryHit{
			ID:       rec.id,
			Content:  rec.content,
			Metadata: cloneMeta(rec.metadata),
			Distance: l2Distance(qv, rec.vector),
		})
	}
	sortHits(hits)
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// Get implements driven.VectorStore.
func (s *Store) Get(_ context.Context, req driven.GetRequest) ([]driven.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []driven.Record
	if len(req.IDs) > 0 {
		for _, id := range req.IDs {
			if j, ok := s.index[id]; ok {
				rec := s.recs[j]
				out = append(out, driven.Record{ID: rec.id, Content: rec.content, Metadata: cloneMeta(rec.metadata)})
			}
		}
		return out, nil
	}
	for _, rec := range s.recs {
		if !matchesFilter(rec.metadata, req.Filter) {
			continue
		}
		out = append(out, driven.Record{ID: rec.id, Content: rec.content, Metadata: cloneMeta(rec.metadata)})
		if req.Limit > 0 && len(out) >= req.Limit {
			break
		}
	}
	return out, nil
}

// DeleteBySource implements driven.VectorStore.
func (s *Store) DeleteBySource(_ context.Context, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.recs[:0]
	deleted := 0
	for _, rec := range s.recs {
		if domain.MetaStringOf(rec.metadata, domain.MetaSource) == source {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.recs = kept
	s.index = make(map[string]int, len(s.recs))
	for i, rec := range s.recs {
		s.index[rec.id] = i
	}
	return deleted, nil
}

// Exists implements driven.VectorStore.
func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok, nil
}

// Count implements driven.VectorStore.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs), nil
}

// Stats implements driven.VectorStore.
func (s *Store) Stats(_ context.Context) (*domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make(map[string]int)
	for _, rec := range s.recs {
		docType := domain.MetaStringOf(rec.metadata, domain.MetaDocType)
		if docType == "" {
			docType = domain.DocTypeUnknown
		}
		types[docType]++
	}
	return &domain.StoreStats{Count: len(s.recs), DocTypes: types, Backend: "memory"}, nil
}

// Close implements driven.VectorStore.
func (s *Store) Close() error { return nil }

func cloneMeta(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func matchesFilter(md, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprintf("%v", md[k]) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// l2Distance is the squared Euclidean distance, the same metric the
// other backends report.
func l2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// sortHits orders ascending by distance, stable on insertion order.
func sortHits(hits []driven.QueryHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
}
