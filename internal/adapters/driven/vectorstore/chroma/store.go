// Package chroma provides a vector store adapter for a Chroma server
// over its REST API. Embeddings are computed client-side so the
// collection never depends on a server-side embedding function.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:8000"
	DefaultCollection = "corpus"
	DefaultTimeout    = 30 * time.Second

	// statsSampleSize bounds the metadata sample behind Stats.
	statsSampleSize = 100
)

// Config holds configuration for the Chroma store.
type Config struct {
	// BaseURL is the server URL (default: http://localhost:8000).
	BaseURL string

	// Collection is the collection name (default: corpus).
	Collection string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Store talks to a Chroma server.
type Store struct {
	client     *http.Client
	baseURL    string
	collection string
	embedder   driven.EmbeddingService

	mu           sync.Mutex
	collectionID string
}

// NewStore creates a Chroma store. The collection is created on first
// use with get-or-create semantics and an L2 distance space.
func NewStore(cfg Config, embedder driven.EmbeddingService) (*Store, error) {
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Store{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		embedder:   embedder,
	}, nil
}

// collectionURL resolves the collection id lazily and returns its API
// path prefix.
func (s *Store) collectionURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collectionID != "" {
		return s.baseURL + "/api/v1/collections/" + s.collectionID, nil
	}

	reqBody := map[string]any{
		"name":          s.collection,
		"get_or_create": true,
		"metadata":      map[string]any{"hnsw:space": "l2"},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.baseURL+"/api/v1/collections", reqBody, &resp); err != nil {
		return "", fmt.Errorf("get or create collection %q: %w", s.collection, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("chroma: collection %q returned no id", s.collection)
	}
	s.collectionID = resp.ID
	return s.baseURL + "/api/v1/collections/" + s.collectionID, nil
}

// doJSON sends a JSON request and decodes a JSON response. out may be
// nil when the response body does not matter.
func (s *Store) doJSON(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("chroma error (status %d): failed to read response", resp.StatusCode)
		}
		return fmt.Errorf("chroma error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Add implements driven.VectorStore.
func (s *Store) Add(ctx context.Context, docs []domain.Document) ([]string, error) {
	prefix, err := s.collectionURL(ctx)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	ids := make([]string, len(docs))
	metadatas := make([]map[string]any, len(docs))
	for i, doc := range docs {
		id := doc.MetaString(domain.MetaDocID)
		if id == "" {
			id = domain.DocID(doc)
		}
		ids[i] = id
		metadatas[i] = doc.Metadata
	}

	// upsert keeps re-ingestion idempotent
	reqBody := map[string]any{
		"ids":        ids,
		"embeddings": vectors,
		"metadatas":  metadatas,
		"documents":  texts,
	}
	if err := s.doJSON(ctx, http.MethodPost, prefix+"/upsert", reqBody, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

// queryResponse is Chroma's nested query result format: one inner
// slice per query embedding.
type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// Query implements driven.VectorStore.
func (s *Store) Query(ctx context.Context, text string, n int, filter map[string]any) ([]driven.QueryHit, error) {
	prefix, err := s.collectionURL(ctx)
	if err != nil {
		return nil, err
	}
	qv, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"query_embeddings": [][]float32{qv},
		"n_results":        n,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if len(filter) > 0 {
		reqBody["where"] = filter
	}

	var resp queryResponse
	if err := s.doJSON(ctx, http.MethodPost, prefix+"/query", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	hits := make([]driven.QueryHit, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		hit := driven.QueryHit{ID: id}
		if i < len(resp.Documents[0]) {
			hit.Content = resp.Documents[0][i]
		}
		if i < len(resp.Metadatas[0]) {
			hit.Metadata = resp.Metadatas[0][i]
		}
		if i < len(resp.Distances[0]) {
			hit.Distance = resp.Distances[0][i]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// getResponse is Chroma's flat get result format.
type getResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

// Get implements driven.VectorStore.
func (s *Store) Get(ctx context.Context, req driven.GetRequest) ([]driven.Record, error) {
	prefix, err := s.collectionURL(ctx)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"include": []string{"documents", "metadatas"},
	}
	if len(req.IDs) > 0 {
		reqBody["ids"] = req.IDs
	}
	if len(req.Filter) > 0 {
		reqBody["where"] = req.Filter
	}
	if req.Limit > 0 {
		reqBody["limit"] = req.Limit
	}

	var resp getResponse
	if err := s.doJSON(ctx, http.MethodPost, prefix+"/get", reqBody, &resp); err != nil {
		return nil, err
	}

	out := make([]driven.Record, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		rec := driven.Record{ID: id}
		if i < len(resp.Documents) {
			rec.Content = resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			rec.Metadata = resp.Metadatas[i]
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteBySource implements driven.VectorStore. The ids are fetched
// first so the caller learns how many chunks went away.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	prefix, err := s.collectionURL(ctx)
	if err != nil {
		return 0, err
	}

	var resp getResponse
	getBody := map[string]any{"where": map[string]any{domain.MetaSource: source}}
	if err := s.doJSON(ctx, http.MethodPost, prefix+"/get", getBody, &resp); err != nil {
		return 0, err
	}
	if len(resp.IDs) == 0 {
		return 0, nil
	}

	delBody := map[string]any{"ids": resp.IDs}
	if err := s.doJSON(ctx, http.MethodPost, prefix+"/delete", delBody, nil); err != nil {
		return 0, err
	}
	return len(resp.IDs), nil
}

// Exists implements driven.VectorStore.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	recs, err := s.Get(ctx, driven.GetRequest{IDs: []string{id}})
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

// Count implements driven.VectorStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	prefix, err := s.collectionURL(ctx)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.doJSON(ctx, http.MethodGet, prefix+"/count", nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Stats implements driven.VectorStore. The doc-type histogram comes
// from a bounded metadata sample since Chroma has no aggregation API.
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.Get(ctx, driven.GetRequest{Limit: statsSampleSize})
	if err != nil {
		return nil, err
	}

	types := make(map[string]int)
	for _, rec := range recs {
		docType := domain.MetaStringOf(rec.Metadata, domain.MetaDocType)
		if docType == "" {
			docType = domain.DocTypeUnknown
		}
		types[docType]++
	}
	return &domain.StoreStats{Count: count, DocTypes: types, Backend: "chroma"}, nil
}

// Close implements driven.VectorStore.
func (s *Store) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
