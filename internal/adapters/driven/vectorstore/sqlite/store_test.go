package sqlite

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, 8)
	for i := range v {
		v[i] = float32(sum[i]) / 255
	}
	return v, nil
}

func (h hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (hashEmbedder) Dimensions() int              { return 8 }
func (hashEmbedder) ModelName() string            { return "hash" }
func (hashEmbedder) Ping(_ context.Context) error { return nil }
func (hashEmbedder) Close() error                 { return nil }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"), hashEmbedder{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func doc(id, content, source, docType string) domain.Document {
	return domain.NewDocument(content, map[string]any{
		domain.MetaDocID:   id,
		domain.MetaSource:  source,
		domain.MetaDocType: docType,
	})
}

func TestNewStoreRequiresEmbedder(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "test.db"), nil)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestAddExistsAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.Add(ctx, []domain.Document{
		doc("a1", "first chunk", "/docs/a.pdf", "pdf"),
		doc("a2", "second chunk", "/docs/a.pdf", "pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)

	ok, err := s.Exists(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAddUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{doc("a1", "old", "/docs/a.pdf", "pdf")})
	require.NoError(t, err)
	_, err = s.Add(ctx, []domain.Document{doc("a1", "new", "/docs/a.pdf", "pdf")})
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := s.Get(ctx, driven.GetRequest{IDs: []string{"a1"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new", recs[0].Content)
}

func TestAddAssignsContentHashIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := domain.NewDocument("first chunk", map[string]any{domain.MetaSource: "/docs/a.pdf"})
	second := domain.NewDocument("second chunk", map[string]any{domain.MetaSource: "/docs/b.pdf"})

	ids1, err := s.Add(ctx, []domain.Document{first})
	require.NoError(t, err)
	ids2, err := s.Add(ctx, []domain.Document{second})
	require.NoError(t, err)

	assert.Equal(t, []string{domain.DocID(first)}, ids1)
	assert.Equal(t, []string{domain.DocID(second)}, ids2)
	assert.NotEqual(t, ids1[0], ids2[0])

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "documents without doc_id must not collide")
}

func TestQueryNearestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{
		doc("match", "pump maintenance schedule", "/docs/a.pdf", "pdf"),
		doc("other", "unrelated budget report", "/docs/b.pdf", "pdf"),
	})
	require.NoError(t, err)

	hits, err := s.Query(ctx, "pump maintenance schedule", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "match", hits[0].ID)
	assert.Zero(t, hits[0].Distance)

	// metadata survives the JSON round trip
	assert.Equal(t, "pdf", domain.MetaStringOf(hits[0].Metadata, domain.MetaDocType))
}

func TestQueryFilterAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{
		doc("p1", "quarterly numbers", "/docs/a.pdf", "pdf"),
		doc("p2", "quarterly summary", "/docs/a.pdf", "pdf"),
		doc("c1", "quarterly table", "/docs/b.csv", "csv"),
	})
	require.NoError(t, err)

	hits, err := s.Query(ctx, "quarterly numbers", 1, map[string]any{domain.MetaDocType: "pdf"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].ID)
}

func TestDeleteBySource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{
		doc("a1", "one", "/docs/a.pdf", "pdf"),
		doc("a2", "two", "/docs/a.pdf", "pdf"),
		doc("b1", "three", "/docs/b.csv", "csv"),
	})
	require.NoError(t, err)

	deleted, err := s.DeleteBySource(ctx, "/docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStatsHistogram(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{
		doc("a1", "one", "/docs/a.pdf", "pdf"),
		doc("a2", "two", "/docs/a.pdf", "pdf"),
		doc("b1", "three", "/docs/b.csv", "csv"),
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, "sqlite", stats.Backend)
	assert.Equal(t, map[string]int{"pdf": 2, "csv": 1}, stats.DocTypes)
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0, 1, -0.5, 3.25}
	out := decodeVector(encodeVector(in))
	assert.Equal(t, in, out)
}
