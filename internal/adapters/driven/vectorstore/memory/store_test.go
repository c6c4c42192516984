package memory

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

// hashEmbedder derives a deterministic vector from content so nearest
// neighbour assertions are stable without a real embedding service.
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

func doc(id, content, source, docType string) domain.Document {
	return domain.NewDocument(content, map[string]any{
		domain.MetaDocID:   id,
		domain.MetaSource:  source,
		domain.MetaDocType: docType,
	})
}

func TestAddAndExists(t *testing.T) {
	s := NewStore(hashEmbedder{})
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

	ok, err = s.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAddUpsertsByID(t *testing.T) {
	s := NewStore(hashEmbedder{})
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{doc("a1", "old content", "/docs/a.pdf", "pdf")})
	require.NoError(t, err)
	_, err = s.Add(ctx, []domain.Document{doc("a1", "new content", "/docs/a.pdf", "pdf")})
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := s.Get(ctx, driven.GetRequest{IDs: []string{"a1"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new content", recs[0].Content)
}

func TestAddFallsBackToContentHashID(t *testing.T) {
	s := NewStore(hashEmbedder{})
	ctx := context.Background()

	noID := domain.NewDocument("bare chunk", map[string]any{domain.MetaSource: "/docs/a.pdf"})

	ids, err := s.Add(ctx, []domain.Document{noID})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.DocID(noID)}, ids)

	// adding the same content again upserts instead of duplicating
	again, err := s.Add(ctx, []domain.Document{noID})
	require.NoError(t, err)
	assert.Equal(t, ids, again)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueryRanksByDistance(t *testing.T) {
	s := NewStore(hashEmbedder{})
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{
		doc("match", "pump maintenance schedule", "/docs/a.pdf", "pdf"),
		doc("other", "unrelated budget report", "/docs/b.pdf", "pdf"),
	})
	require.NoError(t, err)

	// querying with identical text yields distance zero for that record
	hits, err := s.Query(ctx, "pump maintenance schedule", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "match", hits[0].ID)
	assert.Zero(t, hits[0].Distance)
	assert.Greater(t, hits[1].Distance, 0.0)
}

func TestQueryFilter(t *testing.T) {
	s := NewStore(hashEmbedder{})
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{
		doc("p", "quarterly numbers", "/docs/a.pdf", "pdf"),
		doc("c", "quarterly numbers table", "/docs/b.csv", "csv"),
	})
	require.NoError(t, err)

	hits, err := s.Query(ctx, "quarterly numbers", 10, map[string]any{domain.MetaDocType: "csv"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].ID)
}

func TestQueryWithoutEmbedder(t *testing.T) {
	s := NewStore(nil)

	_, err := s.Add(context.Background(), []domain.Document{doc("a1", "content", "/a.pdf", "pdf")})
	require.NoError(t, err)

	_, err = s.Query(context.Background(), "anything", 5, nil)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestGetWithFilterAndLimit(t *testing.T) {
	s := NewStore(hashEmbedder{})
	ctx := context.Background()

	_, err := s.Add(ctx, []domain.Document{
		doc("a1", "one", "/docs/a.pdf", "pdf"),
		doc("a2", "two", "/docs/a.pdf", "pdf"),
		doc("b1", "three", "/docs/b.csv", "csv"),
	})
	require.NoError(t, err)

	recs, err := s.Get(ctx, driven.GetRequest{Filter: map[string]any{domain.MetaDocType: "pdf"}})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.Get(ctx, driven.GetRequest{Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a1", recs[0].ID, "insertion order")
}

func TestDeleteBySource(t *testing.T) {
	s := NewStore(hashEmbedder{})
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

	ok, err := s.Exists(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	// the survivor is still addressable after the index rebuild
	ok, err = s.Exists(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	s := NewStore(hashEmbedder{})
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
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, map[string]int{"pdf": 2, "csv": 1}, stats.DocTypes)
}
