// Package sqlite provides a vector store backed by an embedded SQLite
// database. Chunks, their metadata and their embeddings live in one
// file; queries are a brute-force scan, which is fine for the corpus
// sizes a local index holds.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// Store persists chunks and embeddings in SQLite.
type Store struct {
	db       *sql.DB
	embedder driven.EmbeddingService
}

// NewStore opens (or creates) the database at dbPath and applies the
// schema. WAL mode keeps reads cheap while the pipeline writes.
func NewStore(dbPath string, embedder driven.EmbeddingService) (*Store, error) {
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, embedder: embedder}, nil
}

// Add implements driven.VectorStore. Existing ids are replaced.
func (s *Store) Add(ctx context.Context, docs []domain.Document) ([]string, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := doc.MetaString(domain.MetaDocID)
		if id == "" {
			id = domain.DocID(doc)
		}
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		source := doc.MetaString(domain.MetaSource)
		if _, err := stmt.ExecContext(ctx, id, source, doc.Content, string(metaJSON), encodeVector(vectors[i])); err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", id, err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// Query implements driven.VectorStore.
func (s *Store) Query(ctx context.Context, text string, n int, filter map[string]any) ([]driven.QueryHit, error) {
	qv, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var hits []driven.QueryHit
	for rows.Next() {
		var id, content, metaJSON string
		var blob []byte
		if err := rows.Scan(&id, &content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		md, err := decodeMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(md, filter) {
			continue
		}
		hits = append(hits, driven.QueryHit{
			ID:       id,
			Content:  content,
			Metadata: md,
			Distance: l2Distance(qv, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// Get implements driven.VectorStore.
func (s *Store) Get(ctx context.Context, req driven.GetRequest) ([]driven.Record, error) {
	query := `SELECT id, content, metadata FROM chunks`
	var args []any
	if len(req.IDs) > 0 {
		placeholders := strings.Repeat("?,", len(req.IDs))
		query += ` WHERE id IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, id := range req.IDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []driven.Record
	for rows.Next() {
		var id, content, metaJSON string
		if err := rows.Scan(&id, &content, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		md, err := decodeMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		if len(req.IDs) == 0 && !matchesFilter(md, req.Filter) {
			continue
		}
		out = append(out, driven.Record{ID: id, Content: content, Metadata: md})
		if len(req.IDs) == 0 && req.Limit > 0 && len(out) >= req.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// DeleteBySource implements driven.VectorStore.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("delete by source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Exists implements driven.VectorStore.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chunks WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check id: %w", err)
	}
	return true, nil
}

// Count implements driven.VectorStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Stats implements driven.VectorStore.
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(json_extract(metadata, '$.doc_type'), 'unknown'), COUNT(*)
		FROM chunks GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("doc type histogram: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	types := make(map[string]int)
	for rows.Next() {
		var docType string
		var n int
		if err := rows.Scan(&docType, &n); err != nil {
			return nil, fmt.Errorf("scan histogram row: %w", err)
		}
		types[docType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate histogram: %w", err)
	}
	return &domain.StoreStats{Count: count, DocTypes: types, Backend: "sqlite"}, nil
}

// Close implements driven.VectorStore.
func (s *Store) Close() error {
	return s.db.Close()
}

func decodeMetadata(metaJSON string) (map[string]any, error) {
	var md map[string]any
	if err := json.Unmarshal([]byte(metaJSON), &md); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return md, nil
}

func matchesFilter(md, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprintf("%v", md[k]) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// encodeVector packs float32 values little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// l2Distance is the squared Euclidean distance.
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
