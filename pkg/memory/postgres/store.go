// Package postgres provides a PostgreSQL-backed memory.VectorStore using
// pgvector for cosine similarity. Records are embedded on insert via an
// embeddings.Provider; the pgvector extension must be available in the target
// database ([Migrate] installs it via CREATE EXTENSION IF NOT EXISTS).
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/bigear-ai/bigear/pkg/memory"
	"github.com/bigear-ai/bigear/pkg/provider/embeddings"
)

// Compile-time assertion.
var _ memory.VectorStore = (*Store)(nil)

// Store implements memory.VectorStore on a pgxpool.Pool. All methods are safe
// for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// NewStore connects to the database at dsn, registers pgvector types on every
// connection, and runs [Migrate] with the embedder's dimension.
func NewStore(ctx context.Context, dsn string, embedder embeddings.Provider) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres memory: ping: %w", err)
	}
	if err := Migrate(ctx, pool, embedder.Dimensions()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres memory: migrate: %w", err)
	}
	return &Store{pool: pool, embedder: embedder}, nil
}

// Migrate ensures the memories table, its HNSW index and the vector extension
// exist. Idempotent and safe to run on every start. Changing the embedding
// dimension after the first migration requires a manual schema change.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id            TEXT         PRIMARY KEY,
    document      TEXT         NOT NULL,
    embedding     vector(%d),
    source        TEXT         NOT NULL DEFAULT '',
    timestamp     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    access_count  INT          NOT NULL DEFAULT 0,
    extra         JSONB        NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_memories_source
    ON memories (source);

CREATE INDEX IF NOT EXISTS idx_memories_timestamp
    ON memories (timestamp);

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);
`, dimensions)

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres memory: migrate: %w", err)
	}
	return nil
}

// Add implements memory.VectorStore. All documents are embedded in one batch
// call before insertion.
func (s *Store) Add(ctx context.Context, records []memory.Record) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Document
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("postgres memory: embed: %w", err)
	}

	const q = `
		INSERT INTO memories (id, document, embedding, source, timestamp, access_count, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    document     = EXCLUDED.document,
		    embedding    = EXCLUDED.embedding,
		    source       = EXCLUDED.source,
		    timestamp    = EXCLUDED.timestamp,
		    access_count = EXCLUDED.access_count,
		    extra        = EXCLUDED.extra`

	batch := &pgx.Batch{}
	for i, r := range records {
		extra := r.Metadata.Extra
		if extra == nil {
			extra = map[string]string{}
		}
		batch.Queue(q,
			r.ID,
			r.Document,
			pgvector.NewVector(vecs[i]),
			r.Metadata.Source,
			r.Metadata.Timestamp,
			r.Metadata.AccessCount,
			extra,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres memory: add: %w", err)
	}
	return nil
}

// Query implements memory.VectorStore using cosine distance.
func (s *Store) Query(ctx context.Context, text string, k int, filter memory.Filter) ([]memory.QueryResult, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: embed query: %w", err)
	}

	args := []any{pgvector.NewVector(vec)}
	where := ""
	if filter.Source != "" {
		args = append(args, filter.Source)
		where = fmt.Sprintf("WHERE source = $%d", len(args))
	}
	args = append(args, k)

	q := fmt.Sprintf(`
		SELECT id, document, source, timestamp, access_count, extra,
		       embedding <=> $1 AS distance
		FROM   memories
		%s
		ORDER  BY distance
		LIMIT  $%d`, where, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.QueryResult, error) {
		var qr memory.QueryResult
		if err := row.Scan(
			&qr.ID,
			&qr.Document,
			&qr.Metadata.Source,
			&qr.Metadata.Timestamp,
			&qr.Metadata.AccessCount,
			&qr.Metadata.Extra,
			&qr.Distance,
		); err != nil {
			return memory.QueryResult{}, err
		}
		return qr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres memory: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.QueryResult{}
	}
	return results, nil
}

// List implements memory.VectorStore.
func (s *Store) List(ctx context.Context, filter memory.Filter) ([]memory.Record, error) {
	args := []any{}
	where := ""
	if filter.Source != "" {
		args = append(args, filter.Source)
		where = "WHERE source = $1"
	}

	q := fmt.Sprintf(`
		SELECT id, document, source, timestamp, access_count, extra
		FROM   memories
		%s
		ORDER  BY timestamp`, where)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: list: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Record, error) {
		var r memory.Record
		if err := row.Scan(
			&r.ID,
			&r.Document,
			&r.Metadata.Source,
			&r.Metadata.Timestamp,
			&r.Metadata.AccessCount,
			&r.Metadata.Extra,
		); err != nil {
			return memory.Record{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres memory: scan rows: %w", err)
	}
	if records == nil {
		records = []memory.Record{}
	}
	return records, nil
}

// UpdateMetadata implements memory.VectorStore.
func (s *Store) UpdateMetadata(ctx context.Context, id string, meta memory.Metadata) error {
	extra := meta.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	const q = `
		UPDATE memories
		SET    source = $2, timestamp = $3, access_count = $4, extra = $5
		WHERE  id = $1`
	if _, err := s.pool.Exec(ctx, q, id, meta.Source, meta.Timestamp, meta.AccessCount, extra); err != nil {
		return fmt.Errorf("postgres memory: update metadata: %w", err)
	}
	return nil
}

// Delete implements memory.VectorStore.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	q := fmt.Sprintf("DELETE FROM memories WHERE id IN (%s)", strings.Join(placeholders, ", "))
	if _, err := s.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("postgres memory: delete: %w", err)
	}
	return nil
}

// Count implements memory.VectorStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM memories").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres memory: count: %w", err)
	}
	return n, nil
}

// Close implements memory.VectorStore.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
