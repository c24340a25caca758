// Package memory implements the embedding-backed long-term memory of the
// listener: a thread-safe store of text records with similarity query,
// importance-weighted pruning and semantic deduplication.
//
// The package splits into three layers:
//
//   - [VectorStore]: the narrow storage interface. Implementations embed and
//     persist records (memory/postgres on pgvector, memory/mock in-memory).
//   - [Pool]: a bounded pool of store clients acquired per call.
//   - [Service]: the domain operations: add with auto-prune, query with
//     access counting, importance pruning, deduplication.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"errors"
	"time"
)

// Errors surfaced by the memory layer.
var (
	// ErrEmptyText is returned when adding an empty or whitespace-only record.
	ErrEmptyText = errors.New("memory: empty text")

	// ErrStoreFailed wraps storage-backend failures during writes.
	ErrStoreFailed = errors.New("memory: store failed")

	// ErrQueryFailed wraps storage-backend failures during similarity queries.
	ErrQueryFailed = errors.New("memory: query failed")

	// ErrPoolExhausted indicates no pooled client became available within the
	// acquire timeout. Callers fall back to an ephemeral client.
	ErrPoolExhausted = errors.New("memory: client pool exhausted")
)

// Metadata is the per-record bookkeeping the memory layer maintains.
type Metadata struct {
	// Source is the capture origin: "audio", "screen", "user_query" or "llm".
	Source string

	// Timestamp is when the record was stored.
	Timestamp time.Time

	// AccessCount is incremented every time the record is returned by a
	// similarity query. Records with a high count are protected from pruning.
	AccessCount int

	// Extra holds caller-supplied metadata (window title, device name, …).
	Extra map[string]string
}

// Record is one stored memory.
type Record struct {
	ID       string
	Document string
	Metadata Metadata
}

// QueryResult pairs a retrieved record with its cosine distance from the
// query. Lower distance means higher similarity.
type QueryResult struct {
	Record
	Distance float64
}

// Filter narrows queries and listings. Zero fields match everything.
type Filter struct {
	// Source restricts results to records from one capture origin.
	Source string
}

// VectorStore is the storage backend for memory records. Implementations own
// the embedding step: Add and Query receive raw text.
type VectorStore interface {
	// Add persists records. IDs must be unique; re-adding an existing ID
	// replaces the record.
	Add(ctx context.Context, records []Record) error

	// Query returns the k records most similar to text, ordered by ascending
	// distance.
	Query(ctx context.Context, text string, k int, filter Filter) ([]QueryResult, error)

	// List returns all records matching filter, without embeddings. Used by
	// pruning and deduplication sweeps.
	List(ctx context.Context, filter Filter) ([]Record, error)

	// UpdateMetadata replaces the metadata of the record with the given ID.
	// Updating a missing record is not an error.
	UpdateMetadata(ctx context.Context, id string, meta Metadata) error

	// Delete removes the records with the given IDs. Missing IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
