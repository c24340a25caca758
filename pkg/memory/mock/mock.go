// Package mock provides an in-memory memory.VectorStore test double with
// scriptable distances.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/bigear-ai/bigear/pkg/memory"
)

// Compile-time assertion.
var _ memory.VectorStore = (*Store)(nil)

// Store holds records in a map. Similarity is scripted: Distances maps
// "queryText|recordID" to a cosine distance; unscripted pairs default to
// DefaultDistance (0.5 when zero) so everything is retrievable but nothing
// looks like a duplicate unless the test says so.
type Store struct {
	mu sync.Mutex

	records map[string]memory.Record

	// Distances scripts query results, keyed "query|id".
	Distances map[string]float64

	// DefaultDistance applies to unscripted pairs. Zero means 0.5.
	DefaultDistance float64

	// AddErr, QueryErr, ListErr fail the corresponding method when non-nil.
	AddErr   error
	QueryErr error
	ListErr  error

	// QueryCalls counts Query invocations.
	QueryCalls int

	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		records:   make(map[string]memory.Record),
		Distances: make(map[string]float64),
	}
}

// SetDistance scripts the distance between a query text and a record ID.
func (s *Store) SetDistance(query, id string, d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Distances[query+"|"+id] = d
}

// Add implements memory.VectorStore.
func (s *Store) Add(_ context.Context, records []memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AddErr != nil {
		return s.AddErr
	}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

// Query implements memory.VectorStore.
func (s *Store) Query(_ context.Context, text string, k int, filter memory.Filter) ([]memory.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCalls++
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}

	def := s.DefaultDistance
	if def == 0 {
		def = 0.5
	}

	var results []memory.QueryResult
	for id, r := range s.records {
		if filter.Source != "" && r.Metadata.Source != filter.Source {
			continue
		}
		d, ok := s.Distances[text+"|"+id]
		if !ok {
			if r.Document == text {
				d = 0 // self-match
			} else {
				d = def
			}
		}
		results = append(results, memory.QueryResult{Record: r, Distance: d})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// List implements memory.VectorStore.
func (s *Store) List(_ context.Context, filter memory.Filter) ([]memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	var out []memory.Record
	for _, r := range s.records {
		if filter.Source != "" && r.Metadata.Source != filter.Source {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateMetadata implements memory.VectorStore.
func (s *Store) UpdateMetadata(_ context.Context, id string, meta memory.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.Metadata = meta
		s.records[id] = r
	}
	return nil
}

// Delete implements memory.VectorStore.
func (s *Store) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Count implements memory.VectorStore.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

// Close implements memory.VectorStore.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Get returns a stored record by ID for test assertions.
func (s *Store) Get(id string) (memory.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}
