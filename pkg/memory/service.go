package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Defaults for the service configuration.
const (
	DefaultPruneThreshold       = 10000
	DefaultPruneKeep            = 5000
	DefaultProtectedAccessCount = 5
	DefaultQueryK               = 5

	DefaultRecencyWeight    = 0.25
	DefaultAccessWeight     = 0.50
	DefaultUniquenessWeight = 0.25

	// DefaultClusterThreshold scales neighbor distance into a uniqueness
	// score: uniqueness = min(1, avg_dist / (1 - threshold)).
	DefaultClusterThreshold = 0.75

	// DefaultDupThreshold is the cosine-similarity bar above which two
	// records count as duplicates.
	DefaultDupThreshold = 0.92

	uniquenessSampleSize = 1000
	uniquenessNeighbors  = 10
	selfDistanceEpsilon  = 1e-3

	dedupSampleSize = 500
	dedupNeighbors  = 5
)

// ServiceConfig tunes the memory service. The zero value selects all
// defaults.
type ServiceConfig struct {
	// PruneThreshold triggers importance pruning when the record count
	// exceeds it after an add.
	PruneThreshold int

	// PruneKeep is the target record count after pruning.
	PruneKeep int

	// ProtectedAccessCount protects records queried at least this often
	// from pruning, regardless of score.
	ProtectedAccessCount int

	// QueryK is the default top-k for Query when the caller passes k <= 0.
	QueryK int

	// RecencyWeight, AccessWeight and UniquenessWeight combine into the
	// importance score. They should sum to 1.
	RecencyWeight    float64
	AccessWeight     float64
	UniquenessWeight float64

	// ClusterThreshold and DupThreshold tune uniqueness scaling and
	// duplicate detection.
	ClusterThreshold float64
	DupThreshold     float64

	// WorkerID distinguishes concurrent services writing to the same
	// store; it is baked into generated record IDs.
	WorkerID int
}

func (c *ServiceConfig) applyDefaults() {
	if c.PruneThreshold == 0 {
		c.PruneThreshold = DefaultPruneThreshold
	}
	if c.PruneKeep == 0 {
		c.PruneKeep = DefaultPruneKeep
	}
	if c.ProtectedAccessCount == 0 {
		c.ProtectedAccessCount = DefaultProtectedAccessCount
	}
	if c.QueryK == 0 {
		c.QueryK = DefaultQueryK
	}
	if c.RecencyWeight == 0 && c.AccessWeight == 0 && c.UniquenessWeight == 0 {
		c.RecencyWeight = DefaultRecencyWeight
		c.AccessWeight = DefaultAccessWeight
		c.UniquenessWeight = DefaultUniquenessWeight
	}
	if c.ClusterThreshold == 0 {
		c.ClusterThreshold = DefaultClusterThreshold
	}
	if c.DupThreshold == 0 {
		c.DupThreshold = DefaultDupThreshold
	}
}

// Item is one record for AddBatch.
type Item struct {
	Text   string
	Source string
	Extra  map[string]string
}

// Service implements the memory operations over a client pool.
//
// All methods are safe for concurrent use.
type Service struct {
	pool   *Pool
	cfg    ServiceConfig
	logger *slog.Logger

	seq atomic.Uint64

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a Service over pool.
func NewService(pool *Pool, cfg ServiceConfig, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, cfg: cfg, logger: logger, now: time.Now}
}

// Add stores one text record and returns its ID. Empty or whitespace-only
// text fails with ErrEmptyText. When the post-insert count exceeds the prune
// threshold, importance pruning runs inline.
func (s *Service) Add(ctx context.Context, text, source string, extra map[string]string) (string, error) {
	ids, err := s.AddBatch(ctx, []Item{{Text: text, Source: source, Extra: extra}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddBatch stores several records in one store round trip.
func (s *Service) AddBatch(ctx context.Context, items []Item) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	now := s.now()
	records := make([]Record, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			return nil, ErrEmptyText
		}
		id := s.nextID(item.Source, now)
		ids = append(ids, id)
		records = append(records, Record{
			ID:       id,
			Document: item.Text,
			Metadata: Metadata{
				Source:      item.Source,
				Timestamp:   now,
				AccessCount: 0,
				Extra:       item.Extra,
			},
		})
	}

	store, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire: %w", ErrStoreFailed, err)
	}
	defer release()

	if err := store.Add(ctx, records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	count, err := store.Count(ctx)
	if err == nil && count > s.cfg.PruneThreshold {
		if err := s.pruneOn(ctx, store, s.cfg.PruneKeep); err != nil {
			s.logger.Error("importance pruning failed", "err", err)
		}
	}
	return ids, nil
}

// Query returns the documents of the top-k records most similar to text and
// increments their access counts. Failures are non-fatal: the result is an
// empty slice and the error is logged.
func (s *Service) Query(ctx context.Context, text string, k int, filter Filter) []string {
	if k <= 0 {
		k = s.cfg.QueryK
	}

	store, release, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Error("memory query failed", "err", fmt.Errorf("%w: acquire: %w", ErrQueryFailed, err))
		return nil
	}
	defer release()

	results, err := store.Query(ctx, text, k, filter)
	if err != nil {
		s.logger.Error("memory query failed", "err", fmt.Errorf("%w: %w", ErrQueryFailed, err))
		return nil
	}

	docs := make([]string, 0, len(results))
	for _, r := range results {
		docs = append(docs, r.Document)
		meta := r.Metadata
		meta.AccessCount++
		if err := store.UpdateMetadata(ctx, r.ID, meta); err != nil {
			s.logger.Debug("access count update failed", "id", r.ID, "err", err)
		}
	}
	return docs
}

// Count returns the number of stored records.
func (s *Service) Count(ctx context.Context) (int, error) {
	store, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: acquire: %w", ErrQueryFailed, err)
	}
	defer release()
	return store.Count(ctx)
}

// Prune runs importance pruning down to keep records. keep <= 0 selects the
// configured PruneKeep.
func (s *Service) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		keep = s.cfg.PruneKeep
	}
	store, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquire: %w", ErrStoreFailed, err)
	}
	defer release()
	return s.pruneOn(ctx, store, keep)
}

// nextID builds "{source}_{ms}_{worker}_{seq}". The worker and sequence parts
// keep IDs unique when several records land in the same millisecond.
func (s *Service) nextID(source string, now time.Time) string {
	seq := s.seq.Add(1)
	return fmt.Sprintf("%s_%d_%d_%d", source, now.UnixMilli(), s.cfg.WorkerID, seq)
}
