package memory

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// importance combines recency, access frequency and semantic uniqueness into
// one score. Protected records are never pruned regardless of score.
func (s *Service) importance(ts time.Time, accessCount int, uniqueness float64, now time.Time, maxAge time.Duration, maxAccess int) (score float64, protected bool) {
	protected = accessCount >= s.cfg.ProtectedAccessCount

	recency := 1.0
	if maxAge > 0 {
		recency = 1.0 - now.Sub(ts).Seconds()/maxAge.Seconds()
	}
	access := 0.0
	if maxAccess > 0 {
		access = float64(accessCount) / float64(maxAccess)
	}

	score = s.cfg.RecencyWeight*recency +
		s.cfg.AccessWeight*access +
		s.cfg.UniquenessWeight*uniqueness
	return score, protected
}

// uniquenessScores estimates per-record semantic uniqueness by sampling
// neighbor distances. Records far from their neighbors are cluster
// representatives and score closer to 1. Records left unsampled default to
// fully unique so sampling never penalizes them.
func (s *Service) uniquenessScores(ctx context.Context, store VectorStore, records []Record) map[string]float64 {
	scores := make(map[string]float64, len(records))
	for _, r := range records {
		scores[r.ID] = 1.0
	}
	if len(records) < 2 {
		return scores
	}

	sample := records
	if len(sample) > uniquenessSampleSize {
		sample = sample[:uniquenessSampleSize]
	}

	k := uniquenessNeighbors
	if k > len(records) {
		k = len(records)
	}

	for _, r := range sample {
		if r.Document == "" {
			continue
		}
		results, err := store.Query(ctx, r.Document, k, Filter{})
		if err != nil {
			s.logger.Debug("uniqueness sampling query failed", "id", r.ID, "err", err)
			continue
		}
		var sum float64
		var n int
		for _, res := range results {
			// Exclude self, which sits at distance ~0.
			if res.Distance > selfDistanceEpsilon {
				sum += res.Distance
				n++
			}
		}
		if n > 0 {
			avg := sum / float64(n)
			u := avg / (1.0 - s.cfg.ClusterThreshold)
			if u > 1.0 {
				u = 1.0
			}
			scores[r.ID] = u
		}
	}
	return scores
}

// pruneOn deletes the lowest-importance unprotected records until at most
// keep remain.
func (s *Service) pruneOn(ctx context.Context, store VectorStore, keep int) error {
	records, err := store.List(ctx, Filter{})
	if err != nil {
		return fmt.Errorf("memory prune: list: %w", err)
	}
	if len(records) <= keep {
		return nil
	}

	now := s.now()
	minTS := records[0].Metadata.Timestamp
	maxAccess := 0
	for _, r := range records {
		if r.Metadata.Timestamp.Before(minTS) {
			minTS = r.Metadata.Timestamp
		}
		if r.Metadata.AccessCount > maxAccess {
			maxAccess = r.Metadata.AccessCount
		}
	}
	maxAge := now.Sub(minTS)

	uniqueness := s.uniquenessScores(ctx, store, records)

	type scored struct {
		id    string
		score float64
	}
	var pruneable []scored
	protected := 0
	for _, r := range records {
		score, prot := s.importance(r.Metadata.Timestamp, r.Metadata.AccessCount, uniqueness[r.ID], now, maxAge, maxAccess)
		if prot {
			protected++
			continue
		}
		pruneable = append(pruneable, scored{id: r.ID, score: score})
	}

	sort.Slice(pruneable, func(i, j int) bool { return pruneable[i].score < pruneable[j].score })

	target := len(records) - keep
	if target > len(pruneable) {
		target = len(pruneable)
	}
	toDelete := make([]string, 0, target)
	for _, sc := range pruneable[:target] {
		toDelete = append(toDelete, sc.id)
	}

	if len(toDelete) > 0 {
		if err := store.Delete(ctx, toDelete); err != nil {
			return fmt.Errorf("memory prune: delete: %w", err)
		}
		s.logger.Info("pruned memories", "deleted", len(toDelete), "protected", protected)
	}
	return nil
}

// Dedup removes semantically redundant records: for a sample of the most
// recent records, any neighbor with similarity at or above the duplicate
// threshold loses whichever copy has the lower access count (ties broken by
// older timestamp). Failures are non-fatal.
func (s *Service) Dedup(ctx context.Context) error {
	store, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquire: %w", ErrStoreFailed, err)
	}
	defer release()

	records, err := store.List(ctx, Filter{})
	if err != nil {
		return fmt.Errorf("memory dedup: list: %w", err)
	}
	if len(records) < 2 {
		return nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Metadata.Timestamp.After(records[j].Metadata.Timestamp)
	})
	sample := records
	if len(sample) > dedupSampleSize {
		sample = sample[:dedupSampleSize]
	}

	toDelete := make(map[string]bool)
	for _, r := range sample {
		if toDelete[r.ID] {
			continue
		}
		results, err := store.Query(ctx, r.Document, dedupNeighbors, Filter{})
		if err != nil {
			s.logger.Debug("dedup query failed", "id", r.ID, "err", err)
			continue
		}
		for _, res := range results {
			if res.ID == r.ID || toDelete[res.ID] {
				continue
			}
			similarity := 1.0 - res.Distance
			if similarity < s.cfg.DupThreshold {
				continue
			}
			// Keep the more-accessed copy; on a tie keep the newer one.
			keepR := r.Metadata.AccessCount > res.Metadata.AccessCount ||
				(r.Metadata.AccessCount == res.Metadata.AccessCount &&
					!r.Metadata.Timestamp.Before(res.Metadata.Timestamp))
			if keepR {
				toDelete[res.ID] = true
			} else {
				toDelete[r.ID] = true
			}
		}
	}

	if len(toDelete) > 0 {
		ids := make([]string, 0, len(toDelete))
		for id := range toDelete {
			ids = append(ids, id)
		}
		if err := store.Delete(ctx, ids); err != nil {
			return fmt.Errorf("memory dedup: delete: %w", err)
		}
		s.logger.Info("deduplicated memories", "deleted", len(ids))
	}
	return nil
}
