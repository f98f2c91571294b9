// Package cache – AggregateCache
//
// This file implements the write-through cache of per-media rating
// aggregates and the derived top-rated ranking. The cache is a pure
// optimization over durable state: every entry is recomputable from the
// review rows at any time, and every read path has a deterministic
// recomputation fallback through the Source. The durable store stays the
// single source of truth.
//
// Consistency model:
//   - Writers hold the per-media section (KeyedLock) across the durable
//     write and the Apply call, so increments are never lost.
//   - Any aggregate change invalidates the cached ranking; the ranking is
//     recomputed lazily on the next TopRated call, never eagerly on write.
//   - A generation counter guards ranking rebuilds: a rebuild computed from
//     a store scan is only marked valid if no invalidation happened while
//     the scan ran.
//   - Eviction is LRU with a configured capacity; evicting an entry loses
//     no information.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInconsistent reports that a cached aggregate disagrees with a fresh
// recomputation from durable storage. The offending entry is rebuilt before
// the error is returned; callers must surface the error, never swallow it.
var ErrInconsistent = errors.New("cached aggregate disagrees with durable state")

// AggregateRecord is the derived per-media summary of all its reviews.
// ReviewCount == 0 means the media has no reviews and no defined average.
type AggregateRecord struct {
	MediaID     uint  `json:"media_id"`
	ReviewCount int64 `json:"review_count"`
	RatingSum   int64 `json:"rating_sum"`
}

// Average returns RatingSum / ReviewCount, or 0 when there are no reviews.
func (r AggregateRecord) Average() float64 {
	if r.ReviewCount == 0 {
		return 0
	}
	return float64(r.RatingSum) / float64(r.ReviewCount)
}

// RankingEntry is one position of the top-rated ranking.
type RankingEntry struct {
	MediaID     uint    `json:"media_id"`
	Average     float64 `json:"average"`
	ReviewCount int64   `json:"review_count"`
}

// Source recomputes aggregates from durable storage. It is the correctness
// backstop that makes the cache rebuildable from scratch.
type Source interface {
	// AggregateFor returns the review count and rating sum for one media id.
	// A media item without reviews yields (0, 0, nil).
	AggregateFor(ctx context.Context, mediaID uint) (count, sum int64, err error)

	// Aggregates returns one record per media item with at least one review.
	Aggregates(ctx context.Context) ([]AggregateRecord, error)
}

// AggregateCache holds per-media aggregates behind an LRU index plus the
// cached top-rated ranking. Safe for concurrent use.
type AggregateCache struct {
	src Source

	mu        sync.Mutex
	entries   *lru.Cache[uint, AggregateRecord]
	rank      []RankingEntry
	rankValid bool
	rankGen   uint64 // bumped on every invalidation
}

// New constructs an AggregateCache bounded to capacity entries.
func New(src Source, capacity int) (*AggregateCache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("cache capacity must be >= 1, got %d", capacity)
	}
	entries, err := lru.NewWithEvict(capacity, func(uint, AggregateRecord) {
		cacheEvictions.Inc()
	})
	if err != nil {
		return nil, err
	}
	return &AggregateCache{src: src, entries: entries}, nil
}

// Get returns the aggregate for mediaID. On a miss it recomputes from the
// Source, populates the cache, and returns the fresh value. A media item
// without reviews yields a record with ReviewCount == 0.
func (c *AggregateCache) Get(ctx context.Context, mediaID uint) (AggregateRecord, error) {
	c.mu.Lock()
	if rec, ok := c.entries.Get(mediaID); ok {
		c.mu.Unlock()
		cacheHits.Inc()
		return rec, nil
	}
	gen := c.rankGen
	c.mu.Unlock()

	cacheMisses.Inc()
	count, sum, err := c.src.AggregateFor(ctx, mediaID)
	if err != nil {
		return AggregateRecord{}, err
	}
	rec := AggregateRecord{MediaID: mediaID, ReviewCount: count, RatingSum: sum}

	c.mu.Lock()
	// Populate only if no write invalidated this id while we scanned;
	// otherwise the next read recomputes again.
	if c.rankGen == gen {
		c.entries.Add(mediaID, rec)
	}
	c.mu.Unlock()
	return rec, nil
}

// Apply folds one accepted review into the cached aggregate. The caller
// must hold the media's exclusive section and must have durably written the
// review first. On a cache miss the record is recomputed from the Source,
// which already includes the new row.
func (c *AggregateCache) Apply(ctx context.Context, mediaID uint, rating int) (AggregateRecord, error) {
	c.mu.Lock()
	if rec, ok := c.entries.Get(mediaID); ok {
		rec.ReviewCount++
		rec.RatingSum += int64(rating)
		c.entries.Add(mediaID, rec)
		c.rankValid = false
		c.rankGen++
		c.mu.Unlock()
		return rec, nil
	}
	c.rankValid = false
	c.rankGen++
	c.mu.Unlock()

	count, sum, err := c.src.AggregateFor(ctx, mediaID)
	if err != nil {
		return AggregateRecord{}, err
	}
	rec := AggregateRecord{MediaID: mediaID, ReviewCount: count, RatingSum: sum}
	c.mu.Lock()
	c.entries.Add(mediaID, rec)
	c.mu.Unlock()
	return rec, nil
}

// Invalidate drops the cached aggregate for mediaID and marks the ranking
// stale. The next read recomputes from durable storage.
func (c *AggregateCache) Invalidate(mediaID uint) {
	c.mu.Lock()
	c.entries.Remove(mediaID)
	c.rankValid = false
	c.rankGen++
	c.mu.Unlock()
}

// Rebuild forces a fresh recomputation of the aggregate for mediaID and
// replaces the cached entry.
func (c *AggregateCache) Rebuild(ctx context.Context, mediaID uint) (AggregateRecord, error) {
	count, sum, err := c.src.AggregateFor(ctx, mediaID)
	if err != nil {
		return AggregateRecord{}, err
	}
	rec := AggregateRecord{MediaID: mediaID, ReviewCount: count, RatingSum: sum}
	c.mu.Lock()
	c.entries.Add(mediaID, rec)
	c.rankValid = false
	c.rankGen++
	c.mu.Unlock()
	return rec, nil
}

// Verify recomputes the aggregate for mediaID and compares it with the
// cached entry. On disagreement the entry is rebuilt in place and
// ErrInconsistent is returned with both values. A missing cache entry
// verifies trivially.
func (c *AggregateCache) Verify(ctx context.Context, mediaID uint) error {
	c.mu.Lock()
	cached, ok := c.entries.Peek(mediaID)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	count, sum, err := c.src.AggregateFor(ctx, mediaID)
	if err != nil {
		return err
	}
	if cached.ReviewCount == count && cached.RatingSum == sum {
		return nil
	}

	fresh := AggregateRecord{MediaID: mediaID, ReviewCount: count, RatingSum: sum}
	c.mu.Lock()
	c.entries.Add(mediaID, fresh)
	c.rankValid = false
	c.rankGen++
	c.mu.Unlock()
	return fmt.Errorf("%w: media %d cached %d/%d durable %d/%d",
		ErrInconsistent, mediaID, cached.ReviewCount, cached.RatingSum, count, sum)
}

// TopRated returns the first limit entries of the top-rated ranking,
// ordered by average descending, review count descending, then media ID
// ascending. A stale ranking is recomputed from the full durable aggregate
// scan before being served. limit <= 0 returns the whole ranking.
func (c *AggregateCache) TopRated(ctx context.Context, limit int) ([]RankingEntry, error) {
	c.mu.Lock()
	if c.rankValid {
		out := clipRanking(c.rank, limit)
		c.mu.Unlock()
		cacheHits.Inc()
		return out, nil
	}
	gen := c.rankGen
	c.mu.Unlock()

	cacheMisses.Inc()
	aggs, err := c.src.Aggregates(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]RankingEntry, 0, len(aggs))
	for _, a := range aggs {
		if a.ReviewCount == 0 {
			continue
		}
		entries = append(entries, RankingEntry{
			MediaID:     a.MediaID,
			Average:     a.Average(),
			ReviewCount: a.ReviewCount,
		})
	}
	SortRanking(entries)

	c.mu.Lock()
	c.rank = entries
	// Only mark valid (and repopulate entries) if no write raced the scan.
	if c.rankGen == gen {
		c.rankValid = true
		for _, a := range aggs {
			c.entries.Add(a.MediaID, a)
		}
	}
	rankRebuilds.Inc()
	out := clipRanking(entries, limit)
	c.mu.Unlock()
	return out, nil
}

// SortRanking orders entries by the documented tie-break rule: average
// descending, review count descending, media ID ascending.
func SortRanking(entries []RankingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Average != entries[j].Average {
			return entries[i].Average > entries[j].Average
		}
		if entries[i].ReviewCount != entries[j].ReviewCount {
			return entries[i].ReviewCount > entries[j].ReviewCount
		}
		return entries[i].MediaID < entries[j].MediaID
	})
}

// clipRanking copies at most limit entries so callers never alias the
// cached slice.
func clipRanking(entries []RankingEntry, limit int) []RankingEntry {
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RankingEntry, n)
	copy(out, entries[:n])
	return out
}
