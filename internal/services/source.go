// Package services – store-backed cache source.
//
// StoreSource adapts the repository aggregate scans to the cache.Source
// interface expected by the AggregateCache. This keeps the cache decoupled
// from the concrete repo package while reusing its query functions.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/Fayouzz/Media-Review-System/internal/cache"
	"github.com/Fayouzz/Media-Review-System/internal/repo"
)

// StoreSource recomputes aggregates from the durable review rows.
type StoreSource struct {
	DB *gorm.DB
}

// AggregateFor proxies repo.AggregateReviews.
func (s StoreSource) AggregateFor(ctx context.Context, mediaID uint) (count, sum int64, err error) {
	return repo.AggregateReviews(ctx, s.DB, mediaID)
}

// Aggregates proxies repo.ListAggregates.
func (s StoreSource) Aggregates(ctx context.Context) ([]cache.AggregateRecord, error) {
	rows, err := repo.ListAggregates(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make([]cache.AggregateRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, cache.AggregateRecord{
			MediaID:     r.MediaID,
			ReviewCount: r.ReviewCount,
			RatingSum:   r.RatingSum,
		})
	}
	return out, nil
}
