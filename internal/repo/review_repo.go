// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Review
// model, including the aggregate scans that back the cache recompute path.
//
// Error semantics:
//   - Foreign-key or constraint violations surface as raw gorm errors; the
//     service layer translates them into its sentinel taxonomy.
//   - Aggregate scans never return ErrNotFound: a media item without
//     reviews yields a zero count, which callers treat as "no aggregate".
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Fayouzz/Media-Review-System/internal/domain"
)

// MediaAggregate is one row of the durable aggregate scan: the review count
// and rating sum for a single media item.
type MediaAggregate struct {
	MediaID     uint
	ReviewCount int64
	RatingSum   int64
}

// CreateReview inserts a new review row with a UUID primary key and a UTC
// timestamp. The row is immutable once written.
func CreateReview(db *gorm.DB, userID, mediaID uint, rating int, comment string) (*domain.Review, error) {
	r := &domain.Review{
		ID:        uuid.NewString(),
		UserID:    userID,
		MediaID:   mediaID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	return r, db.Create(r).Error
}

// ListReviews returns all reviews for a media item ordered deterministically
// (CreatedAt ASC, ID ASC).
func ListReviews(ctx context.Context, db *gorm.DB, mediaID uint) ([]domain.Review, error) {
	var out []domain.Review
	err := db.WithContext(ctx).
		Where("media_id = ?", mediaID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// AggregateReviews recomputes the review count and rating sum for a single
// media item from the durable rows. A media item with no reviews yields
// (0, 0, nil).
func AggregateReviews(ctx context.Context, db *gorm.DB, mediaID uint) (count int64, sum int64, err error) {
	var row struct {
		Cnt   int64
		Total int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Review{}).
		Select("COUNT(*) AS cnt, COALESCE(SUM(rating), 0) AS total").
		Where("media_id = ?", mediaID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Cnt, row.Total, nil
}

// ListAggregates returns the review count and rating sum for every media
// item that has at least one review, ordered by media ID. This is the full
// recompute path for the top-rated ranking.
func ListAggregates(ctx context.Context, db *gorm.DB) ([]MediaAggregate, error) {
	var out []MediaAggregate
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Select("media_id, COUNT(*) AS review_count, COALESCE(SUM(rating), 0) AS rating_sum").
		Group("media_id").
		Order("media_id ASC").
		Scan(&out).Error
	return out, err
}

// ListReviewedMedia returns the distinct media IDs the user has reviewed,
// ordered ascending. Used to target cache invalidation when a user and
// their reviews are removed.
func ListReviewedMedia(ctx context.Context, db *gorm.DB, userID uint) ([]uint, error) {
	var out []uint
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Where("user_id = ?", userID).
		Distinct("media_id").
		Order("media_id ASC").
		Pluck("media_id", &out).Error
	return out, err
}

// ListAggregatesFor returns aggregates for the given media IDs only. IDs
// without reviews are absent from the result.
func ListAggregatesFor(ctx context.Context, db *gorm.DB, mediaIDs []uint) ([]MediaAggregate, error) {
	if len(mediaIDs) == 0 {
		return []MediaAggregate{}, nil
	}
	var out []MediaAggregate
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Select("media_id, COUNT(*) AS review_count, COALESCE(SUM(rating), 0) AS rating_sum").
		Where("media_id IN ?", mediaIDs).
		Group("media_id").
		Order("media_id ASC").
		Scan(&out).Error
	return out, err
}
