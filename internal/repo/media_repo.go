// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the MediaItem
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a media item is not found, functions return ErrNotFound.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Fayouzz/Media-Review-System/internal/domain"
)

// CreateMedia inserts a new catalog entry.
func CreateMedia(ctx context.Context, db *gorm.DB, title string, mediaType domain.MediaType) (*domain.MediaItem, error) {
	m := &domain.MediaItem{
		Title:     title,
		Type:      mediaType,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMedia fetches a media item by ID, or ErrNotFound if missing.
func GetMedia(ctx context.Context, db *gorm.DB, id uint) (*domain.MediaItem, error) {
	var m domain.MediaItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMediaByTitle fetches a media item by exact title, or ErrNotFound.
func GetMediaByTitle(ctx context.Context, db *gorm.DB, title string) (*domain.MediaItem, error) {
	var m domain.MediaItem
	if err := db.WithContext(ctx).Where("title = ?", title).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMedia permanently removes a media item together with its reviews
// and favorites. The deletes are unscoped: a soft delete would leave the
// review rows visible to the aggregate scans, so a removed item could keep
// feeding the ranking. Callers run this inside a transaction. Returns
// ErrNotFound when no media row was deleted.
func DeleteMedia(ctx context.Context, db *gorm.DB, id uint) error {
	if err := db.WithContext(ctx).Unscoped().
		Where("media_id = ?", id).Delete(&domain.Review{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Unscoped().
		Where("media_id = ?", id).Delete(&domain.Favorite{}).Error; err != nil {
		return err
	}
	res := db.WithContext(ctx).Unscoped().Delete(&domain.MediaItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchMedia returns media items whose title contains the given substring,
// ordered deterministically by ID.
func SearchMedia(ctx context.Context, db *gorm.DB, title string) ([]domain.MediaItem, error) {
	var out []domain.MediaItem
	err := db.WithContext(ctx).
		Where("title LIKE ?", "%"+title+"%").
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// CountMedia returns the total number of catalog entries.
func CountMedia(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.MediaItem{}).Count(&total).Error
	return total, err
}

// ListMediaPage returns a paginated slice of catalog entries ordered by ID.
func ListMediaPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.MediaItem, error) {
	var out []domain.MediaItem
	err := db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListMediaByTypes returns media items of the given types, excluding the
// given IDs, ordered by ID. An empty type set yields an empty result.
func ListMediaByTypes(ctx context.Context, db *gorm.DB, types []domain.MediaType, excludeIDs []uint) ([]domain.MediaItem, error) {
	if len(types) == 0 {
		return []domain.MediaItem{}, nil
	}
	q := db.WithContext(ctx).Where("type IN ?", types)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	var out []domain.MediaItem
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}
