// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Favorite
// and Alert models.
//
// Error semantics:
//   - Duplicate favorites (same user_id,media_id) rely on the database
//     unique constraint and are returned as a raw DB error. The service
//     layer translates that into a domain error.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Fayouzz/Media-Review-System/internal/domain"
)

// AddFavorite inserts a favorite pair. The (user_id, media_id) combination
// must be unique, enforced by the database schema.
func AddFavorite(ctx context.Context, db *gorm.DB, userID, mediaID uint) (*domain.Favorite, error) {
	f := &domain.Favorite{
		UserID:    userID,
		MediaID:   mediaID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// ListFavorites returns a user's favorites ordered by creation time.
func ListFavorites(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Favorite, error) {
	var out []domain.Favorite
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListFavoriteUsers returns the IDs of users who favorited a media item.
func ListFavoriteUsers(ctx context.Context, db *gorm.DB, mediaID uint) ([]uint, error) {
	var out []uint
	err := db.WithContext(ctx).
		Model(&domain.Favorite{}).
		Where("media_id = ?", mediaID).
		Order("user_id ASC").
		Pluck("user_id", &out).Error
	return out, err
}

// CreateAlert inserts a notification row for a user.
func CreateAlert(db *gorm.DB, userID uint, message string) error {
	a := &domain.Alert{
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	return db.Create(a).Error
}

// ListAlerts returns a user's alerts ordered by creation time.
func ListAlerts(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Alert, error) {
	var out []domain.Alert
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
