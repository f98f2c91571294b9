// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Fayouzz/Media-Review-System/internal/domain"
)

// CreateUser inserts a new user row.
func CreateUser(ctx context.Context, db *gorm.DB, username, password string) (*domain.User, error) {
	u := &domain.User{
		Username:  username,
		Password:  password,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by ID, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users ordered by ID.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// DeleteUser permanently removes a user together with their reviews,
// favorites, and alerts. The deletes are unscoped so the user's review rows
// drop out of the aggregate scans instead of lingering behind a soft-delete
// marker. Callers run this inside a transaction. Returns ErrNotFound when
// no user row was deleted.
func DeleteUser(ctx context.Context, db *gorm.DB, id uint) error {
	if err := db.WithContext(ctx).Unscoped().
		Where("user_id = ?", id).Delete(&domain.Review{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Unscoped().
		Where("user_id = ?", id).Delete(&domain.Favorite{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Unscoped().
		Where("user_id = ?", id).Delete(&domain.Alert{}).Error; err != nil {
		return err
	}
	res := db.WithContext(ctx).Unscoped().Delete(&domain.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
