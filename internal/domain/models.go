// Package domain defines the persistence models for users, media items,
// reviews, favorites, and alerts. These types are mapped with GORM and form
// the core data layer of the media review system.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account that can submit reviews and mark
// favorites.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Username: unique login name.
//   - Password: opaque credential text (hashing policy is out of scope).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: GORM soft-delete marker. Account removal is a hard delete
//     that also purges the user's reviews, favorites, and alerts.
type User struct {
	ID        uint           `json:"id"         gorm:"primaryKey"`
	Username  string         `json:"username"   gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Password  string         `json:"-"          gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// MediaItem represents a catalog entry that reviews and favorites refer to.
// The catalog is read-mostly reference data: entries are created by admin
// commands and never mutated by the review pipeline.
//
// Fields:
//   - ID: auto-increment primary key, immutable once assigned.
//   - Title: unique human-readable title.
//   - Type: one of the closed MediaType set (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: GORM soft-delete marker. Catalog removal is a hard delete
//     that also purges the entry's reviews and favorites, so they cannot
//     keep feeding the aggregate scans.
type MediaItem struct {
	ID        uint           `json:"id"         gorm:"primaryKey"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;uniqueIndex:ux_media_title"`
	Type      MediaType      `json:"type"       gorm:"type:varchar(16);not null;check:type IN ('Movie','WebShow','Song','Cartoon')"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for MediaItem.
func (MediaItem) TableName() string { return "media" }

// Review represents a single user rating of a media item. Reviews are
// created exactly once by the ingestion pipeline and never mutated or
// deleted afterwards.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: author of the review (indexed).
//   - MediaID: reviewed media item (indexed; cascade delete with media).
//   - Rating: integer in [1,5] (enforced by DB constraint).
//   - Comment: free text, may be empty.
//   - CreatedAt: server-assigned UTC timestamp.
type Review struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    uint           `json:"user_id"    gorm:"not null;index"`
	MediaID   uint           `json:"media_id"   gorm:"not null;index:idx_media_reviews,priority:1"`
	Rating    int            `json:"rating"     gorm:"not null;check:rating BETWEEN 1 AND 5"`
	Comment   string         `json:"comment"    gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_media_reviews,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Media is the reviewed catalog entry. Reviews are cascade-deleted
	// if their media item is removed.
	Media MediaItem `json:"-" gorm:"foreignKey:MediaID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string { return "reviews" }

// Favorite marks a media item as a favorite of a user. A user can favorite
// a given media item at most once (enforced by unique index).
type Favorite struct {
	ID        uint           `json:"id"         gorm:"primaryKey"`
	UserID    uint           `json:"user_id"    gorm:"not null;index;uniqueIndex:ux_favorites_user_media"`
	MediaID   uint           `json:"media_id"   gorm:"not null;index;uniqueIndex:ux_favorites_user_media"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Media is the favorited catalog entry. Favorites are cascade-deleted
	// if the media item is removed.
	Media MediaItem `json:"-" gorm:"foreignKey:MediaID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Favorite.
func (Favorite) TableName() string { return "favorites" }

// Alert is a notification delivered to a user whose favorited media
// received a new review. Alerts are written in the same transaction as the
// review that triggered them.
type Alert struct {
	ID        uint           `json:"id"         gorm:"primaryKey"`
	UserID    uint           `json:"user_id"    gorm:"not null;index"`
	Message   string         `json:"message"    gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Alert.
func (Alert) TableName() string { return "alerts" }
