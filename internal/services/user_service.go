// Package services – UserService
//
// This file implements UserService, which owns user accounts, favorites,
// and alert retrieval. Favorites feed the recommendation engine read-only;
// alerts are written by the review pipeline and only read here.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Fayouzz/Media-Review-System/internal/cache"
	"github.com/Fayouzz/Media-Review-System/internal/domain"
	"github.com/Fayouzz/Media-Review-System/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserService implements the user and favorite use-cases.
type UserService struct {
	DB    *gorm.DB
	Cache *cache.AggregateCache
}

// Create inserts a new user. Usernames are trimmed and must be unique;
// the password is stored as given (credential policy is out of scope).
func (s *UserService) Create(ctx context.Context, username, password string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	u, err := repo.CreateUser(ctx, s.DB, username, password)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
			return nil, ErrDuplicateUser
		}
		return nil, wrapPersistence(err)
	}
	return u, nil
}

// List returns all users ordered by ID.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	out, err := repo.ListUsers(ctx, s.DB)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	return out, nil
}

// Remove permanently deletes a user together with their reviews, favorites,
// and alerts in one transaction, then drops the cached aggregates of every
// media item the user had reviewed so their ratings stop counting.
func (s *UserService) Remove(ctx context.Context, id uint) error {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Remove",
		trace.WithAttributes(attribute.Int64("user.id", int64(id))),
	)
	defer span.End()

	var reviewed []uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := repo.ListReviewedMedia(ctx, tx, id)
		if err != nil {
			return err
		}
		reviewed = ids
		return repo.DeleteUser(ctx, tx, id)
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return wrapPersistence(err)
	}
	for _, mediaID := range reviewed {
		s.Cache.Invalidate(mediaID)
	}
	return nil
}

// AddFavorite marks mediaID as a favorite of userID. Both must exist, and
// the pair must not already be favorited.
func (s *UserService) AddFavorite(ctx context.Context, userID, mediaID uint) error {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "AddFavorite",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int64("media.id", int64(mediaID)),
		),
	)
	defer span.End()

	if _, err := repo.GetUser(ctx, s.DB, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return wrapPersistence(err)
	}
	if _, err := repo.GetMedia(ctx, s.DB, mediaID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMediaNotFound
		}
		return wrapPersistence(err)
	}

	if _, err := repo.AddFavorite(ctx, s.DB, userID, mediaID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
			return ErrDuplicateFavorite
		}
		return wrapPersistence(err)
	}
	return nil
}

// Alerts returns the user's notifications in delivery order.
func (s *UserService) Alerts(ctx context.Context, userID uint) ([]domain.Alert, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Alerts",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	if _, err := repo.GetUser(ctx, s.DB, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, wrapPersistence(err)
	}
	out, err := repo.ListAlerts(ctx, s.DB, userID)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	return out, nil
}
