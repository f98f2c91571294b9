// Package services – MediaService
//
// This file implements MediaService, the catalog admin component. It owns
// media creation (with normalized title casing and duplicate rejection),
// removal, substring search, and the paginated listing that decorates each
// entry with its average rating read through the aggregate cache.
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

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MediaSummary is a catalog entry decorated with its aggregate rating.
// Average is nil when the entry has no reviews.
type MediaSummary struct {
	domain.MediaItem
	ReviewCount int64    `json:"review_count"`
	Average     *float64 `json:"average,omitempty"`
}

// MediaService implements the catalog admin use-cases. Media items are
// read-mostly reference data: the review pipeline only ever reads them.
type MediaService struct {
	DB    *gorm.DB
	Cache *cache.AggregateCache

	// TitleLocale configures title casing; English when unset.
	TitleLocale language.Tag
}

// Add inserts a new catalog entry.
//
// The title is trimmed and title-cased before insert so "the matrix" and
// "The Matrix" collide on the unique index. The media type must be one of
// the closed set; unknown types are rejected with ErrInvalidMediaType
// rather than defaulting to a generic kind.
func (s *MediaService) Add(ctx context.Context, title, mediaType string) (*domain.MediaItem, error) {
	tr := otel.Tracer("services/MediaService")
	ctx, span := tr.Start(ctx, "Add",
		trace.WithAttributes(attribute.String("media.type", mediaType)),
	)
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	t, err := domain.ParseMediaType(mediaType)
	if err != nil {
		return nil, ErrInvalidMediaType
	}
	title = cases.Title(s.titleLocale()).String(title)

	m, err := repo.CreateMedia(ctx, s.DB, title, t)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
			return nil, ErrDuplicateMedia
		}
		return nil, wrapPersistence(err)
	}
	return m, nil
}

// Remove permanently deletes a catalog entry with its reviews and favorites
// in one transaction, then drops the cached aggregate. The dependent rows go
// with the entry so a removed item cannot keep surfacing in the ranking or
// the recommendation fallback.
func (s *MediaService) Remove(ctx context.Context, id uint) error {
	tr := otel.Tracer("services/MediaService")
	ctx, span := tr.Start(ctx, "Remove",
		trace.WithAttributes(attribute.Int64("media.id", int64(id))),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteMedia(ctx, tx, id)
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMediaNotFound
		}
		return wrapPersistence(err)
	}
	s.Cache.Invalidate(id)
	return nil
}

// Search returns catalog entries whose title contains the given substring.
func (s *MediaService) Search(ctx context.Context, title string) ([]domain.MediaItem, error) {
	tr := otel.Tracer("services/MediaService")
	ctx, span := tr.Start(ctx, "Search")
	defer span.End()

	out, err := repo.SearchMedia(ctx, s.DB, strings.TrimSpace(title))
	if err != nil {
		return nil, wrapPersistence(err)
	}
	return out, nil
}

// List returns a page of catalog entries with their aggregate ratings,
// plus the total entry count.
func (s *MediaService) List(ctx context.Context, page, pageSize int) ([]MediaSummary, int64, error) {
	tr := otel.Tracer("services/MediaService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountMedia(ctx, s.DB)
	if err != nil {
		return nil, 0, wrapPersistence(err)
	}
	if total == 0 {
		return []MediaSummary{}, 0, nil
	}

	items, err := repo.ListMediaPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, wrapPersistence(err)
	}

	out := make([]MediaSummary, 0, len(items))
	for _, m := range items {
		agg, err := s.Cache.Get(ctx, m.ID)
		if err != nil {
			return nil, 0, wrapPersistence(err)
		}
		summary := MediaSummary{MediaItem: m, ReviewCount: agg.ReviewCount}
		if agg.ReviewCount > 0 {
			avg := agg.Average()
			summary.Average = &avg
		}
		out = append(out, summary)
	}
	return out, total, nil
}

func (s *MediaService) titleLocale() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// isDuplicate attempts to detect unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
