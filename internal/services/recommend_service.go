// Package services – RecommendService
//
// This file implements the recommendation engine. It reads the user's
// favorites, collects the media types they represent, and ranks other rated
// media of those types by cached average rating, excluding items the user
// already favorited. When the user has no favorites, or the favorite-derived
// candidate list comes up empty, it falls back to the top-rated ranking.
// The fallback is unconditional and deterministic given the same underlying
// data.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Fayouzz/Media-Review-System/internal/cache"
	"github.com/Fayouzz/Media-Review-System/internal/domain"
	"github.com/Fayouzz/Media-Review-System/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecommendService produces ranked media suggestions for a user. Aggregate
// reads go through the cache; a miss recomputes from durable storage, so
// the result is always consistent with the review rows.
type RecommendService struct {
	DB    *gorm.DB
	Cache *cache.AggregateCache

	// Limit caps the number of suggestions; zero means 5, matching the
	// top-rated default.
	Limit int
}

// Recommend returns an ordered sequence of media IDs for userID.
//
// Ranking follows the same tie-break rule as the top-rated list: average
// descending, review count descending, media ID ascending. Unrated
// candidates carry no average and are not ranked; if that leaves no
// candidates, the top-rated fallback applies.
func (s *RecommendService) Recommend(ctx context.Context, userID uint) ([]uint, error) {
	tr := otel.Tracer("services/RecommendService")
	ctx, span := tr.Start(ctx, "Recommend",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	if _, err := repo.GetUser(ctx, s.DB, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, wrapPersistence(err)
	}

	favorites, err := repo.ListFavorites(ctx, s.DB, userID)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	if len(favorites) == 0 {
		return s.topRatedIDs(ctx)
	}

	// Collect the favorited media types and the IDs to exclude.
	excluded := make([]uint, 0, len(favorites))
	typeSet := make(map[domain.MediaType]struct{})
	for _, f := range favorites {
		excluded = append(excluded, f.MediaID)
		media, err := repo.GetMedia(ctx, s.DB, f.MediaID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue // favorite of since-removed media
			}
			return nil, wrapPersistence(err)
		}
		typeSet[media.Type] = struct{}{}
	}
	types := make([]domain.MediaType, 0, len(typeSet))
	for _, t := range domain.MediaTypes() { // stable order
		if _, ok := typeSet[t]; ok {
			types = append(types, t)
		}
	}

	candidates, err := repo.ListMediaByTypes(ctx, s.DB, types, excluded)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	// Rank rated candidates by cached aggregates.
	ranked := make([]cache.RankingEntry, 0, len(candidates))
	for _, m := range candidates {
		agg, err := s.Cache.Get(ctx, m.ID)
		if err != nil {
			return nil, wrapPersistence(err)
		}
		if agg.ReviewCount == 0 {
			continue
		}
		ranked = append(ranked, cache.RankingEntry{
			MediaID:     m.ID,
			Average:     agg.Average(),
			ReviewCount: agg.ReviewCount,
		})
	}
	if len(ranked) == 0 {
		return s.topRatedIDs(ctx)
	}
	cache.SortRanking(ranked)

	limit := s.limit()
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]uint, 0, len(ranked))
	for _, e := range ranked {
		out = append(out, e.MediaID)
	}
	return out, nil
}

// topRatedIDs is the unconditional fallback: the top-rated ranking reduced
// to media IDs.
func (s *RecommendService) topRatedIDs(ctx context.Context) ([]uint, error) {
	entries, err := s.Cache.TopRated(ctx, s.limit())
	if err != nil {
		return nil, wrapPersistence(err)
	}
	out := make([]uint, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.MediaID)
	}
	return out, nil
}

func (s *RecommendService) limit() int {
	if s.Limit > 0 {
		return s.Limit
	}
	return 5
}
