// Package services – ReviewService
//
// This file implements ReviewService, the concurrent review-ingestion
// pipeline. It validates a submission, verifies the referenced user and
// media exist, serializes conflicting writes through a per-media exclusive
// section, durably appends the review (plus favoriter alerts) inside a
// single transaction, and folds the accepted rating into the aggregate
// cache write-through.
//
// Failure rules:
//   - If the durable write fails, no cache update occurs and the error
//     propagates wrapped in ErrPersistence. The submission is safe to
//     retry wholesale.
//   - If the cache update fails after a successful durable write, the
//     cache entry is invalidated (stale, rebuilt lazily on next read)
//     and the submission still succeeds; durability is never sacrificed
//     for cache freshness.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// include user/media identifiers. The service never logs or prints; all
// failures surface as typed errors for the command layer to report.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Fayouzz/Media-Review-System/internal/cache"
	"github.com/Fayouzz/Media-Review-System/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// defaultLockWait bounds the per-media section wait when none is configured.
const defaultLockWait = 3 * time.Second

// Submission is one review in a batch submission.
type Submission struct {
	MediaID uint
	Rating  int
	Comment string
}

// SubmitResult reports the outcome of one submission in a batch.
type SubmitResult struct {
	MediaID  uint
	ReviewID string
	Err      error
}

// ReviewService coordinates review persistence and aggregate maintenance.
// All dependencies are injected at construction; the service holds no
// process-wide singletons.
type ReviewService struct {
	DB    *gorm.DB
	Cache *cache.AggregateCache
	Locks *cache.KeyedLock

	// LockWait bounds how long a submission may wait for its per-media
	// section; zero means defaultLockWait.
	LockWait time.Duration

	// Limiter optionally throttles per-user submissions; nil disables.
	Limiter *UserLimiter

	// TopRatedLimit is the default ranking length served to callers that
	// pass limit <= 0.
	TopRatedLimit int
}

// Submit validates and ingests a single review, returning the new review ID.
//
// Semantics and validation:
//   - rating must be in [1,5]; otherwise ErrInvalidRating.
//   - userID must exist; otherwise ErrUserNotFound.
//   - mediaID must exist; otherwise ErrMediaNotFound.
//
// Concurrency:
//   - Conflicting submissions for the same media id are serialized through
//     the per-media section; submissions for distinct media ids proceed in
//     parallel. The store transaction opens and closes entirely inside the
//     held section.
//   - A submission that cannot acquire its section within LockWait fails
//     with ErrLockTimeout and leaves no state behind.
func (s *ReviewService) Submit(ctx context.Context, userID, mediaID uint, rating int, comment string) (string, error) {
	tr := otel.Tracer("services/ReviewService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int64("media.id", int64(mediaID)),
			attribute.Int("review.rating", rating),
		),
	)
	defer span.End()

	start := time.Now()
	id, err := s.submit(ctx, userID, mediaID, rating, comment)
	observeSubmit(submitOutcome(err), start)
	return id, err
}

func (s *ReviewService) submit(ctx context.Context, userID, mediaID uint, rating int, comment string) (string, error) {
	if rating < 1 || rating > 5 {
		return "", ErrInvalidRating
	}
	if !s.Limiter.Allow(userID) {
		return "", ErrRateLimited
	}

	// Referenced entities must exist before any state is touched.
	if _, err := repo.GetUser(ctx, s.DB, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", wrapPersistence(err)
	}
	media, err := repo.GetMedia(ctx, s.DB, mediaID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrMediaNotFound
		}
		return "", wrapPersistence(err)
	}

	// Serialize conflicting aggregate updates without serializing
	// unrelated media.
	release, err := s.Locks.Acquire(ctx, mediaID, s.lockWait())
	if err != nil {
		if errors.Is(err, cache.ErrLockTimeout) {
			return "", ErrLockTimeout
		}
		return "", err
	}
	defer release()

	// Durably append the review and fan out alerts to favoriters in one
	// transaction. Nothing is visible unless all of it commits.
	var reviewID string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.CreateReview(tx, userID, mediaID, rating, strings.TrimSpace(comment))
		if err != nil {
			return err
		}
		reviewID = r.ID

		favoriters, err := repo.ListFavoriteUsers(ctx, tx, mediaID)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("User %d added a review for %s.", userID, media.Type.Details(media.Title))
		for _, favUserID := range favoriters {
			if favUserID == userID {
				continue
			}
			if err := repo.CreateAlert(tx, favUserID, msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", wrapPersistence(err)
	}

	// Write-through. The review is durable at this point: a cache failure
	// marks the entry stale instead of failing the submission.
	if _, err := s.Cache.Apply(ctx, mediaID, rating); err != nil {
		s.Cache.Invalidate(mediaID)
	}
	return reviewID, nil
}

// SubmitMany ingests a batch of reviews by the same user, one goroutine per
// submission. Results are returned in input order; each element carries its
// own error so one rejected review does not abort the rest.
func (s *ReviewService) SubmitMany(ctx context.Context, userID uint, subs []Submission) []SubmitResult {
	tr := otel.Tracer("services/ReviewService")
	ctx, span := tr.Start(ctx, "SubmitMany",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int("batch.size", len(subs)),
		),
	)
	defer span.End()

	results := make([]SubmitResult, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub Submission) {
			defer wg.Done()
			id, err := s.Submit(ctx, userID, sub.MediaID, sub.Rating, sub.Comment)
			results[i] = SubmitResult{MediaID: sub.MediaID, ReviewID: id, Err: err}
		}(i, sub)
	}
	wg.Wait()
	return results
}

// TopRated returns the top-rated ranking, recomputing it from durable
// aggregates when stale. limit <= 0 uses the configured default.
func (s *ReviewService) TopRated(ctx context.Context, limit int) ([]cache.RankingEntry, error) {
	tr := otel.Tracer("services/ReviewService")
	ctx, span := tr.Start(ctx, "TopRated",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	if limit <= 0 {
		limit = s.TopRatedLimit
	}
	if limit <= 0 {
		limit = 5
	}
	out, err := s.Cache.TopRated(ctx, limit)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	return out, nil
}

// VerifyAggregate cross-checks the cached aggregate for mediaID against a
// fresh recomputation from the store. On disagreement the entry has already
// been rebuilt; ErrCacheInconsistency is returned carrying the detail.
func (s *ReviewService) VerifyAggregate(ctx context.Context, mediaID uint) error {
	tr := otel.Tracer("services/ReviewService")
	ctx, span := tr.Start(ctx, "VerifyAggregate",
		trace.WithAttributes(attribute.Int64("media.id", int64(mediaID))),
	)
	defer span.End()

	err := s.Cache.Verify(ctx, mediaID)
	if err == nil {
		return nil
	}
	if errors.Is(err, cache.ErrInconsistent) {
		return fmt.Errorf("%w: %v", ErrCacheInconsistency, err)
	}
	return wrapPersistence(err)
}

// lockWait returns the configured bounded wait, defaulted when unset.
func (s *ReviewService) lockWait() time.Duration {
	if s.LockWait > 0 {
		return s.LockWait
	}
	return defaultLockWait
}

// wrapPersistence tags a store-level failure with the ErrPersistence
// sentinel while preserving the cause for logs.
func wrapPersistence(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// submitOutcome maps a submission error onto the metrics outcome label.
func submitOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeAccepted
	case errors.Is(err, ErrInvalidRating),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrMediaNotFound):
		return outcomeRejected
	case errors.Is(err, ErrLockTimeout):
		return outcomeTimeout
	case errors.Is(err, ErrRateLimited):
		return outcomeRateLimited
	default:
		return outcomeFailed
	}
}
