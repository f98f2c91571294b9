package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Fayouzz/Media-Review-System/internal/cache"
	"github.com/Fayouzz/Media-Review-System/internal/domain"
	"github.com/Fayouzz/Media-Review-System/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:reviewsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(
		&domain.User{}, &domain.MediaItem{}, &domain.Review{},
		&domain.Favorite{}, &domain.Alert{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestCache(t *testing.T, db *gorm.DB, capacity int) *cache.AggregateCache {
	t.Helper()
	c, err := cache.New(StoreSource{DB: db}, capacity)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return c
}

func newReviewService(t *testing.T, db *gorm.DB) *ReviewService {
	t.Helper()
	return &ReviewService{
		DB:    db,
		Cache: newTestCache(t, db, 10),
		Locks: cache.NewKeyedLock(),
	}
}

func seedUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), db, username, "pw")
	if err != nil {
		t.Fatalf("seed user %q: %v", username, err)
	}
	return u
}

func seedMediaItem(t *testing.T, db *gorm.DB, title string, mt domain.MediaType) *domain.MediaItem {
	t.Helper()
	m, err := repo.CreateMedia(context.Background(), db, title, mt)
	if err != nil {
		t.Fatalf("seed media %q: %v", title, err)
	}
	return m
}

func countReviews(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Review{}).Count(&n).Error; err != nil {
		t.Fatalf("count reviews: %v", err)
	}
	return n
}

func TestSubmit_InvalidRating(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	for _, rating := range []int{0, 6, -1} {
		if _, err := svc.Submit(context.Background(), u.ID, m.ID, rating, ""); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
	if n := countReviews(t, db); n != 0 {
		t.Fatalf("rejected submissions left %d rows", n)
	}
	// The cache never saw the rejected ratings.
	agg, err := svc.Cache.Get(context.Background(), m.ID)
	if err != nil || agg.ReviewCount != 0 {
		t.Fatalf("aggregate after rejections = %+v, %v", agg, err)
	}
}

func TestSubmit_UserNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	if _, err := svc.Submit(context.Background(), 99, m.ID, 4, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if n := countReviews(t, db); n != 0 {
		t.Fatalf("rejected submission left %d rows", n)
	}
}

func TestSubmit_MediaNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")

	if _, err := svc.Submit(context.Background(), u.ID, 99, 4, ""); !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("expected ErrMediaNotFound, got %v", err)
	}
	if n := countReviews(t, db); n != 0 {
		t.Fatalf("rejected submission left %d rows", n)
	}
}

func TestSubmit_PersistsAndUpdatesCache(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	id, err := svc.Submit(context.Background(), u.ID, m.ID, 4, "  great  ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("review id %q is not a UUID", id)
	}

	rows, err := repo.ListReviews(context.Background(), db, m.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListReviews = %+v, %v", rows, err)
	}
	if rows[0].Comment != "great" {
		t.Fatalf("comment not trimmed: %q", rows[0].Comment)
	}

	agg, err := svc.Cache.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Cache.Get: %v", err)
	}
	if agg.ReviewCount != 1 || agg.RatingSum != 4 {
		t.Fatalf("aggregate = %+v, want 1/4", agg)
	}
	if err := svc.VerifyAggregate(context.Background(), m.ID); err != nil {
		t.Fatalf("cache and store disagree after submit: %v", err)
	}
}

func TestSubmit_ConcurrentSameMedia(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	const n = 20
	ratings := make([]int, n)
	var wantSum int64
	for i := range ratings {
		ratings[i] = i%5 + 1
		wantSum += int64(ratings[i])
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, rating := range ratings {
		wg.Add(1)
		go func(i, rating int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(context.Background(), u.ID, m.ID, rating, "")
		}(i, rating)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("submission %d: %v", i, err)
		}
	}

	count, sum, err := repo.AggregateReviews(context.Background(), db, m.ID)
	if err != nil {
		t.Fatalf("AggregateReviews: %v", err)
	}
	if count != n || sum != wantSum {
		t.Fatalf("durable aggregate = %d/%d, want %d/%d", count, sum, n, wantSum)
	}

	agg, err := svc.Cache.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Cache.Get: %v", err)
	}
	if agg.ReviewCount != n || agg.RatingSum != wantSum {
		t.Fatalf("cached aggregate = %+v, want %d/%d", agg, n, wantSum)
	}
	if err := svc.VerifyAggregate(context.Background(), m.ID); err != nil {
		t.Fatalf("VerifyAggregate: %v", err)
	}
}

func TestSubmit_ConcurrentPairAverages(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	var wg sync.WaitGroup
	for _, rating := range []int{4, 2} {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			if _, err := svc.Submit(context.Background(), u.ID, m.ID, rating, ""); err != nil {
				t.Errorf("Submit(%d): %v", rating, err)
			}
		}(rating)
	}
	wg.Wait()

	agg, err := svc.Cache.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Cache.Get: %v", err)
	}
	if agg.ReviewCount != 2 || agg.RatingSum != 6 || agg.Average() != 3.0 {
		t.Fatalf("aggregate = %+v, want 2/6 avg 3.0", agg)
	}
}

func TestSubmit_AlertsFavoritersExcludingAuthor(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	author := seedUser(t, db, "author")
	fan := seedUser(t, db, "fan")
	other := seedUser(t, db, "other")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	for _, userID := range []uint{author.ID, fan.ID} {
		if _, err := repo.AddFavorite(context.Background(), db, userID, m.ID); err != nil {
			t.Fatalf("seed favorite: %v", err)
		}
	}

	if _, err := svc.Submit(context.Background(), author.ID, m.ID, 5, ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	fanAlerts, err := repo.ListAlerts(context.Background(), db, fan.ID)
	if err != nil || len(fanAlerts) != 1 {
		t.Fatalf("fan alerts = %+v, %v", fanAlerts, err)
	}
	if !strings.Contains(fanAlerts[0].Message, "Movie: Dune") {
		t.Fatalf("alert message = %q", fanAlerts[0].Message)
	}

	// The author favorited the media too but never alerts themselves.
	authorAlerts, err := repo.ListAlerts(context.Background(), db, author.ID)
	if err != nil || len(authorAlerts) != 0 {
		t.Fatalf("author alerts = %+v, %v", authorAlerts, err)
	}
	otherAlerts, err := repo.ListAlerts(context.Background(), db, other.ID)
	if err != nil || len(otherAlerts) != 0 {
		t.Fatalf("non-favoriter alerts = %+v, %v", otherAlerts, err)
	}
}

func TestSubmit_PersistenceFailure(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")
	fan := seedUser(t, db, "fan")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)
	if _, err := repo.AddFavorite(context.Background(), db, fan.ID, m.ID); err != nil {
		t.Fatalf("seed favorite: %v", err)
	}

	if err := db.Migrator().DropTable(&domain.Review{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := svc.Submit(context.Background(), u.ID, m.ID, 4, "")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	// The transaction rolled back: no alert escaped either.
	alerts, err := repo.ListAlerts(context.Background(), db, fan.ID)
	if err != nil || len(alerts) != 0 {
		t.Fatalf("alerts after failed submit = %+v, %v", alerts, err)
	}
}

func TestSubmit_LockTimeout(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	svc.LockWait = 30 * time.Millisecond
	u := seedUser(t, db, "alice")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	// Hold the media's section so the submission cannot enter.
	release, err := svc.Locks.Acquire(context.Background(), m.ID, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if _, err := svc.Submit(context.Background(), u.ID, m.ID, 4, ""); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if n := countReviews(t, db); n != 0 {
		t.Fatalf("timed-out submission left %d rows", n)
	}
}

func TestSubmit_RateLimited(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	svc.Limiter = NewUserLimiter(1, 1)
	u := seedUser(t, db, "alice")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	if _, err := svc.Submit(context.Background(), u.ID, m.ID, 4, ""); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(context.Background(), u.ID, m.ID, 5, ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if n := countReviews(t, db); n != 1 {
		t.Fatalf("expected 1 durable row, got %d", n)
	}
}

func TestSubmitMany_ResultsInInputOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")
	a := seedMediaItem(t, db, "A", domain.MediaMovie)
	b := seedMediaItem(t, db, "B", domain.MediaSong)

	results := svc.SubmitMany(context.Background(), u.ID, []Submission{
		{MediaID: a.ID, Rating: 5},
		{MediaID: 999, Rating: 4}, // unknown media
		{MediaID: b.ID, Rating: 0}, // invalid rating
		{MediaID: b.ID, Rating: 3, Comment: "ok"},
	})
	if len(results) != 4 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Err != nil || results[0].MediaID != a.ID || results[0].ReviewID == "" {
		t.Fatalf("results[0] = %+v", results[0])
	}
	if !errors.Is(results[1].Err, ErrMediaNotFound) {
		t.Fatalf("results[1] = %+v", results[1])
	}
	if !errors.Is(results[2].Err, ErrInvalidRating) {
		t.Fatalf("results[2] = %+v", results[2])
	}
	if results[3].Err != nil || results[3].MediaID != b.ID {
		t.Fatalf("results[3] = %+v", results[3])
	}
	if n := countReviews(t, db); n != 2 {
		t.Fatalf("expected 2 durable rows, got %d", n)
	}
}

func TestTopRated_DefaultLimit(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")

	for i := 0; i < 7; i++ {
		m := seedMediaItem(t, db, fmt.Sprintf("M%d", i), domain.MediaMovie)
		if _, err := svc.Submit(context.Background(), u.ID, m.ID, i%5+1, ""); err != nil {
			t.Fatalf("seed submit: %v", err)
		}
	}

	out, err := svc.TopRated(context.Background(), 0)
	if err != nil {
		t.Fatalf("TopRated: %v", err)
	}
	if len(out) != 5 { // default cut
		t.Fatalf("expected default limit 5, got %d entries", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Average > out[i-1].Average {
			t.Fatalf("ranking not descending: %+v", out)
		}
	}
}

func TestVerifyAggregate_DetectsDrift(t *testing.T) {
	db := newTestDB(t)
	svc := newReviewService(t, db)
	u := seedUser(t, db, "alice")
	m := seedMediaItem(t, db, "Dune", domain.MediaMovie)

	if _, err := svc.Submit(context.Background(), u.ID, m.ID, 4, ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// A write that bypasses the pipeline leaves the cached entry behind.
	if _, err := repo.CreateReview(db, u.ID, m.ID, 5, ""); err != nil {
		t.Fatalf("out-of-band review: %v", err)
	}

	err := svc.VerifyAggregate(context.Background(), m.ID)
	if !errors.Is(err, ErrCacheInconsistency) {
		t.Fatalf("expected ErrCacheInconsistency, got %v", err)
	}
	// The entry is rebuilt, so a second check passes.
	if err := svc.VerifyAggregate(context.Background(), m.ID); err != nil {
		t.Fatalf("second VerifyAggregate: %v", err)
	}
}
