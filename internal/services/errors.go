// Package services defines the business logic for the media catalog, review
// ingestion, recommendations, users, and favorites. This file centralizes
// common service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages and process exit codes is performed
// by the command layer.
package services

import "errors"

// Validation errors: bad input shape or range. Never retried; the caller
// must correct the input.
var (
	// ErrInvalidRating is returned when a rating is outside [1,5].
	ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")

	// ErrInvalidMediaType is returned when a media type is outside the
	// closed set {Movie, WebShow, Song, Cartoon}.
	ErrInvalidMediaType = errors.New("invalid media type")

	// ErrEmptyTitle is returned when a catalog insert has a blank title.
	ErrEmptyTitle = errors.New("title is empty")

	// ErrEmptyUsername is returned when a user insert has a blank username.
	ErrEmptyUsername = errors.New("username is empty")
)

// Not-found errors: a referenced entity is absent. Surfaced immediately.
var (
	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrMediaNotFound indicates that the referenced media item does not exist.
	ErrMediaNotFound = errors.New("media not found")
)

// Conflict errors: uniqueness violations surfaced as stable sentinels.
var (
	// ErrDuplicateMedia is returned when a media title already exists.
	ErrDuplicateMedia = errors.New("media already exists")

	// ErrDuplicateUser is returned when a username already exists.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrDuplicateFavorite is returned when a (user, media) favorite pair
	// already exists.
	ErrDuplicateFavorite = errors.New("favorite already exists")
)

// Transient and internal errors.
var (
	// ErrPersistence wraps durable-store I/O failures. The whole submission
	// is safe to retry: no partial durable or cache state is committed on
	// this path.
	ErrPersistence = errors.New("persistence failure")

	// ErrLockTimeout is returned when a submission cannot acquire its
	// per-media section within the bounded wait. Safe to retry.
	ErrLockTimeout = errors.New("timed out waiting for media section")

	// ErrRateLimited is returned when a user exceeds the configured
	// submission rate. Safe to retry after backing off.
	ErrRateLimited = errors.New("submission rate limit exceeded")

	// ErrCacheInconsistency indicates that a recomputed aggregate disagreed
	// with the cached one. The entry has been rebuilt; the error is never
	// silently ignored.
	ErrCacheInconsistency = errors.New("cache inconsistency detected")
)
