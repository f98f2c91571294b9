// Package services – submission rate limiting.
//
// This file implements a lightweight, in-memory, token-bucket rate limiter
// with per-user buckets and opportunistic garbage collection. It protects
// the ingestion pipeline from a single user flooding the review queue.
//
// Notes:
//   - This limiter is process-local, matching the single-process scope of
//     the system.
//   - It is an abuse-control knob, not part of the correctness contract;
//     a nil *UserLimiter disables limiting entirely.
package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket holds a single rate limiter and the last time it was seen.
// Used to opportunistically evict idle buckets.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserLimiter implements a per-user token-bucket rate limiter.
//
// Buckets are created on demand and stored in an internal map guarded by a
// mutex. Idle buckets are evicted after a TTL via opportunistic cleanup
// during lookups to keep memory usage bounded.
//
// This type is safe for concurrent use.
type UserLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[uint]*bucket

	ttl      time.Duration
	cleanupN uint64
}

// NewUserLimiter constructs a UserLimiter with the given tokens-per-second
// and burst size.
//
//   - rps:   tokens replenished per second; <= 0 returns nil (disabled).
//   - burst: maximum burst size; values <= 0 are coerced to 1.
func NewUserLimiter(rps float64, burst int) *UserLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &UserLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[uint]*bucket),
		ttl:     10 * time.Minute, // evict idle entries after TTL
	}
}

// Allow reports whether userID may submit now, consuming a token if so.
// A nil receiver always allows.
func (ul *UserLimiter) Allow(userID uint) bool {
	if ul == nil {
		return true
	}
	return ul.getBucket(userID).Allow()
}

// getBucket returns (and refreshes) the limiter for userID, creating it if
// absent. It also performs opportunistic GC of idle entries after ~5000
// lookups.
//
// IMPORTANT: Run GC *before* touching the requested bucket so an "old"
// bucket can be evicted even when it's the one being fetched.
func (ul *UserLimiter) getBucket(userID uint) *rate.Limiter {
	now := time.Now()

	ul.mu.Lock()
	ul.cleanupN++
	if ul.cleanupN >= 5000 {
		for id, b := range ul.buckets {
			if now.Sub(b.lastSeen) >= ul.ttl {
				delete(ul.buckets, id)
			}
		}
		ul.cleanupN = 0
	}

	if b, ok := ul.buckets[userID]; ok {
		b.lastSeen = now
		lim := b.limiter
		ul.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(ul.rps, ul.burst)
	ul.buckets[userID] = &bucket{limiter: lim, lastSeen: now}
	ul.mu.Unlock()
	return lim
}
