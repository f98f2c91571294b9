// Package cache holds the derived-state layer: per-media aggregate records,
// the lazily rebuilt top-rated ranking, and the per-media lock table that
// serializes conflicting aggregate updates.
//
// This file implements KeyedLock, a lightweight table of per-key exclusive
// sections. Entries are created lazily on first acquisition and removed when
// the last waiter releases, so memory stays bounded by the number of media
// ids under concurrent write at any instant.
//
// Notes:
//   - A single global lock would serialize unrelated media; the table keys
//     sections by media id so distinct ids never contend.
//   - Acquisition honors both a bounded wait and context cancellation.
//   - The lock is process-local, matching the single-process scope of the
//     system.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a per-media section cannot be acquired
// within the configured bounded wait.
var ErrLockTimeout = errors.New("timed out waiting for media section")

// section is one per-key exclusive slot. The buffered channel holds the
// token; refs counts holders plus waiters so the entry can be removed when
// it drops to zero.
type section struct {
	ch   chan struct{}
	refs int
}

// KeyedLock is a table of per-media-id exclusive sections.
//
// The zero value is not usable; construct with NewKeyedLock. Safe for
// concurrent use.
type KeyedLock struct {
	mu       sync.Mutex
	sections map[uint]*section
}

// NewKeyedLock constructs an empty lock table.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{sections: make(map[uint]*section)}
}

// Acquire blocks until the exclusive section for key is held, the wait
// elapses, or ctx is cancelled. On success it returns a release function
// that must be called exactly once; on timeout it returns ErrLockTimeout.
//
// A non-positive wait acquires without a deadline (still honoring ctx).
func (l *KeyedLock) Acquire(ctx context.Context, key uint, wait time.Duration) (release func(), err error) {
	l.mu.Lock()
	s, ok := l.sections[key]
	if !ok {
		s = &section{ch: make(chan struct{}, 1)}
		l.sections[key] = s
	}
	s.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			l.put(key, s)
		}, nil
	case <-timeout:
		l.put(key, s)
		lockTimeouts.Inc()
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.put(key, s)
		return nil, ctx.Err()
	}
}

// put drops one reference on the key's section and deletes the entry when
// nobody holds or waits on it anymore.
func (l *KeyedLock) put(key uint, s *section) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.sections, key)
	}
	l.mu.Unlock()
}

// Len reports the number of live sections (held or waited on). Exposed for
// tests and metrics.
func (l *KeyedLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sections)
}
