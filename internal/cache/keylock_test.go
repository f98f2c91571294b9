package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyedLock_AcquireRelease(t *testing.T) {
	l := NewKeyedLock()

	release, err := l.Acquire(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d while held", l.Len())
	}
	release()
	if l.Len() != 0 {
		t.Fatalf("Len = %d after release, section not reclaimed", l.Len())
	}

	// Reacquirable after release.
	release, err = l.Acquire(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	release()
}

func TestKeyedLock_SameKeyTimesOut(t *testing.T) {
	l := NewKeyedLock()

	release, err := l.Acquire(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if _, err := l.Acquire(context.Background(), 1, 20*time.Millisecond); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	// The timed-out waiter must not leak its reference.
	if l.Len() != 1 {
		t.Fatalf("Len = %d after timeout", l.Len())
	}
}

func TestKeyedLock_DistinctKeysDoNotContend(t *testing.T) {
	l := NewKeyedLock()

	r1, err := l.Acquire(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("Acquire key 1: %v", err)
	}
	defer r1()

	r2, err := l.Acquire(context.Background(), 2, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("key 2 should not wait on key 1: %v", err)
	}
	r2()
}

func TestKeyedLock_ContextCancel(t *testing.T) {
	l := NewKeyedLock()

	release, err := l.Acquire(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx, 1, 0) // no deadline, rely on ctx
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not observe cancellation")
	}
}

func TestKeyedLock_WaiterProceedsAfterRelease(t *testing.T) {
	l := NewKeyedLock()

	release, err := l.Acquire(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan func(), 1)
	go func() {
		r, err := l.Acquire(context.Background(), 1, time.Second)
		if err != nil {
			t.Errorf("waiter: %v", err)
			return
		}
		acquired <- r
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case r := <-acquired:
		r()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the section")
	}
	if l.Len() != 0 {
		t.Fatalf("Len = %d after all releases", l.Len())
	}
}
