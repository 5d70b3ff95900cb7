// Package lock serialises work on a single key across requests. Allocation
// commits take a per-bill lock so two operators cannot allocate the same bill
// at once.
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrLockBusy is returned when the key stays locked for the whole wait
	ErrLockBusy = errors.New("lock is held by another operation")
	// ErrEmptyKey is returned for a blank lock key
	ErrEmptyKey = errors.New("lock key cannot be empty")
)

// Locker runs fn while holding the lock on key. Errors from fn are returned
// unchanged.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// LocalLocker is an in-process Locker for single-instance deployments
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
	wait  time.Duration
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker that waits up to wait for a busy key
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot), wait: wait}
}

// WithLock implements Locker
func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	slot := l.acquireSlot(key)
	defer l.releaseSlot(key, slot)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockBusy
	}
	defer func() { <-slot.ch }()

	return fn(ctx)
}

func (l *LocalLocker) acquireSlot(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalLocker) releaseSlot(key string, slot *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
