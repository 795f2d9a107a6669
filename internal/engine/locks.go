package engine

import (
	"context"
	"sync"
	"time"
)

// sessionLocks serializes turns per session id. Turns for different sessions
// run concurrently; a second turn for the same session waits a bounded time
// for the first to finish, then gives up so the caller can retry.
type sessionLocks struct {
	locks map[string]*sessionLock
	mu    sync.Mutex
}

// sessionLock tracks the holder and any waiters for one session id so the
// map entry can be dropped once nobody references it.
type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire takes the lock for a session id, waiting at most wait. It returns
// false when the lock could not be taken in time or the context was
// canceled.
func (l *sessionLocks) acquire(ctx context.Context, id string, wait time.Duration) bool {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		return true
	case <-ctx.Done():
		l.unref(id)
		return false
	case <-timer.C:
		l.unref(id)
		return false
	}
}

// release frees the lock for a session id. It must only be called after a
// successful acquire.
func (l *sessionLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.locks[id]
	if entry == nil {
		return
	}
	// The caller holds the token, so this receive never blocks.
	<-entry.ch
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
}

// unref drops a waiter that gave up without taking the lock.
func (l *sessionLocks) unref(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.locks[id]
	if entry == nil {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
}
