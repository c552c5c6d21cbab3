package downloader

import (
	"context"
	"sync"
)

// adaptiveLimiter bounds simultaneous transfers and self-heals after
// interruptions: a cancelled transfer drops the limit to one, and a short
// streak of successes restores the configured maximum. Ordinary failures
// leave the limit alone.
type adaptiveLimiter struct {
	mu           sync.Mutex
	max          int
	limit        int
	restoreAfter int
	inFlight     int
	successes    int
	waiters      []chan struct{}
}

func newAdaptiveLimiter(max, restoreAfter int) *adaptiveLimiter {
	if max <= 0 {
		max = 3
	}
	if restoreAfter <= 0 {
		restoreAfter = 2
	}
	return &adaptiveLimiter{
		max:          max,
		limit:        max,
		restoreAfter: restoreAfter,
	}
}

// Acquire blocks until a transfer slot is free or ctx is done.
func (l *adaptiveLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.inFlight < l.limit {
			l.inFlight++
			l.mu.Unlock()
			return nil
		}
		wake := make(chan struct{})
		l.waiters = append(l.waiters, wake)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

func (l *adaptiveLimiter) Release() {
	l.mu.Lock()
	l.inFlight--
	l.wakeLocked()
	l.mu.Unlock()
}

// OnSuccess counts a completed transfer toward restoring full concurrency.
func (l *adaptiveLimiter) OnSuccess() {
	l.mu.Lock()
	l.successes++
	if l.successes >= l.restoreAfter && l.limit < l.max {
		l.limit = l.max
		l.successes = 0
		l.wakeLocked()
	}
	l.mu.Unlock()
}

// OnCancelled throttles to a single transfer. Repeated interruptions under
// high concurrency usually mean local bandwidth contention, not a bad
// attachment.
func (l *adaptiveLimiter) OnCancelled() {
	l.mu.Lock()
	l.limit = 1
	l.successes = 0
	l.mu.Unlock()
}

func (l *adaptiveLimiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// wakeLocked wakes every waiter; they re-contend for slots under the lock.
func (l *adaptiveLimiter) wakeLocked() {
	for _, ch := range l.waiters {
		close(ch)
	}
	l.waiters = nil
}
