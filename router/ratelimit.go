package router

import (
	"sync"
	"time"
)

// windowLimiter is a per-key sliding-window log: a request is admitted when
// fewer than limit requests were admitted within the trailing window.
type windowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func newWindowLimiter(rl RateLimit) *windowLimiter {
	return &windowLimiter{
		limit:  rl.Requests,
		window: rl.Window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a request for key if the window has room.
func (l *windowLimiter) Allow(key string) bool {
	if l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// Remaining reports how many requests key may still make in the current window.
func (l *windowLimiter) Remaining(key string) int {
	if l.limit <= 0 || l.window <= 0 {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			n++
		}
	}
	return l.limit - n
}
