// Package moderation holds the send-abuse controls for the reference
// gateway server. State is owned by the limiter instance and injected
// where needed, never package-level.
package moderation

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-user sliding-window send limit. Entries age
// out of the window on access, so the history map does not grow with idle
// users.
type RateLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	limit   int
	window  time.Duration
	history map[string][]time.Time
}

// NewRateLimiter allows up to limit sends per user within the window.
// The now function is injectable for tests; pass nil for the system clock.
func NewRateLimiter(limit int, window time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		now:     now,
		limit:   limit,
		window:  window,
		history: make(map[string][]time.Time),
	}
}

// Allow records a send attempt for the user. When the user is over the
// limit it returns false and how long they should wait before the oldest
// attempt leaves the window.
func (l *RateLimiter) Allow(userID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.history[userID][:0]
	for _, t := range l.history[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.history[userID] = recent
		return false, recent[0].Sub(cutoff)
	}

	l.history[userID] = append(recent, now)
	return true, 0
}

// Forget drops the user's history entirely.
func (l *RateLimiter) Forget(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.history, userID)
}

// Sweep evicts users whose entire history fell out of the window. Meant to
// be called periodically so long-gone users do not linger in memory.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for id, times := range l.history {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.history, id)
		}
	}
}
