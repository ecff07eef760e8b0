// Package chat implements the message routing core. This file provides the
// per-user fixed-window limiter that bounds message submission frequency.
//
// The limiter is process-local and intentionally simpler than the HTTP edge
// token bucket: the contract is "at most N submissions per window", counted
// against a window that resets lazily on the next check after expiry. Stale
// entries are swept opportunistically during lookups to bound memory, the
// same discipline the edge limiter uses for idle buckets.
package chat

import (
	"sync"
	"time"
)

// rateWindow tracks one user's submissions within the active window.
type rateWindow struct {
	count   int
	resetAt time.Time
}

// WindowLimiter implements a per-user fixed-window counter.
//
// This type is safe for concurrent use.
type WindowLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*rateWindow
	sweepN  uint64

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewWindowLimiter constructs a limiter allowing limit submissions per
// window. limit values < 1 are coerced to 1.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Allow reports whether userID may submit another message now. When the
// ceiling is reached it returns false and the time remaining until the
// window resets, which transports surface as a retry hint.
func (l *WindowLimiter) Allow(userID string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Opportunistic sweep: drop entries whose window expired more than one
	// full window ago. Run before touching the requested entry so even the
	// entry being fetched can be evicted when long idle.
	l.sweepN++
	if l.sweepN >= 1024 {
		for k, w := range l.entries {
			if now.Sub(w.resetAt) >= l.window {
				delete(l.entries, k)
			}
		}
		l.sweepN = 0
	}

	w, ok := l.entries[userID]
	if !ok || !now.Before(w.resetAt) {
		l.entries[userID] = &rateWindow{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}

	if w.count >= l.limit {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}
