package internal

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window counter keyed by an arbitrary string:
// a client IP for the upload endpoint, a connection id for message flow.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for the key and reports whether it fits the window.
func (r *RateLimiter) Allow(key string) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.prune(key, now)
	if len(kept) >= r.limit {
		return false
	}
	r.hits[key] = append(kept, now)
	return true
}

// Remaining reports how many hits the key has left in the current window
// without consuming one.
func (r *RateLimiter) Remaining(key string) int {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	left := r.limit - len(r.prune(key, now))
	if left < 0 {
		left = 0
	}
	return left
}

// prune drops hits that fell out of the window. Hits are appended in time
// order, so expiry is always a prefix. Caller holds the lock.
func (r *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	slice := r.hits[key]
	expired := 0
	for expired < len(slice) && !slice[expired].After(cutoff) {
		expired++
	}
	if expired > 0 {
		slice = slice[expired:]
		r.hits[key] = slice
	}
	return slice
}

// Forget drops a key's window so disconnected connections don't accumulate.
func (r *RateLimiter) Forget(key string) {
	r.mu.Lock()
	delete(r.hits, key)
	r.mu.Unlock()
}
