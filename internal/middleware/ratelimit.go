package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// SlidingWindow bounds how often a key may act within a rolling interval.
// Timestamps are pruned lazily on each check; Reset clears everything, which
// test setups rely on. The check-then-record race between goroutines sharing
// a key is bounded by the mutex, so the limiter stays best-effort accurate.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	hits   map[string][]time.Time

	now func() time.Time
}

const (
	DefaultWindow = 60 * time.Second
	DefaultLimit  = 10
)

func NewSlidingWindow(window time.Duration, limit int) *SlidingWindow {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &SlidingWindow{
		window: window,
		limit:  limit,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether the key may act now, recording the hit when it may.
// A denied call records nothing.
func (sw *SlidingWindow) Allow(key string) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	cutoff := now.Add(-sw.window)

	kept := sw.hits[key][:0]
	for _, t := range sw.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= sw.limit {
		sw.hits[key] = kept
		return false
	}

	sw.hits[key] = append(kept, now)
	return true
}

// Reset drops all recorded state for every key.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.hits = make(map[string][]time.Time)
}

// RateLimitMiddleware applies the shared limiter per authenticated owner.
func RateLimitMiddleware(limiter *SlidingWindow) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip rate limit for health check
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			key := GetOwnerFromContext(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}

			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window/time.Second)))
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
