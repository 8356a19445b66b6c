package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UploadLimiter throttles image uploads per browser session with a token bucket each.
type UploadLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	clock    func() time.Time
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUploadLimiter allows perMinute uploads per key with the given burst.
func NewUploadLimiter(perMinute float64, burst int) *UploadLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UploadLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		clock:    time.Now,
		limiters: make(map[string]*limiterEntry),
	}
}

// Allow consumes one token for key.
func (l *UploadLimiter) Allow(key string) bool {
	now := l.clock()
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

// Prune forgets keys idle for longer than maxIdle.
func (l *UploadLimiter) Prune(maxIdle time.Duration) int {
	cutoff := l.clock().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	pruned := 0
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			pruned++
		}
	}
	return pruned
}
