// Package ratelimit provides per-route token bucket rate limiters.
package ratelimit

import (
	"sync"

	ratelib "golang.org/x/time/rate"
)

// Limiter manages a collection of token bucket rate limiters keyed by route.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*ratelib.Limiter
}

func NewLimiter() *Limiter {
	return &Limiter{
		limiters: make(map[string]*ratelib.Limiter),
	}
}

// Allow checks if a request is allowed for the given key, updating the
// limiter's rate and burst if the route's configuration changed on reload.
func (l *Limiter) Allow(key string, rps float64, burst int) bool {
	l.mu.RLock()
	lim, ok := l.limiters[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		lim, ok = l.limiters[key]
		if !ok {
			lim = ratelib.NewLimiter(ratelib.Limit(rps), burst)
			l.limiters[key] = lim
		}
		l.mu.Unlock()
	}

	// Exact config comparison is intended here; the values come from the
	// same parsed configuration on every call.
	if lim.Limit() != ratelib.Limit(rps) {
		lim.SetLimit(ratelib.Limit(rps))
	}
	if lim.Burst() != burst {
		lim.SetBurst(burst)
	}

	return lim.Allow()
}

// Remove drops the limiter for the given key. Called when a reload removes
// a route from the table.
func (l *Limiter) Remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}
