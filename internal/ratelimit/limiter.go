// Package ratelimit throttles outbound HTTP calls to the symbol validator,
// independent of its manual exponential-backoff retry loop (SPEC_FULL §4.K).
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a per-host token bucket. A single Limiter may guard several
// hosts; each gets its own bucket, created lazily.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// New creates a Limiter with the given requests-per-second and burst size.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[host]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[host] = limiter
	return limiter
}

// Wait blocks until a token for host is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.getLimiter(host).Wait(ctx)
}

// Allow reports whether a request for host may proceed immediately,
// consuming a token if so.
func (l *Limiter) Allow(host string) bool {
	return l.getLimiter(host).Allow()
}
