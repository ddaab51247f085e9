// Package ratelimit implements the token-bucket rate limiter the gateway
// consumes through the "Rate limiter: limit({key}) → {success, remaining?,
// reset?}" contract (spec.md §6).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the limiter contract's response shape.
type Result struct {
	Success   bool
	Remaining int
	Reset     time.Time
}

// Limiter holds one token bucket per key, created lazily and never evicted
// — bounded by the number of distinct keys seen (tenants, principals, or
// IPs), which is small relative to request volume in practice.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New builds a Limiter allowing requestsPerSecond sustained, bursting up
// to burst.
func New(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
	}
}

// Limit consumes one token for key, returning whether the request is
// allowed and the bucket's current remaining/reset estimate.
func (l *Limiter) Limit(key string) Result {
	b := l.bucketFor(key)
	now := time.Now()
	res := b.ReserveN(now, 1)
	if !res.OK() {
		return Result{Success: false}
	}
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
		return Result{
			Success:   false,
			Remaining: 0,
			Reset:     now.Add(delay),
		}
	}
	return Result{
		Success:   true,
		Remaining: int(b.TokensAt(now)),
		Reset:     now,
	}
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = b
	}
	return b
}
