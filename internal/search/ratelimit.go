package search

import (
	"sync"
	"time"
)

// RateLimiter admits or rejects requests per client key.
type RateLimiter interface {
	Allow(key string) bool
}

// Simple token bucket per IP
type ipBucket struct {
	tokens     int
	lastRefill time.Time
}

type IPRateLimiter struct {
	mu             sync.Mutex
	buckets        map[string]*ipBucket
	cap            int
	refillDuration time.Duration
	now            func() time.Time
}

func NewIPRateLimiter(cap int, refill time.Duration) *IPRateLimiter {
	return &IPRateLimiter{buckets: make(map[string]*ipBucket), cap: cap, refillDuration: refill, now: time.Now}
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	rl.prune(now)
	b, ok := rl.buckets[ip]
	if !ok {
		rl.buckets[ip] = &ipBucket{tokens: rl.cap - 1, lastRefill: now}
		return rl.cap > 0
	}
	// refill if interval passed
	if now.Sub(b.lastRefill) >= rl.refillDuration {
		b.tokens = rl.cap
		b.lastRefill = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// prune drops buckets idle for two windows once the map grows large.
func (rl *IPRateLimiter) prune(now time.Time) {
	if len(rl.buckets) < 10000 {
		return
	}
	for ip, b := range rl.buckets {
		if now.Sub(b.lastRefill) > 2*rl.refillDuration {
			delete(rl.buckets, ip)
		}
	}
}
