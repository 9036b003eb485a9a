// Package ratelimit provides a keyed token-bucket limiter. Inbound handlers
// use Allow per client address; outbound clients use Wait per upstream.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long a key's bucket survives without use.
const DefaultIdleTTL = 10 * time.Minute

// KeyedRateLimiter gives every key its own token bucket. Buckets idle for
// longer than the TTL are dropped, so a key seen again starts with a full burst.
type KeyedRateLimiter struct {
	mu       sync.Mutex // serializes bucket creation
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
	stopOnce sync.Once
}

// New creates a keyed limiter allowing rps requests per second per key with
// the given burst.
func New(rps float64, burst int) *KeyedRateLimiter {
	return NewWithTTL(rps, burst, DefaultIdleTTL)
}

// NewWithTTL is New with an explicit idle TTL.
func NewWithTTL(rps float64, burst int, idle time.Duration) *KeyedRateLimiter {
	if idle <= 0 {
		idle = DefaultIdleTTL
	}
	return &KeyedRateLimiter{
		limiters: cache.New(idle, idle),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// PerInterval converts "n requests per interval" into requests per second.
func PerInterval(n int, interval time.Duration) float64 {
	if interval <= 0 {
		return float64(n)
	}
	return float64(n) / interval.Seconds()
}

// Allow reports whether a request for key may proceed now. It never blocks.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	return krl.limiters.ItemCount()
}

func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	if v, found := krl.limiters.Get(key); found {
		l := v.(*rate.Limiter)
		krl.limiters.Set(key, l, cache.DefaultExpiration)
		return l
	}

	krl.mu.Lock()
	defer krl.mu.Unlock()

	if v, found := krl.limiters.Get(key); found {
		return v.(*rate.Limiter)
	}

	l := rate.NewLimiter(krl.limit, krl.burst)
	krl.limiters.Set(key, l, cache.DefaultExpiration)
	return l
}

// Stop drops every bucket. The limiter stays usable.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		krl.limiters.Flush()
	})
}
