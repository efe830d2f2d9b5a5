package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed holds one token bucket per key (client address, reviewer id, ...).
// Idle buckets are evicted lazily when the map is read, so no background
// goroutine is needed and the state dies with the owner.
// ⭐ SSOT: in-process rate limits live here only
type Keyed struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyed creates a keyed limiter allowing rps requests per second per key
// with the given burst. Buckets idle for longer than idleTTL are dropped.
func NewKeyed(rps float64, burst int, idleTTL time.Duration) *Keyed {
	return &Keyed{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether one more request for key may proceed now
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	k.evictLocked(now)

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1)
}

// Len returns the number of live buckets after evicting idle ones
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.evictLocked(k.now())
	return len(k.buckets)
}

// evictLocked drops idle buckets at most once per idleTTL/2
func (k *Keyed) evictLocked(now time.Time) {
	if k.idleTTL <= 0 || now.Sub(k.lastSweep) < k.idleTTL/2 {
		return
	}
	k.lastSweep = now

	for key, b := range k.buckets {
		if now.Sub(b.lastSeen) > k.idleTTL {
			delete(k.buckets, key)
		}
	}
}
