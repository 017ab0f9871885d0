package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tasmil/shared/apperr"
)

// KeyedLimiter hands out a token-bucket limiter per key (wallet address, IP).
// Entries idle longer than an hour are evicted on the next sweep.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	lastGC   time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func New(requestsPerMinute, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
		lastGC:   time.Now(),
	}
}

// Consume takes n tokens for key, returning RATE_LIMIT_EXCEEDED when the
// bucket is empty.
func (k *KeyedLimiter) Consume(key string, n int) error {
	k.mu.Lock()
	e, ok := k.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.limiters[key] = e
	}
	e.lastSeen = time.Now()
	k.maybeSweep()
	k.mu.Unlock()

	if !e.limiter.AllowN(time.Now(), n) {
		return apperr.ErrRateLimited
	}
	return nil
}

// maybeSweep drops idle entries. Caller holds the lock.
func (k *KeyedLimiter) maybeSweep() {
	if time.Since(k.lastGC) < time.Hour {
		return
	}
	for key, e := range k.limiters {
		if time.Since(e.lastSeen) > time.Hour {
			delete(k.limiters, key)
		}
	}
	k.lastGC = time.Now()
}
