package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Zachkp/folio/internal/cache"
)

// Limiter throttles sign-in attempts per client key (the hashed IP).
// Idle keys are forgotten after ten minutes.
type Limiter struct {
	limit rate.Limit
	burst int

	// mu makes get-or-create atomic per key.
	mu   sync.Mutex
	keys *cache.TTLCache[string, *rate.Limiter]
}

// NewLimiter allows perMinute attempts per key with a burst of the same size.
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	return &Limiter{
		limit: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: perMinute,
		keys:  cache.New[string, *rate.Limiter](10*time.Minute, time.Minute),
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.keys.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	l.keys.Set(key, lim)
	l.mu.Unlock()
	return lim.Allow()
}

// Reset forgets key, e.g. after a successful sign-in.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	l.keys.Delete(key)
	l.mu.Unlock()
}

func (l *Limiter) Close() {
	l.keys.Close()
}
