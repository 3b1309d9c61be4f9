package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 30 * time.Minute

// KeyedRateLimiter keeps one token bucket per key (a chat session or a client address)
type KeyedRateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	swept    time.Time
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedRateLimiter allows perMinute requests per key with the given burst.
// A non-positive perMinute returns nil, which allows everything.
func NewKeyedRateLimiter(perMinute, burst int) *KeyedRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &KeyedRateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*keyedLimiter),
	}
}

// Allow reports whether a request for key may proceed now
func (l *KeyedRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	kl, ok := l.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = kl
	}
	kl.lastSeen = now
	return kl.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys
func (l *KeyedRateLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *KeyedRateLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < limiterIdleTTL {
		return
	}
	l.swept = now
	for key, kl := range l.limiters {
		if now.Sub(kl.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

// RateLimit rejects requests over the per-client budget with 429
func RateLimit(l *KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
