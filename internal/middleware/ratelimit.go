package middleware

import (
	"net/http"
	"sync"
	"time"

	"localnotify/internal/common"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket rate limiter per API key, falling back to
// the client IP for unauthenticated requests.
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
}

// NewRateLimiter creates a new RateLimiter.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

// getLimiter retrieves or creates a rate limiter for the given client key.
// Limiters idle for longer than rl.idle are evicted on the way.
func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.limiters, k)
		}
	}

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func clientKey(c *gin.Context) string {
	if key := c.GetHeader(apiKeyHeader); key != "" {
		return "key:" + key
	}
	return "ip:" + c.ClientIP()
}

// Middleware returns a Gin middleware that enforces rate limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getLimiter(clientKey(c), time.Now())
		if !limiter.Allow() {
			common.ErrorWithReason(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
