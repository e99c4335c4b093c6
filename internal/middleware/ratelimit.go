package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"notifyhub/internal/common"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket rate limiter. Clients presenting
// one of the configured API keys are keyed by that key, everyone else by IP.
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	apiKeys  []string
	now      func() time.Time
}

// NewRateLimiter creates a new RateLimiter. apiKeys are the keys that earn
// their own bucket.
func NewRateLimiter(rps float64, burst int, apiKeys []string) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		apiKeys:  apiKeys,
		now:      time.Now,
	}
}

// getLimiter retrieves or creates the limiter for a client.
func (rl *RateLimiter) getLimiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.limiters[client]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[client] = cl
	}
	cl.lastSeen = rl.now()
	return cl.limiter
}

// Sweep drops limiters idle for longer than maxIdle and returns how many were dropped.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	dropped := 0
	for client, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, client)
			dropped++
		}
	}
	return dropped
}

// RunSweeper sweeps idle limiters every interval until ctx is done.
func (rl *RateLimiter) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(maxIdle)
		}
	}
}

// Middleware returns a Gin middleware that enforces rate limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := "ip:" + c.ClientIP()
		if key := presentedKey(c); key != "" && isValidKey(key, rl.apiKeys) {
			client = "key:" + key
		}

		limiter := rl.getLimiter(client)
		if !limiter.Allow() {
			if rl.rate > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(1/float64(rl.rate)))))
			}
			common.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
