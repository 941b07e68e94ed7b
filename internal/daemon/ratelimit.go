package daemon

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimiter is a per client IP token bucket.
type RateLimiter struct {
	buckets       sync.Map // client IP -> *bucket
	rate          float64  // tokens per second
	burst         int
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}

	rl := &RateLimiter{
		rate:          rate,
		burst:         burst,
		stopCleanup:   make(chan struct{}),
		cleanupTicker: time.NewTicker(5 * time.Minute),
	}

	go rl.cleanup()

	return rl
}

// NewPerMinuteRateLimiter takes the limit in the unit the config uses.
func NewPerMinuteRateLimiter(requestsPerMinute int, burst int) *RateLimiter {
	return NewRateLimiter(float64(requestsPerMinute)/60.0, burst)
}

// Middleware rejects requests over the limit. onLimited renders the
// response; nil sends a plain JSON 429.
func (rl *RateLimiter) Middleware(onLimited gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if rl.Allow(ip) {
			c.Next()
			return
		}

		LogWithCorrelation(c).WithFields(logrus.Fields{
			"ip":   ip,
			"path": c.Request.URL.Path,
		}).Warn("Rate limit exceeded")

		c.Header("Retry-After", "60")

		if onLimited != nil {
			onLimited(c)
			c.Abort()
			return
		}

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many attempts. Please try again later.",
		})
	}
}

// Allow takes one token from the bucket for ip if one is available.
func (rl *RateLimiter) Allow(ip string) bool {
	now := time.Now()

	value, _ := rl.buckets.LoadOrStore(ip, &bucket{
		tokens:     float64(rl.burst),
		lastRefill: now,
	})

	b := value.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}

	return false
}

// cleanup drops buckets idle for ten minutes.
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			cutoff := time.Now().Add(-10 * time.Minute)

			rl.buckets.Range(func(key, value any) bool {
				b := value.(*bucket)
				b.mu.Lock()
				stale := b.lastRefill.Before(cutoff)
				b.mu.Unlock()

				if stale {
					rl.buckets.Delete(key)
				}
				return true
			})

		case <-rl.stopCleanup:
			rl.cleanupTicker.Stop()
			return
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Size returns the number of tracked client IPs.
func (rl *RateLimiter) Size() int {
	count := 0
	rl.buckets.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
