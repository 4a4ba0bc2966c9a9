package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/metrics"
	"github.com/blogify/notifier/internal/util"
	"github.com/gin-gonic/gin"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc picks the bucket for a request
	KeyFunc func(c *gin.Context) string
}

// ByUserOrIP buckets authenticated callers by id and anonymous ones by IP.
func ByUserOrIP(c *gin.Context) string {
	if userID := util.OptionalUserID(c); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 100, Window: time.Minute, KeyFunc: ByUserOrIP}
}

// TriggerRateLimitConfig is the stricter limit on the raw event trigger.
func TriggerRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 30, Window: time.Minute, KeyFunc: ByUserOrIP}
}

// TokenBucket for rate limiting
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed based on token availability
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tb.tokens = math.Min(tb.maxTokens, tb.tokens+now.Sub(tb.lastRefill).Seconds()*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// RetryAfter returns seconds to wait before next request
func (tb *TokenBucket) RetryAfter() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.tokens < 1 {
		return int((1-tb.tokens)/tb.refillRate) + 1
	}
	return 0
}

// idle reports whether the bucket has refilled completely, i.e. its owner
// has been quiet for a full window.
func (tb *TokenBucket) idle(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens+now.Sub(tb.lastRefill).Seconds()*tb.refillRate >= tb.maxTokens
}

// RateLimiter keeps one token bucket per key in process memory.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitConfig
	mu      sync.Mutex
}

// NewRateLimiter creates a new rate limiting middleware
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = ByUserOrIP
	}
	rl := &RateLimiter{buckets: make(map[string]*TokenBucket), config: config}

	return func(c *gin.Context) {
		bucket := rl.bucket(config.KeyFunc(c))
		if !bucket.Allow() {
			rejectRateLimited(c, config.Limit, bucket.RetryAfter())
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) bucket(key string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// sweep on growth so the map cannot grow without bound
	if len(rl.buckets) >= 10000 {
		now := time.Now()
		for k, b := range rl.buckets {
			if b.idle(now) {
				delete(rl.buckets, k)
			}
		}
	}

	bucket, ok := rl.buckets[key]
	if !ok {
		refillRate := float64(rl.config.Limit) / rl.config.Window.Seconds()
		bucket = NewTokenBucket(float64(rl.config.Limit), refillRate)
		rl.buckets[key] = bucket
	}
	return bucket
}

func rejectRateLimited(c *gin.Context, limit, retryAfter int) {
	path := c.FullPath()
	metrics.Get().RateLimitExceededTotal.WithLabelValues(path).Inc()
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", "0")
	util.RespondWithAPIError(c, errors.RateLimited(retryAfter))
}
