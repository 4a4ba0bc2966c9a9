package middleware

import (
	"context"
	"time"

	"github.com/blogify/notifier/internal/cache"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared by every
// instance. A nil client falls back to the in-memory limiter.
func RedisRateLimitMiddleware(rc *cache.RedisClient, config RateLimitConfig) gin.HandlerFunc {
	if rc == nil {
		return NewRateLimiter(config)
	}
	if config.KeyFunc == nil {
		config.KeyFunc = ByUserOrIP
	}

	return func(c *gin.Context) {
		key := "notifier:rate_limit:" + c.FullPath() + ":" + config.KeyFunc(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		pipe := rc.Client().TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, config.Window)
		if _, err := pipe.Exec(ctx); err != nil {
			// fail closed: a broken limiter must not open the API up
			logger.Log.Error("Rate limit check failed", zap.String("key", key), zap.Error(err))
			util.RespondWithAPIError(c, errors.ServiceUnavailable("rate limiter"))
			return
		}

		if incr.Val() > int64(config.Limit) {
			ttl, err := rc.Client().TTL(ctx, key).Result()
			retryAfter := int(config.Window.Seconds())
			if err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds()) + 1
			}
			rejectRateLimited(c, config.Limit, retryAfter)
			return
		}
		c.Next()
	}
}
