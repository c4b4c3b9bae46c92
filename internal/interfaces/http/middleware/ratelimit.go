package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"github.com/pharmaerp/receiving/internal/interfaces/http/dto"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// NewRateLimiter creates an in-memory limiter allowing requests per window
func NewRateLimiter(requests int64, window time.Duration) *limiter.Limiter {
	store := memory.NewStore()
	return limiter.New(store, limiter.Rate{Period: window, Limit: requests})
}

// RateLimit limits requests per client IP
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return RateLimitByKey(l, func(c *gin.Context) string { return c.ClientIP() })
}

// RateLimitByKey limits requests per key extracted from the request
func RateLimitByKey(l *limiter.Limiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		lctx, err := l.Get(c.Request.Context(), key)
		if err != nil {
			// fail open on store errors
			logger.L(c.Request.Context()).Error("rate limit check failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			logger.L(c.Request.Context()).Warn("rate limit exceeded",
				zap.String("key", key),
				zap.Int64("limit", lctx.Limit),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				GetRequestID(c),
			))
			return
		}

		c.Next()
	}
}
