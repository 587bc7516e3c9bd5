package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/port/outbound"
	apperrors "github.com/uniedit/mediagen/internal/utils/errors"
)

const (
	// RateLimitRemaining is the header for remaining requests.
	RateLimitRemaining = "X-RateLimit-Remaining"
	// RateLimitLimit is the header for the limit.
	RateLimitLimit = "X-RateLimit-Limit"
	// RetryAfter is the header for retry time.
	RetryAfter = "Retry-After"
)

// RateLimitConfig holds rate limit configuration.
type RateLimitConfig struct {
	// Limit is the maximum number of requests per Window.
	Limit  int
	Window time.Duration
	// KeyFunc generates the rate limit key from request.
	// Default uses the owner id, falling back to the client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a middleware that limits requests using the given
// limiter. A nil limiter disables limiting; limiter errors let the request
// through.
func RateLimit(limiter outbound.RateLimiterPort, cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ownerOrIP
	}

	return func(c *gin.Context) {
		if limiter == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		allowed, remaining, err := limiter.Allow(c.Request.Context(), cfg.KeyFunc(c), cfg.Limit, cfg.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header(RateLimitLimit, strconv.Itoa(cfg.Limit))
		c.Header(RateLimitRemaining, strconv.Itoa(remaining))

		if !allowed {
			c.Header(RetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			apperrors.Abort(c, apperrors.RateLimited("Too many requests, please try again later"))
			return
		}

		c.Next()
	}
}

func ownerOrIP(c *gin.Context) string {
	if owner := GetOwnerID(c); owner != "" {
		return "owner:" + owner
	}
	return "ip:" + c.ClientIP()
}
