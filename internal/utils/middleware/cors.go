package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig returns the cross-origin policy of the API. An empty or "*"
// origin list allows every origin. Browsers may read the request id, the
// rate limit headers and the idempotent replay marker.
func CORSConfig(allowOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", AuthorizationHeader, RequestIDHeader, IdempotencyKeyHeader},
		ExposeHeaders: []string{
			"Content-Length", RequestIDHeader,
			RateLimitLimit, RateLimitRemaining, RetryAfter,
			IdempotencyReplayedHeader,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(allowOrigins) == 0 || (len(allowOrigins) == 1 && allowOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowOrigins
	}
	return cfg
}

// CORS returns the CORS middleware for allowOrigins.
func CORS(allowOrigins []string) gin.HandlerFunc {
	return cors.New(CORSConfig(allowOrigins))
}
