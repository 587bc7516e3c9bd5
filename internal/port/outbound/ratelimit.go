package outbound

import (
	"context"
	"time"
)

// RateLimiterPort limits actions per key over a sliding window.
type RateLimiterPort interface {
	// Allow records one action for key when it fits within limit per window.
	// It reports whether the action was allowed and the remaining budget.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}
