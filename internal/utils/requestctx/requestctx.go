// Package requestctx carries request-scoped values from the HTTP layer into
// the service layer without importing gin.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	ownerIDKey
)

// WithRequestID stores the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id, or "".
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

// WithOwnerID stores the authenticated owner.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// OwnerID returns the authenticated owner, or "".
func OwnerID(ctx context.Context) string {
	s, _ := ctx.Value(ownerIDKey).(string)
	return s
}

// Logger returns base annotated with the request id and owner found in ctx.
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	var fields []zap.Field
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if owner := OwnerID(ctx); owner != "" {
		fields = append(fields, zap.String("owner_id", owner))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
