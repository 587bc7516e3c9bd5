package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/uniedit/mediagen/internal/utils/errors"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayedHeader is set on responses served from the replay cache.
	IdempotencyReplayedHeader = "Idempotent-Replayed"

	idempotencyKeyPrefix  = "media:idempotency:"
	maxIdempotencyKeyLen  = 255
	defaultIdempotencyTTL = 24 * time.Hour
	defaultLockTTL        = 30 * time.Second
)

// IdempotencyConfig holds idempotency middleware configuration.
type IdempotencyConfig struct {
	// TTL is how long a stored response is replayed.
	TTL time.Duration
	// LockTTL bounds how long a key stays claimed by an unfinished request.
	LockTTL time.Duration
}

// DefaultIdempotencyConfig returns the default idempotency configuration.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     defaultIdempotencyTTL,
		LockTTL: defaultLockTTL,
	}
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a request repeated with the same
// Idempotency-Key by the same owner, so a retried submit does not start a
// second generation. Requests without the header, and every request when
// redis is nil or unreachable, pass through. 5xx responses are not stored so
// the client can retry them.
func Idempotency(redis goredis.UniversalClient, cfg IdempotencyConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultIdempotencyTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if redis == nil || key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			apperrors.Abort(c, apperrors.InvalidInput("Idempotency-Key is too long"))
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyCacheKey(c, key)

		stored, err := loadResponse(ctx, redis, cacheKey)
		switch {
		case err == nil:
			c.Header(IdempotencyReplayedHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		case !errors.Is(err, goredis.Nil):
			logger.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		lockKey := cacheKey + ":lock"
		claimed, err := redis.SetNX(ctx, lockKey, 1, cfg.LockTTL).Result()
		if err != nil {
			logger.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			apperrors.Abort(c, apperrors.Conflict(apperrors.CodeRequestInProgress,
				"A request with this idempotency key is already being processed"))
			return
		}
		// The handler may have canceled ctx by the time we clean up.
		defer redis.Del(context.WithoutCancel(ctx), lockKey)

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if w.Status() >= 500 {
			return
		}
		resp := storedResponse{
			Status:      w.Status(),
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		if err := storeResponse(context.WithoutCancel(ctx), redis, cacheKey, resp, cfg.TTL); err != nil {
			logger.Warn("store idempotent response", zap.Error(err))
		}
	}
}

func idempotencyCacheKey(c *gin.Context, key string) string {
	return idempotencyCacheKeyFor(c.Request.Method, c.FullPath(), GetOwnerID(c), key)
}

func idempotencyCacheKeyFor(method, route, owner, key string) string {
	sum := sha256.Sum256([]byte(method + ":" + route + ":" + owner + ":" + key))
	return idempotencyKeyPrefix + hex.EncodeToString(sum[:])
}

func loadResponse(ctx context.Context, redis goredis.UniversalClient, key string) (*storedResponse, error) {
	data, err := redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var resp storedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func storeResponse(ctx context.Context, redis goredis.UniversalClient, key string, resp storedResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return redis.Set(ctx, key, data, ttl).Err()
}
