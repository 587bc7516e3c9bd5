package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyRouter(client goredis.UniversalClient, calls *atomic.Int32, status int) *gin.Engine {
	router := gin.New()
	router.Use(Auth(nil, "owner-1"))
	router.POST("/tasks", Idempotency(client, DefaultIdempotencyConfig(), nil), func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(status, gin.H{"call": n})
	})
	return router
}

func postWithKey(router *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/tasks", nil)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// unreachableRedis fails every command quickly.
func unreachableRedis(t *testing.T) goredis.UniversalClient {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIdempotency_PassThrough(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		var calls atomic.Int32
		router := newIdempotencyRouter(nil, &calls, http.StatusCreated)

		postWithKey(router, "k1")
		postWithKey(router, "k1")
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("redis unavailable", func(t *testing.T) {
		var calls atomic.Int32
		router := newIdempotencyRouter(unreachableRedis(t), &calls, http.StatusCreated)

		w := postWithKey(router, "k1")
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("no key", func(t *testing.T) {
		var calls atomic.Int32
		router := newIdempotencyRouter(unreachableRedis(t), &calls, http.StatusCreated)

		postWithKey(router, "")
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	var calls atomic.Int32
	router := newIdempotencyRouter(unreachableRedis(t), &calls, http.StatusCreated)

	w := postWithKey(router, strings.Repeat("k", maxIdempotencyKeyLen+1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_input")
	assert.Zero(t, calls.Load())
}

func newRedisForTest(t *testing.T) goredis.UniversalClient {
	t.Helper()
	addr := os.Getenv("MEDIAGEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MEDIAGEN_TEST_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIdempotency_Integration(t *testing.T) {
	client := newRedisForTest(t)

	t.Run("replays stored response", func(t *testing.T) {
		var calls atomic.Int32
		router := newIdempotencyRouter(client, &calls, http.StatusCreated)
		key := uuid.NewString()

		first := postWithKey(router, key)
		second := postWithKey(router, key)

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, "true", second.Header().Get(IdempotencyReplayedHeader))
		assert.Empty(t, first.Header().Get(IdempotencyReplayedHeader))
	})

	t.Run("server errors are not stored", func(t *testing.T) {
		var calls atomic.Int32
		router := newIdempotencyRouter(client, &calls, http.StatusBadGateway)
		key := uuid.NewString()

		postWithKey(router, key)
		postWithKey(router, key)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("claimed key conflicts", func(t *testing.T) {
		var calls atomic.Int32
		router := newIdempotencyRouter(client, &calls, http.StatusCreated)
		key := uuid.NewString()

		lock := idempotencyCacheKeyFor(http.MethodPost, "/tasks", "owner-1", key) + ":lock"
		require.NoError(t, client.Set(context.Background(), lock, 1, time.Minute).Err())

		w := postWithKey(router, key)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "request_in_progress")
		assert.Zero(t, calls.Load())
	})
}
