// Package cache opens the Redis connection shared by the task store, the
// rate limiter and the idempotency guard.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uniedit/mediagen/internal/infra/config"
)

const pingTimeout = 5 * time.Second

// NewRedisClient connects to cfg.Address and verifies the connection. A
// comma-separated address list yields a cluster client.
func NewRedisClient(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	addrs := splitAddrs(cfg.Address)
	if len(addrs) == 0 {
		return nil, errors.New("redis address is empty")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}
	return client, nil
}

func splitAddrs(address string) []string {
	var addrs []string
	for _, a := range strings.Split(address, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}
