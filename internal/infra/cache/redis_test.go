package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uniedit/mediagen/internal/infra/config"
)

func TestSplitAddrs(t *testing.T) {
	assert.Nil(t, splitAddrs(""))
	assert.Equal(t, []string{"localhost:6379"}, splitAddrs("localhost:6379"))
	assert.Equal(t, []string{"a:7000", "b:7001"}, splitAddrs(" a:7000, ,b:7001 "))
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := NewRedisClient(&config.RedisConfig{})
	assert.Error(t, err)

	_, err = NewRedisClient(&config.RedisConfig{Address: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "ping redis")
}
