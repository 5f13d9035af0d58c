package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisDialTimeout = 5 * time.Second

// RedisConfig holds Redis connection configuration. Sessions and shared
// rate-limit counters live in the same database.
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int           // 0 keeps the go-redis default
	DialTimeout time.Duration // 0 means defaultRedisDialTimeout
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) options() *redis.Options {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = defaultRedisDialTimeout
	}
	return &redis.Options{
		Addr:        c.Addr(),
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		DialTimeout: dial,
	}
}

// NewRedisClient creates a Redis client and pings it once. A client that
// cannot reach the server is closed before the error is returned.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(cfg.options())

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr(), err)
	}

	return client, nil
}
