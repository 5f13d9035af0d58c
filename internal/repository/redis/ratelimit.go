package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:"

// counterGrace keeps a window's counter alive briefly past its end so that
// requests racing the boundary still see a consistent count.
const counterGrace = time.Second

// RateLimitStore keeps fixed-window counters in Redis so that every instance
// of the service shares one counter per client key and window.
type RateLimitStore struct {
	client *redis.Client
}

// NewRateLimitStore creates a new Redis-backed rate-limit counter store.
func NewRateLimitStore(client *redis.Client) *RateLimitStore {
	return &RateLimitStore{client: client}
}

// Increment atomically increments the counter for key in the window starting
// at windowStart and returns the post-increment count. INCR and PEXPIREAT run
// in one MULTI/EXEC so a counter never outlives its window without a TTL.
func (s *RateLimitStore) Increment(ctx context.Context, key string, windowStart time.Time, window time.Duration) (int64, error) {
	redisKey := rateLimitKeyPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpireAt(ctx, redisKey, windowStart.Add(window+counterGrace))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis increment rate limit counter: %w", err)
	}

	return incr.Val(), nil
}
