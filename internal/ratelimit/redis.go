package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore is a CounterStore backed by Redis, for deployments where the
// counter must be shared across replicas. Counting uses INCR with a TTL set
// on the first hit of each window, so eviction is handled by Redis itself.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedisStore creates a counter store on the given client.
func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisStore{client: client, window: window}
}

// Hit implements CounterStore.
func (s *RedisStore) Hit(ctx context.Context, identity string) (int, error) {
	key := redisKeyPrefix + identity
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, s.window).Err(); err != nil {
			return 0, err
		}
	}
	return int(n), nil
}
