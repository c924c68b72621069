package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker takes a SETNX lock per fire so replicas sharing redis fire once.
type RedisLocker struct {
	Client *redis.Client
}

func (l RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.Client.SetNX(ctx, key, "1", ttl).Result()
}
