package messaging

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is the subset of the Redis client used by Server and Client.
// *redis.Client satisfies it.
type Queue interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Queue = (*redis.Client)(nil)
