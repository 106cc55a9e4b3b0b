// Package ratelimit throttles sensitive endpoints with fixed time windows.
package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/elimu/core"
)

type Limiter interface {
	// Allow records one hit for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

type redisLimiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
}

// NewClient connects to conf.Redis.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", conf.Redis.Address)
	}
	return client, nil
}

// NewRedisLimiter allows max hits per key in each window.
func NewRedisLimiter(client *redis.Client, prefix string, max int, window time.Duration) Limiter {
	return &redisLimiter{client: client, prefix: prefix, max: int64(max), window: window}
}

// Allow counts the hit and sets the window expiry in one MULTI. EXPIRE NX leaves a running
// window alone and gives one to any key that lost its TTL.
func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "ratelimit:" + l.prefix + ":" + key

	var hits *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "rate limit")
	}
	return hits.Val() <= l.max, nil
}

type noop struct{}

// NewNoop returns a limiter that allows everything.
func NewNoop() Limiter { return noop{} }

func (noop) Allow(context.Context, string) (bool, error) { return true, nil }
