package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds register throttle tuning parameters.
type Config struct {
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	MaxAttempts         int
	Window              time.Duration
}

// Limiter decides whether another registration may start for an email
// address and client IP.
type Limiter interface {
	CheckRegister(ctx context.Context, email, ip string) error
}

// Redis key prefixes. Email keys are lower-cased so case variants of one
// address share a budget.
const (
	emailKeyPrefix = "authflow:register:email:"
	ipKeyPrefix    = "authflow:register:ip:"
)

// RedisLimiter enforces fixed-window register limits with Redis counters, so
// every API instance draws on the same budget.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	max    int64
	window time.Duration
	email  bool
	ip     bool
}

// NewRedis creates a [RedisLimiter] backed by rdb.
func NewRedis(rdb redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		max:    int64(cfg.MaxAttempts),
		window: cfg.Window,
		email:  cfg.EnableEmailThrottle,
		ip:     cfg.EnableIPThrottle,
	}
}

// CheckRegister counts one registration attempt for email and ip and returns
// [ErrRateLimited] once either counter exceeds the budget for the window.
// Redis failures are returned wrapped in [ErrRedisUnavailable].
func (l *RedisLimiter) CheckRegister(ctx context.Context, email, ip string) error {
	var keys []string
	if l.email && email != "" {
		keys = append(keys, emailKeyPrefix+strings.ToLower(email))
	}
	if l.ip && ip != "" {
		keys = append(keys, ipKeyPrefix+ip)
	}
	for _, key := range keys {
		n, err := l.hit(ctx, key)
		if err != nil {
			return err
		}
		if n > l.max {
			return ErrRateLimited
		}
	}
	return nil
}

// hit increments key and starts its window if none is running. INCR and
// EXPIRE NX run in one MULTI so a crash between them cannot leave a counter
// without a TTL.
func (l *RedisLimiter) hit(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}

// Attempts returns the counter for email in the current window. A missing
// key counts as zero.
func (l *RedisLimiter) Attempts(ctx context.Context, email string) (int, error) {
	n, err := l.rdb.Get(ctx, emailKeyPrefix+strings.ToLower(email)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return max(n, 0), nil
}
