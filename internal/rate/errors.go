package rate

import "errors"

// ErrRateLimited means the register budget for an email or IP is spent for
// the current window.
var ErrRateLimited = errors.New("rate: register budget exhausted")

// ErrRedisUnavailable wraps every Redis failure from [RedisLimiter]. The
// engine fails closed on it.
var ErrRedisUnavailable = errors.New("rate: redis unavailable")
