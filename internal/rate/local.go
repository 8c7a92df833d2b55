package rate

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localPruneThreshold = 4096

type localEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LocalLimiter is an in-process token bucket throttle for single-instance
// deployments that run without Redis. Each email and IP gets a bucket of
// MaxAttempts tokens refilled over Window.
type LocalLimiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*localEntry
}

// NewLocal creates a [LocalLimiter].
func NewLocal(cfg Config) *LocalLimiter {
	return &LocalLimiter{
		config:  cfg,
		now:     time.Now,
		buckets: make(map[string]*localEntry),
	}
}

// CheckRegister consumes one token from the email bucket and the IP bucket.
func (l *LocalLimiter) CheckRegister(_ context.Context, email, ip string) error {
	if l.config.EnableEmailThrottle && email != "" {
		if !l.allow("e:" + strings.ToLower(email)) {
			return ErrRateLimited
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if !l.allow("i:" + ip) {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *LocalLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.buckets) >= localPruneThreshold {
		l.pruneLocked(now)
	}

	e, ok := l.buckets[key]
	if !ok {
		every := l.config.Window / time.Duration(max(l.config.MaxAttempts, 1))
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(every), max(l.config.MaxAttempts, 1))}
		l.buckets[key] = e
	}
	e.lastAccess = now
	return e.limiter.AllowN(now, 1)
}

// Buckets with no activity for a full window are back at full capacity, so
// dropping them is indistinguishable from keeping them.
func (l *LocalLimiter) pruneLocked(now time.Time) {
	for k, e := range l.buckets {
		if now.Sub(e.lastAccess) > l.config.Window {
			delete(l.buckets, k)
		}
	}
}
