package authflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/kurabu/authflow/internal/rate"
	"github.com/kurabu/authflow/jwt"
	"github.com/kurabu/authflow/password"
	"github.com/kurabu/authflow/session"
)

// Engine drives registration sessions through verif, pending and done, and
// materializes done sessions for returning users. Build one with [New].
//
// Every operation reads and writes the session store in short critical
// sections. Repository, mailer and provider calls happen between them with
// no lock held, so a concurrent transition in that gap surfaces as
// [ErrMissingState] or [ErrStateStatus] instead of a lost update.
type Engine struct {
	config     Config
	store      *session.Store
	limiter    rate.Limiter
	audit      *auditDispatcher
	metrics    *Metrics
	hasher     *password.Argon2
	policy     password.Policy
	jwtManager *jwt.Manager
	repo       UserRepository
	mailer     Mailer
	exchanger  TokenExchanger
	logger     *slog.Logger
}

// Close flushes pending audit events. The session store needs no teardown;
// armed expiry timers become no-ops once the process stops serving.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded because the
// dispatcher queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SessionCount returns the number of sessions currently held in memory.
func (e *Engine) SessionCount() int {
	if e == nil || e.store == nil {
		return 0
	}
	return e.store.Len()
}

// DebugSessions lists every in-memory session, ordered by key. Codes,
// verifiers, password hashes and tokens are never included.
func (e *Engine) DebugSessions() []SessionInfo {
	if e == nil || e.store == nil {
		return nil
	}
	snap := e.store.Snapshot()
	out := make([]SessionInfo, 0, len(snap))
	for _, s := range snap {
		out = append(out, SessionInfo{
			Key:      s.Key,
			State:    s.State.String(),
			Email:    s.Email,
			Attempts: s.Attempts,
		})
	}
	return out
}

// LogSessions writes the DebugSessions listing to the engine logger.
func (e *Engine) LogSessions(ctx context.Context) {
	if e == nil || e.logger == nil {
		return
	}
	for _, s := range e.DebugSessions() {
		e.logger.LogAttrs(ctx, slog.LevelInfo, "session",
			slog.String("session_key", s.Key),
			slog.String("state", s.State),
			slog.String("email", s.Email),
			slog.Int("attempts", s.Attempts),
		)
	}
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.repo == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// arm schedules the expiry for a session that just entered state.
func (e *Engine) arm(key string, state session.State) {
	if state.Terminal() {
		return
	}
	e.store.ScheduleExpiry(key, state, e.config.Session.ExpiryTTL)
}

func (e *Engine) onExpire(entry session.Entry) {
	e.metricInc(MetricSessionExpired)
	e.logger.Debug("session expired",
		slog.String("session_key", entry.Key),
		slog.String("state", entry.State().String()),
	)
	e.emitAudit(context.Background(), auditEventSessionExpired, true, entry.Key, nil, func() map[string]string {
		return map[string]string{"state": entry.State().String()}
	})
}

// redirectURI is the OAuth2 redirect_uri for a caller on ourDomain.
func (e *Engine) redirectURI(ourDomain string) string {
	if e.config.Upstream.LocalMode {
		return e.config.Upstream.LocalRedirectURI
	}
	return ourDomain + e.config.Upstream.CallbackPath
}
