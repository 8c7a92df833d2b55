package authflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kurabu/authflow/session"
)

// CompleteRegistration exchanges the authorization code of a pending
// session, persists the new user and marks the session done. It returns the
// redirect passed to VerifyCode, or Session.DefaultRedirect, with the session
// key appended.
//
// A structured provider failure is returned as a *GeneralError carrying the
// provider's message. Any failure leaves the session pending. If the session
// is torn down or changes state while the user is persisted, the change wins
// and [ErrMissingState] or [ErrStateStatus] is returned.
func (e *Engine) CompleteRegistration(ctx context.Context, key, authCode, ourDomain string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if e.exchanger == nil {
		return "", ErrEngineNotReady
	}
	if err := checkSessionKey(key); err != nil {
		return "", err
	}
	if authCode == "" {
		return "", ErrMissingParameter
	}

	pending, err := e.pendingPayload(key)
	if err != nil {
		return "", err
	}

	start := time.Now()
	pair, err := e.exchanger.ExchangeCode(ctx, authCode, pending.Verifier, e.redirectURI(ourDomain))
	e.metricObserve(MetricExchangeLatency, time.Since(start))
	if err != nil {
		e.metricInc(MetricExchangeFailure)
		e.logger.Warn("token exchange failed",
			slog.String("session_key", key),
			slog.Any("error", err),
		)
		var perr *ProviderError
		if errors.As(err, &perr) {
			err = &GeneralError{Message: perr.providerMessage()}
		}
		e.emitAudit(ctx, auditEventExchangeFailure, false, key, err, nil)
		return "", err
	}
	e.metricInc(MetricExchangeSuccess)

	// The session may have expired or been torn down while the exchange ran.
	current, err := e.pendingPayload(key)
	if err != nil {
		return "", err
	}
	if current.Verifier != pending.Verifier {
		return "", ErrStateStatus
	}

	err = e.repo.CreateUser(ctx, CreateUserInput{
		SessionKey:   key,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		return "", err
	}

	// CreateUser ran unlocked; only the pending session it was made for may
	// become done.
	err = e.store.Update(key, func(cur session.Entry) (session.Entry, session.Op, error) {
		p, ok := cur.Payload.(session.Pending)
		if !ok {
			return cur, session.OpKeep, stateStatusError(cur.State(), session.StatePending)
		}
		if p.Verifier != pending.Verifier {
			return cur, session.OpKeep, ErrStateStatus
		}
		return session.Entry{Payload: session.Done{
			Email:        pending.Email,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		}}, session.OpReplace, nil
	})
	if errors.Is(err, session.ErrNotFound) {
		err = ErrMissingState
	}
	if err != nil {
		e.logger.Warn("session moved while persisting user",
			slog.String("session_key", key),
			slog.Any("error", err),
		)
		return "", err
	}

	e.metricInc(MetricRegistrationCompleted)
	e.logger.Info("registration completed", slog.String("session_key", key))
	e.emitAudit(ctx, auditEventRegisterCompleted, true, key, nil, nil)

	if pending.Redirect != "" {
		return pending.Redirect + key, nil
	}
	return e.config.Session.DefaultRedirect + key, nil
}

func (e *Engine) pendingPayload(key string) (session.Pending, error) {
	entry, ok := e.store.Get(key)
	if !ok {
		return session.Pending{}, ErrMissingState
	}
	p, ok := entry.Payload.(session.Pending)
	if !ok {
		return session.Pending{}, stateStatusError(entry.State(), session.StatePending)
	}
	return p, nil
}
