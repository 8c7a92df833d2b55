package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kurabu/authflow/session"
)

var errEmptyUserID = errors.New("user repository returned an empty id")

// CheckState returns the state of the session under key. A key unknown to
// the store is looked up through UserRepository.TokensFromKey; a hit is
// loaded as a done session (without expiry) under the id the repository
// returns, and the repository's error is returned unchanged on a miss.
func (e *Engine) CheckState(ctx context.Context, key string) (session.State, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := checkSessionKey(key); err != nil {
		return "", err
	}

	if entry, ok := e.store.Get(key); ok {
		return entry.State(), nil
	}

	u, err := e.repo.TokensFromKey(ctx, key)
	if err != nil {
		return "", err
	}
	id := u.ID
	if id == "" {
		id = key
	}

	// A concurrent load or login may have stored the entry already; keep it.
	if e.store.Insert(id, session.Done{
		Email:        u.Email,
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
	}) {
		e.metricInc(MetricStateLoaded)
		e.emitAudit(ctx, auditEventStateLoaded, true, id, nil, nil)
	}
	return session.StateDone, nil
}

// Tokens returns the upstream tokens of a done session, loading it from the
// repository first when it is not in memory.
func (e *Engine) Tokens(ctx context.Context, key string) (TokenPair, error) {
	st, err := e.CheckState(ctx, key)
	if err != nil {
		return TokenPair{}, err
	}
	if st != session.StateDone {
		return TokenPair{}, stateStatusError(st, session.StateDone)
	}

	entry, ok := e.store.Get(key)
	if !ok {
		return TokenPair{}, ErrMissingState
	}
	done, ok := entry.Payload.(session.Done)
	if !ok {
		return TokenPair{}, stateStatusError(entry.State(), session.StateDone)
	}
	return TokenPair{AccessToken: done.AccessToken, RefreshToken: done.RefreshToken}, nil
}

// RefreshTokensIfChanged stores a token pair the caller obtained from the
// provider. Nothing is written, in memory or through the repository, when
// both tokens equal the stored ones.
func (e *Engine) RefreshTokensIfChanged(ctx context.Context, key, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrMissingParameter
	}

	cur, err := e.Tokens(ctx, key)
	if err != nil {
		return err
	}
	if cur.AccessToken == accessToken && cur.RefreshToken == refreshToken {
		return nil
	}

	err = e.store.Update(key, func(entry session.Entry) (session.Entry, session.Op, error) {
		done, ok := entry.Payload.(session.Done)
		if !ok {
			return entry, session.OpKeep, stateStatusError(entry.State(), session.StateDone)
		}
		done.AccessToken = accessToken
		done.RefreshToken = refreshToken
		return session.Entry{Payload: done}, session.OpReplace, nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return ErrMissingState
	}
	if err != nil {
		return err
	}

	if err := e.repo.UpdateTokens(ctx, key, accessToken, refreshToken); err != nil {
		return err
	}

	e.metricInc(MetricTokensRefreshed)
	e.emitAudit(ctx, auditEventTokensRefreshed, true, key, nil, nil)
	return nil
}

// Login verifies the credentials through UserRepository.LoginLookup and
// stores a done session under the returned id, which is also returned.
// Credential errors come from the repository unchanged.
func (e *Engine) Login(ctx context.Context, email, pass string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if email == "" || pass == "" {
		return "", ErrMissingParameter
	}

	u, err := e.repo.LoginLookup(ctx, email, pass)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", err, nil)
		return "", err
	}
	if u.ID == "" {
		return "", fmt.Errorf("login: %w", errEmptyUserID)
	}

	e.store.Set(u.ID, session.Done{
		Email:        u.Email,
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
	})

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, u.ID, nil, nil)
	return u.ID, nil
}

// SetErrored forces the session under key into errored, whatever its
// current state, and arms an errored expiry. Callers use it when a later
// step failed after the session was created.
func (e *Engine) SetErrored(ctx context.Context, key string) error {
	if err := e.force(key, session.Errored{}); err != nil {
		return err
	}
	e.metricInc(MetricSessionErrored)
	e.logger.Debug("session errored", slog.String("session_key", key))
	e.emitAudit(ctx, auditEventSessionErrored, true, key, nil, nil)
	return nil
}

// SetCanceled forces the session under key into canceled and arms a
// canceled expiry. Unlike CancelRegister it does not require verif.
func (e *Engine) SetCanceled(ctx context.Context, key string) error {
	if err := e.force(key, session.Canceled{}); err != nil {
		return err
	}
	e.metricInc(MetricRegisterCanceled)
	e.emitAudit(ctx, auditEventRegisterCanceled, true, key, nil, nil)
	return nil
}

func (e *Engine) force(key string, p session.Payload) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := checkSessionKey(key); err != nil {
		return err
	}
	e.store.Set(key, p)
	e.arm(key, p.State())
	return nil
}

// Destroy removes the session under key immediately. The HTTP layer calls
// it when a request carries a malformed verification code or callback.
func (e *Engine) Destroy(ctx context.Context, key string) {
	if e == nil || e.store == nil || key == "" {
		return
	}
	if !e.store.Has(key) {
		return
	}
	e.store.Delete(key)
	e.emitAudit(ctx, auditEventSessionDestroyed, true, key, nil, nil)
}
