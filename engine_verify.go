package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kurabu/authflow/internal"
	"github.com/kurabu/authflow/session"
	"golang.org/x/oauth2"
)

// VerifyCode checks the emailed code of a verif session. On a match the
// session becomes pending with a fresh PKCE verifier, and the upstream
// authorization URL is returned. redirect, if non-empty, is the prefix
// CompleteRegistration later returns with the session key appended.
//
// A mismatch counts one attempt and returns [ErrIncorrectCode]; the
// mismatch that reaches Verification.MaxAttempts deletes the session and
// returns [ErrAttemptExceeded].
func (e *Engine) VerifyCode(ctx context.Context, key, code, ourDomain, redirect string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := checkSessionKey(key); err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrMissingParameter
	}

	verifier, err := internal.NewPKCEVerifier(e.config.Verification.PKCEVerifierLength)
	if err != nil {
		return "", err
	}
	submitted := normalizeCode(code)

	var attempts int
	err = e.store.Update(key, func(cur session.Entry) (session.Entry, session.Op, error) {
		p, ok := cur.Payload.(session.Verif)
		if !ok {
			return cur, session.OpKeep, stateStatusError(cur.State(), session.StateVerif)
		}

		if subtle.ConstantTimeCompare([]byte(submitted), []byte(p.Code)) != 1 {
			p.Attempts++
			attempts = p.Attempts
			if p.Attempts >= e.config.Verification.MaxAttempts {
				return cur, session.OpDelete, ErrAttemptExceeded
			}
			return session.Entry{Payload: p}, session.OpReplace, ErrIncorrectCode
		}

		return session.Entry{Payload: session.Pending{
			Email:        p.Email,
			PasswordHash: p.PasswordHash,
			Verifier:     verifier,
			Redirect:     redirect,
		}}, session.OpReplace, nil
	})

	switch {
	case errors.Is(err, session.ErrNotFound):
		return "", ErrMissingState
	case errors.Is(err, ErrIncorrectCode):
		e.metricInc(MetricVerifyIncorrect)
		e.emitAudit(ctx, auditEventVerifyFailure, false, key, err, func() map[string]string {
			return map[string]string{"attempts": strconv.Itoa(attempts)}
		})
		return "", err
	case errors.Is(err, ErrAttemptExceeded):
		e.metricInc(MetricVerifyAttemptsExceeded)
		e.logger.Info("verification attempts exceeded", slog.String("session_key", key))
		e.emitAudit(ctx, auditEventVerifyFailure, false, key, err, nil)
		return "", err
	case err != nil:
		return "", err
	}

	e.arm(key, session.StatePending)
	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerifySuccess, true, key, nil, nil)

	return e.authorizationURL(key, verifier, ourDomain)
}

// Codes are issued upper-case; users often type them in lower case.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (e *Engine) authorizationURL(key, verifier, ourDomain string) (string, error) {
	method := e.config.Upstream.ChallengeMethod
	challenge, err := internal.PKCEChallenge(verifier, method)
	if err != nil {
		return "", err
	}

	oc := oauth2.Config{
		ClientID:    e.config.Upstream.ClientID,
		Endpoint:    oauth2.Endpoint{AuthURL: e.config.Upstream.AuthorizeURL},
		RedirectURL: e.redirectURI(ourDomain),
	}
	return oc.AuthCodeURL(key,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", method),
	), nil
}
