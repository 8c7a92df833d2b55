package authflow

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/kurabu/authflow/internal"
	"github.com/kurabu/authflow/internal/rate"
	"github.com/kurabu/authflow/password"
	"github.com/kurabu/authflow/session"
)

// StartRegister validates the credentials, mails a verification code and
// opens a verif session. It returns the new session key.
//
// No session is created when validation, the register throttle or the
// email lookup fails. A failed mail delivery is logged and does not fail
// the registration.
func (e *Engine) StartRegister(ctx context.Context, email, pass string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	if err := e.validateRegistration(email, pass); err != nil {
		e.metricInc(MetricRegisterRejected)
		e.emitAudit(ctx, auditEventRegisterRejected, false, "", err, nil)
		return "", err
	}

	if err := e.checkRegisterThrottle(ctx, email); err != nil {
		e.emitAudit(ctx, auditEventRegisterRateLimited, false, "", err, nil)
		return "", err
	}

	used, err := e.repo.EmailExists(ctx, email)
	if err != nil {
		return "", err
	}
	if used {
		e.metricInc(MetricRegisterMailUsed)
		e.emitAudit(ctx, auditEventRegisterRejected, false, "", ErrMailUsed, nil)
		return "", ErrMailUsed
	}

	key := internal.NewSessionKey()
	code, err := internal.NewVerificationCode()
	if err != nil {
		return "", err
	}
	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return "", err
	}

	e.store.Set(key, session.Verif{
		Email:        email,
		PasswordHash: hash,
		Code:         code,
	})
	e.arm(key, session.StateVerif)

	e.sendVerification(ctx, key, email, code)

	e.metricInc(MetricRegisterStarted)
	e.logger.Debug("registration started", slog.String("session_key", key))
	e.emitAudit(ctx, auditEventRegisterStarted, true, key, nil, nil)

	return key, nil
}

func (e *Engine) validateRegistration(email, pass string) error {
	if email == "" || pass == "" {
		return ErrMissingParameter
	}
	if !ValidEmail(email) {
		return ErrMalformedParameter
	}
	if err := e.policy.Check(pass); err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return ErrPasswordStrength
		}
		return err
	}
	return nil
}

func (e *Engine) checkRegisterThrottle(ctx context.Context, email string) error {
	if e.limiter == nil {
		return nil
	}
	err := e.limiter.CheckRegister(ctx, strings.ToLower(email), ClientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricRegisterRateLimited)
		return ErrRegisterRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrRegisterUnavailable, err)
	}
}

func (e *Engine) sendVerification(ctx context.Context, key, email, code string) {
	if e.mailer == nil {
		return
	}
	body := "<b>Your verification code is " + html.EscapeString(code) + "</b>"
	if err := e.mailer.SendHTML(ctx, email, e.config.Mail.Subject, body, e.config.Mail.From); err != nil {
		e.metricInc(MetricMailFailure)
		e.logger.Warn("verification mail failed",
			slog.String("session_key", key),
			slog.Any("error", err),
		)
	}
}

// CancelRegister moves a verif session to canceled. The canceled session
// expires after the session TTL.
func (e *Engine) CancelRegister(ctx context.Context, key string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := checkSessionKey(key); err != nil {
		return err
	}

	err := e.store.Update(key, func(cur session.Entry) (session.Entry, session.Op, error) {
		if st := cur.State(); st != session.StateVerif {
			return cur, session.OpKeep, stateStatusError(st, session.StateVerif)
		}
		return session.Entry{Payload: session.Canceled{}}, session.OpReplace, nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return ErrMissingState
	}
	if err != nil {
		return err
	}
	e.arm(key, session.StateCanceled)

	e.metricInc(MetricRegisterCanceled)
	e.emitAudit(ctx, auditEventRegisterCanceled, true, key, nil, nil)
	return nil
}
