package authflow

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterStarted     = "register_started"
	auditEventRegisterRejected    = "register_rejected"
	auditEventRegisterRateLimited = "register_rate_limited"
	auditEventRegisterCanceled    = "register_canceled"
	auditEventVerifySuccess       = "verify_success"
	auditEventVerifyFailure       = "verify_failure"
	auditEventExchangeFailure     = "exchange_failure"
	auditEventRegisterCompleted   = "register_completed"
	auditEventStateLoaded         = "state_loaded"
	auditEventTokensRefreshed     = "tokens_refreshed"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventSessionErrored      = "session_errored"
	auditEventSessionExpired      = "session_expired"
	auditEventSessionDestroyed    = "session_destroyed"
)

// AuditErrorCode is the coarse error classification recorded in audit events.
type AuditErrorCode string

const (
	auditErrMissingParameter   AuditErrorCode = "missing_parameter"
	auditErrMalformedParameter AuditErrorCode = "malformed_parameter"
	auditErrPasswordStrength   AuditErrorCode = "password_strength"
	auditErrMailUsed           AuditErrorCode = "mail_used"
	auditErrMissingState       AuditErrorCode = "missing_state"
	auditErrStateStatus        AuditErrorCode = "state_status"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrIncorrectCode      AuditErrorCode = "incorrect_code"
	auditErrProvider           AuditErrorCode = "provider_error"
	auditErrAuth               AuditErrorCode = "auth_error"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	sessionKey string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		SessionKey: sessionKey,
		IP:         ClientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var perr *ProviderError
	switch {
	case errors.Is(err, ErrMissingParameter):
		return auditErrMissingParameter
	case errors.Is(err, ErrMalformedParameter),
		errors.Is(err, ErrSessionTokenInvalid):
		return auditErrMalformedParameter
	case errors.Is(err, ErrPasswordStrength):
		return auditErrPasswordStrength
	case errors.Is(err, ErrMailUsed):
		return auditErrMailUsed
	case errors.Is(err, ErrMissingState):
		return auditErrMissingState
	case errors.Is(err, ErrStateStatus):
		return auditErrStateStatus
	case errors.Is(err, ErrAttemptExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrIncorrectCode):
		return auditErrIncorrectCode
	case errors.Is(err, ErrGeneral), errors.As(err, &perr):
		return auditErrProvider
	case errors.Is(err, ErrAuth):
		return auditErrAuth
	case errors.Is(err, ErrRegisterRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRegisterUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
