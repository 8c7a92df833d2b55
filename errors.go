package authflow

import (
	"errors"
	"fmt"

	"github.com/kurabu/authflow/session"
)

var (
	// ErrMissingParameter is returned when a required input is empty.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrMalformedParameter is returned when an input fails a format check.
	ErrMalformedParameter = errors.New("malformed parameter")
	// ErrPasswordStrength is returned when a password fails the composition policy.
	ErrPasswordStrength = errors.New("password too weak")
	// ErrMailUsed is returned when the email is already registered.
	ErrMailUsed = errors.New("mail already used")
	// ErrMissingState is returned when no session exists for the key.
	ErrMissingState = errors.New("missing state")
	// ErrStateStatus is returned when the session is in the wrong state for
	// the requested operation.
	ErrStateStatus = errors.New("invalid state status")
	// ErrAttemptExceeded is returned on the verification failure that
	// exhausts the retry budget. The session is deleted.
	ErrAttemptExceeded = errors.New("verification attempts exceeded")
	// ErrIncorrectCode is returned on a verification code mismatch while
	// retries remain.
	ErrIncorrectCode = errors.New("incorrect verification code")
	// ErrGeneral matches every *GeneralError.
	ErrGeneral = errors.New("general error")
	// ErrAuth is the credential mismatch error. UserRepository.LoginLookup
	// implementations should return it (or wrap it) on bad credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrRegisterRateLimited is returned when the register throttle denies a request.
	ErrRegisterRateLimited = errors.New("register rate limited")
	// ErrRegisterUnavailable is returned when the register throttle backend fails.
	ErrRegisterUnavailable = errors.New("register throttle unavailable")
	// ErrSessionTokenInvalid is returned for unparsable or expired session tokens.
	ErrSessionTokenInvalid = errors.New("session token invalid")
	// ErrSessionTokensDisabled is returned by IssueSessionToken when
	// Config.Token.Enabled is false.
	ErrSessionTokensDisabled = errors.New("session tokens disabled")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// GeneralError carries a failure message reported by the upstream provider.
type GeneralError struct {
	Message string
}

func (e *GeneralError) Error() string {
	if e.Message == "" {
		return ErrGeneral.Error()
	}
	return fmt.Sprintf("%s: %s", ErrGeneral.Error(), e.Message)
}

// Is makes errors.Is(err, ErrGeneral) hold for every GeneralError.
func (e *GeneralError) Is(target error) bool {
	return target == ErrGeneral
}

// ProviderError is returned by a TokenExchanger when the provider answered
// with a structured failure body.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	switch {
	case e.Message != "":
		return "provider error: " + e.Message
	case e.Code != "":
		return "provider error: " + e.Code
	default:
		return fmt.Sprintf("provider error: status %d", e.StatusCode)
	}
}

// providerMessage is what CompleteRegistration passes through to the caller.
func (e *ProviderError) providerMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrMissingParameter, "MissingParameter"},
	{ErrMalformedParameter, "MalformedParameter"},
	{ErrPasswordStrength, "PasswordStrength"},
	{ErrMailUsed, "MailUsed"},
	{ErrMissingState, "MissingState"},
	{ErrStateStatus, "StateStatus"},
	{ErrAttemptExceeded, "AttemptExceeded"},
	{ErrIncorrectCode, "IncorrectCode"},
	{ErrGeneral, "General"},
	{ErrAuth, "AuthError"},
	{ErrRegisterRateLimited, "RateLimited"},
	{ErrSessionTokenInvalid, "MalformedParameter"},
}

// Kind names the error kind of err for HTTP status mapping. Unclassified
// errors report "Unknown"; nil reports "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Unknown"
}

// stateStatusError annotates ErrStateStatus with the state that was found.
func stateStatusError(got session.State, want session.State) error {
	return fmt.Errorf("%w: got %s, want %s", ErrStateStatus, got, want)
}
