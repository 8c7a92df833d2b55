package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/kurabu/authflow"
)

// RequireSessionToken accepts only bearer session tokens and stores the
// embedded key without consulting the session store. Use [Guard] when the
// session state matters.
func RequireSessionToken(engine *authflow.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			key, err := engine.SessionKeyFromToken(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKeyContextKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Status maps an engine error onto an HTTP status code.
func Status(err error) int {
	var perr *authflow.ProviderError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authflow.ErrMissingParameter),
		errors.Is(err, authflow.ErrMalformedParameter),
		errors.Is(err, authflow.ErrPasswordStrength),
		errors.Is(err, authflow.ErrIncorrectCode):
		return http.StatusBadRequest
	case errors.Is(err, authflow.ErrAuth),
		errors.Is(err, authflow.ErrSessionTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, authflow.ErrSessionTokensDisabled):
		return http.StatusNotFound
	case errors.Is(err, authflow.ErrMissingState):
		return http.StatusNotFound
	case errors.Is(err, authflow.ErrMailUsed),
		errors.Is(err, authflow.ErrStateStatus):
		return http.StatusConflict
	case errors.Is(err, authflow.ErrAttemptExceeded),
		errors.Is(err, authflow.ErrRegisterRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, authflow.ErrGeneral), errors.As(err, &perr):
		return http.StatusBadGateway
	case errors.Is(err, authflow.ErrRegisterUnavailable),
		errors.Is(err, authflow.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes a JSON body {"error": kind} with the status from [Status].
// Unknown errors are reported without their message.
func WriteError(w http.ResponseWriter, err error) {
	kind := authflow.Kind(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(err))
	_, _ = w.Write([]byte(`{"error":"` + kind + `"}`))
}
