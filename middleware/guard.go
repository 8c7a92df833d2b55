package middleware

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/kurabu/authflow"
	"github.com/kurabu/authflow/session"
)

type sessionKeyContextKey struct{}

// SessionKeyFromContext returns the key stored by [Guard] or
// [RequireSessionToken].
func SessionKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(sessionKeyContextKey{}).(string)
	return key, ok
}

// Guard resolves the session key from a bearer session token when one is
// sent, else from the "state" parameter, and rejects the request unless the
// session is in one of states. An empty states list accepts any state.
func Guard(engine *authflow.Engine, states ...session.State) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}

			var (
				key string
				err error
			)
			if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
				key, err = engine.SessionKeyFromToken(token)
			} else {
				key, err = RequestState(r)
			}
			if err != nil {
				WriteError(w, err)
				return
			}

			st, err := engine.CheckState(r.Context(), key)
			if err != nil {
				WriteError(w, err)
				return
			}
			if len(states) > 0 && !slices.Contains(states, st) {
				WriteError(w, authflow.ErrStateStatus)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKeyContextKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP stores the request's remote host with [authflow.WithClientIP].
// Proxy headers are not trusted.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(authflow.WithClientIP(r.Context(), host)))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
