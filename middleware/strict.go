package middleware

import (
	"net/http"

	"github.com/kurabu/authflow"
)

// RequestState returns the session key carried in the "state" query or form
// parameter. A missing value is ErrMissingParameter and a value that is not a
// session key is ErrMalformedParameter.
func RequestState(r *http.Request) (string, error) {
	key := r.URL.Query().Get("state")
	if key == "" {
		key = r.PostFormValue("state")
	}
	if key == "" {
		return "", authflow.ErrMissingParameter
	}
	if !authflow.ValidSessionKey(key) {
		return "", authflow.ErrMalformedParameter
	}
	return key, nil
}
