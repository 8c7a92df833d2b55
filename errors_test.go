package authflow

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrMissingParameter, "MissingParameter"},
		{fmt.Errorf("wrapped: %w", ErrMalformedParameter), "MalformedParameter"},
		{ErrPasswordStrength, "PasswordStrength"},
		{ErrMailUsed, "MailUsed"},
		{ErrMissingState, "MissingState"},
		{stateStatusError("done", "pending"), "StateStatus"},
		{ErrAttemptExceeded, "AttemptExceeded"},
		{ErrIncorrectCode, "IncorrectCode"},
		{&GeneralError{Message: "invalid_grant"}, "General"},
		{fmt.Errorf("lookup: %w", ErrAuth), "AuthError"},
		{errors.New("boom"), "Unknown"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestGeneralErrorMessage(t *testing.T) {
	err := error(&GeneralError{Message: "code expired"})
	if err.Error() != "general error: code expired" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrGeneral) {
		t.Fatal("expected GeneralError to match ErrGeneral")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	cases := []struct {
		err  *ProviderError
		want string
	}{
		{&ProviderError{Message: "m", Code: "c"}, "m"},
		{&ProviderError{Code: "c"}, "c"},
		{&ProviderError{StatusCode: 500}, ""},
	}
	for _, tc := range cases {
		if got := tc.err.providerMessage(); got != tc.want {
			t.Fatalf("providerMessage() = %q, want %q", got, tc.want)
		}
	}
}
