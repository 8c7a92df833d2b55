package authflow

import (
	"context"
	"fmt"

	"github.com/kurabu/authflow/session"
)

// IssueSessionToken signs a session token for the done session under key.
// Mobile clients present it as a bearer token instead of the raw key.
func (e *Engine) IssueSessionToken(ctx context.Context, key string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if e.jwtManager == nil {
		return "", ErrSessionTokensDisabled
	}

	st, err := e.CheckState(ctx, key)
	if err != nil {
		return "", err
	}
	if st != session.StateDone {
		return "", stateStatusError(st, session.StateDone)
	}

	token, err := e.jwtManager.CreateSessionToken(key)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricSessionTokenIssued)
	return token, nil
}

// SessionKeyFromToken verifies a token from IssueSessionToken and returns
// the session key it carries. It does not check that the session exists.
func (e *Engine) SessionKeyFromToken(token string) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrSessionTokensDisabled
	}
	if token == "" {
		return "", ErrMissingParameter
	}

	claims, err := e.jwtManager.ParseSessionToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionTokenInvalid, err)
	}
	if err := checkSessionKey(claims.SID); err != nil {
		return "", ErrSessionTokenInvalid
	}
	return claims.SID, nil
}
