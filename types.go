package authflow

import "context"

// TokenPair is the upstream provider's access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserTokens is a persisted user as returned by login and key lookups.
// ID is the session key the user's done session is stored under.
type UserTokens struct {
	ID           string
	Email        string
	AccessToken  string
	RefreshToken string
}

// CreateUserInput is what CompleteRegistration persists.
type CreateUserInput struct {
	SessionKey   string
	Email        string
	PasswordHash string
	AccessToken  string
	RefreshToken string
}

// UserRepository is the persistence collaborator. Errors are propagated to
// the caller unchanged.
type UserRepository interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, in CreateUserInput) error
	UpdateTokens(ctx context.Context, sessionKey, accessToken, refreshToken string) error
	// LoginLookup verifies credentials and fails with ErrAuth on mismatch.
	LoginLookup(ctx context.Context, email, password string) (UserTokens, error)
	// TokensFromKey loads a completed session. It must fail when none exists.
	TokensFromKey(ctx context.Context, sessionKey string) (UserTokens, error)
}

// Mailer delivers the verification email.
type Mailer interface {
	SendHTML(ctx context.Context, to, subject, htmlBody, from string) error
}

// TokenExchanger trades an authorization code and PKCE verifier for tokens.
// Structured provider failures should be returned as *ProviderError.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (TokenPair, error)
}

// SessionInfo is a secret-free view of one stored session.
type SessionInfo struct {
	Key      string `json:"key"`
	State    string `json:"state"`
	Email    string `json:"email"`
	Attempts int    `json:"attempts"`
}
