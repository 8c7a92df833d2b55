package authflow

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/kurabu/authflow/internal"
)

// Config holds every tunable of the Engine. It is copied at Build time and
// treated as immutable afterwards.
type Config struct {
	Session      SessionConfig
	Verification VerificationConfig
	Upstream     UpstreamConfig
	Mail         MailConfig
	Password     PasswordConfig
	Register     RegisterConfig
	Token        TokenConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetimes and the final redirect.
type SessionConfig struct {
	// ExpiryTTL is how long a verif, pending, errored or canceled session
	// survives without advancing.
	ExpiryTTL time.Duration
	// DefaultRedirect is the deep-link prefix used when the caller supplied
	// no redirect at verification time. The session key is appended.
	DefaultRedirect string
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig controls the emailed code and the PKCE verifier.
type VerificationConfig struct {
	// MaxAttempts is the failure count at which a session is deleted.
	MaxAttempts        int
	PKCEVerifierLength int
}

/*
====================================
UPSTREAM CONFIG
====================================
*/

// UpstreamConfig describes the OAuth2 provider the registration hands off to.
type UpstreamConfig struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	// CallbackPath is appended to the caller's domain to form redirect_uri.
	CallbackPath string
	// LocalMode pins redirect_uri to LocalRedirectURI for development.
	LocalMode        bool
	LocalRedirectURI string
	// ChallengeMethod is "plain" (the only method MyAnimeList accepts) or "S256".
	ChallengeMethod string
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig shapes the verification email.
type MailConfig struct {
	From    string
	Subject string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the composition policy and argon2id cost parameters.
type PasswordConfig struct {
	MinLength   int
	MaxLength   int
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
REGISTER THROTTLE CONFIG
====================================
*/

// RegisterConfig throttles StartRegister per email and per client IP. Every
// StartRegister pays one Argon2id hash before any session exists, so the
// per-IP throttle is on by default; the per-email one is off. The IP comes
// from [WithClientIP]; calls without one are not counted.
type RegisterConfig struct {
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	MaxAttempts         int
	Window              time.Duration
}

func (c RegisterConfig) enabled() bool {
	return c.EnableEmailThrottle || c.EnableIPThrottle
}

/*
====================================
SESSION TOKEN CONFIG
====================================
*/

// TokenConfig enables signed session tokens for done sessions.
type TokenConfig struct {
	Enabled       bool
	TTL           time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			ExpiryTTL:       10 * time.Minute,
			DefaultRedirect: "imal://auth/",
		},
		Verification: VerificationConfig{
			MaxAttempts:        5,
			PKCEVerifierLength: 128,
		},
		Upstream: UpstreamConfig{
			AuthorizeURL:     "https://myanimelist.net/v1/oauth2/authorize",
			TokenURL:         "https://myanimelist.net/v1/oauth2/token",
			CallbackPath:     "/authed",
			LocalRedirectURI: "http://localhost:15000/authed",
			ChallengeMethod:  internal.PKCEMethodPlain,
		},
		Mail: MailConfig{
			From:    "verification@kurabu.moe",
			Subject: "Verification imal",
		},
		Password: PasswordConfig{
			MinLength:   8,
			MaxLength:   30,
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Register: RegisterConfig{
			EnableIPThrottle: true,
			MaxAttempts:      5,
			Window:           time.Hour,
		},
		Token: TokenConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "ed25519",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// Session
	if c.Session.ExpiryTTL <= 0 {
		return errors.New("Session ExpiryTTL must be > 0")
	}
	if c.Session.DefaultRedirect == "" {
		return errors.New("Session DefaultRedirect must be set")
	}

	// Verification
	if c.Verification.MaxAttempts <= 0 {
		return errors.New("Verification MaxAttempts must be > 0")
	}
	if c.Verification.PKCEVerifierLength < internal.PKCEVerifierMinLength ||
		c.Verification.PKCEVerifierLength > internal.PKCEVerifierMaxLength {
		return errors.New("Verification PKCEVerifierLength must be between 43 and 128")
	}

	// Upstream
	if strings.TrimSpace(c.Upstream.ClientID) == "" {
		return errors.New("Upstream ClientID must be set")
	}
	if u, err := url.Parse(c.Upstream.AuthorizeURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Upstream AuthorizeURL must be an absolute URL")
	}
	if !strings.HasPrefix(c.Upstream.CallbackPath, "/") {
		return errors.New("Upstream CallbackPath must start with '/'")
	}
	if c.Upstream.LocalMode && c.Upstream.LocalRedirectURI == "" {
		return errors.New("Upstream LocalRedirectURI must be set in LocalMode")
	}
	if m := c.Upstream.ChallengeMethod; m != internal.PKCEMethodPlain && m != internal.PKCEMethodS256 {
		return errors.New("Upstream ChallengeMethod must be 'plain' or 'S256'")
	}

	// Mail
	if !emailPattern.MatchString(c.Mail.From) {
		return errors.New("Mail From must be a valid address")
	}

	// Password
	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MinLength/MaxLength are inconsistent")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Register
	if c.Register.enabled() {
		if c.Register.MaxAttempts <= 0 {
			return errors.New("Register MaxAttempts must be > 0")
		}
		if c.Register.Window <= 0 {
			return errors.New("Register Window must be > 0")
		}
	}

	// Token
	if c.Token.Enabled {
		if c.Token.TTL <= 0 {
			return errors.New("Token TTL must be > 0")
		}
		switch c.Token.SigningMethod {
		case "ed25519":
			if len(c.Token.PrivateKey) == 0 || len(c.Token.PublicKey) == 0 {
				return errors.New("ed25519 requires PrivateKey and PublicKey")
			}
		case "hs256":
			if len(c.Token.PrivateKey) == 0 {
				return errors.New("hs256 requires PrivateKey")
			}
		default:
			return errors.New("unsupported Token signing method")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
