package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm used to sign session tokens.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config configures a [Manager]. For Ed25519 a Manager built with only a
// PublicKey can parse tokens but not issue them.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

var (
	errEmptySessionKey = errors.New("jwt: empty session key")
	errCannotSign      = errors.New("jwt: no signing key configured")
)

// Manager issues and parses session tokens. A session token lets a mobile
// client carry its session key in an Authorization header instead of a
// query parameter.
type Manager struct {
	ttl      time.Duration
	issuer   string
	audience string

	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	parser    *jwt.Parser
}

// SessionClaims are the claims of a session token. SID is the session key.
type SessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager resolves the keys in cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("jwt: TTL must be > 0")
	}

	m := &Manager{ttl: cfg.TTL, issuer: cfg.Issuer, audience: cfg.Audience}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("jwt: hs256 requires a secret")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("jwt: ed25519 requires a public key")
		}
		pub, err := edPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.method = jwt.SigningMethodEdDSA
		m.verifyKey = pub
		if len(cfg.PrivateKey) > 0 {
			priv, err := edPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
		}
	default:
		return nil, fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	m.parser = jwt.NewParser(opts...)

	return m, nil
}

// CreateSessionToken signs a token whose sid claim is sessionKey.
func (m *Manager) CreateSessionToken(sessionKey string) (string, error) {
	if sessionKey == "" {
		return "", errEmptySessionKey
	}
	if m.signKey == nil {
		return "", errCannotSign
	}

	now := time.Now()
	claims := SessionClaims{
		SID: sessionKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}

// ParseSessionToken verifies token and returns its claims. Tokens without
// a sid claim are rejected.
func (m *Manager) ParseSessionToken(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.SID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Keys are accepted either raw or PEM encoded.

func edPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(raw), nil
	}
	key, err := jwt.ParseEdPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("jwt: ed25519 private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: private key is not ed25519")
	}
	return priv, nil
}

func edPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("jwt: ed25519 public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: public key is not ed25519")
	}
	return pub, nil
}
