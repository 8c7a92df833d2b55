package authflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig mirrors the environment the API process is deployed with.
type EnvConfig struct {
	ClientID         string        `env:"CLIENT_ID,required,notEmpty"`
	ClientSecret     string        `env:"CLIENT_SECRET"`
	EmailDomain      string        `env:"EMAIL_DOMAIN" envDefault:"kurabu.moe"`
	LocalMode        bool          `env:"LOCALMODE"`
	LocalRedirectURI string        `env:"LOCAL_REDIRECT_URI" envDefault:"http://localhost:15000/authed"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"10m"`
	DefaultRedirect  string        `env:"DEFAULT_REDIRECT" envDefault:"imal://auth/"`
	ChallengeMethod  string        `env:"PKCE_METHOD" envDefault:"plain"`

	RegisterThrottle    bool          `env:"REGISTER_THROTTLE"`
	RegisterIPThrottle  bool          `env:"REGISTER_IP_THROTTLE" envDefault:"true"`
	RegisterMaxAttempts int           `env:"REGISTER_MAX_ATTEMPTS" envDefault:"5"`
	RegisterWindow      time.Duration `env:"REGISTER_WINDOW" envDefault:"1h"`

	SessionTokenSecret string        `env:"SESSION_TOKEN_SECRET"`
	SessionTokenTTL    time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"24h"`

	AuditEnabled bool `env:"AUDIT_ENABLED"`
}

// LoadConfigFromEnv parses the process environment on top of
// DefaultConfig. Setting SESSION_TOKEN_SECRET enables HS256 session tokens.
func LoadConfigFromEnv() (Config, error) {
	var ec EnvConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return ec.Apply(defaultConfig()), nil
}

// Apply overlays ec onto cfg.
func (ec EnvConfig) Apply(cfg Config) Config {
	cfg.Upstream.ClientID = ec.ClientID
	cfg.Upstream.ClientSecret = ec.ClientSecret
	cfg.Upstream.LocalMode = ec.LocalMode
	cfg.Upstream.LocalRedirectURI = ec.LocalRedirectURI
	cfg.Upstream.ChallengeMethod = ec.ChallengeMethod

	if domain := strings.TrimSpace(ec.EmailDomain); domain != "" {
		cfg.Mail.From = "verification@" + domain
	}

	cfg.Session.ExpiryTTL = ec.SessionTTL
	cfg.Session.DefaultRedirect = ec.DefaultRedirect

	cfg.Register.EnableEmailThrottle = ec.RegisterThrottle
	cfg.Register.EnableIPThrottle = ec.RegisterThrottle || ec.RegisterIPThrottle
	cfg.Register.MaxAttempts = ec.RegisterMaxAttempts
	cfg.Register.Window = ec.RegisterWindow

	if ec.SessionTokenSecret != "" {
		cfg.Token.Enabled = true
		cfg.Token.SigningMethod = "hs256"
		cfg.Token.PrivateKey = []byte(ec.SessionTokenSecret)
		cfg.Token.TTL = ec.SessionTokenTTL
		cfg.Token.Issuer = "authflow"
	}

	cfg.Audit.Enabled = ec.AuditEnabled
	return cfg
}
