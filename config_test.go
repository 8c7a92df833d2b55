package authflow

import (
	"context"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test defaults valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name:      "missing client id",
			mutate:    func(c *Config) { c.Upstream.ClientID = " " },
			wantValid: false,
		},
		{
			name:      "zero ttl",
			mutate:    func(c *Config) { c.Session.ExpiryTTL = 0 },
			wantValid: false,
		},
		{
			name:      "empty default redirect",
			mutate:    func(c *Config) { c.Session.DefaultRedirect = "" },
			wantValid: false,
		},
		{
			name:      "zero attempts",
			mutate:    func(c *Config) { c.Verification.MaxAttempts = 0 },
			wantValid: false,
		},
		{
			name:      "verifier too short",
			mutate:    func(c *Config) { c.Verification.PKCEVerifierLength = 42 },
			wantValid: false,
		},
		{
			name:      "verifier too long",
			mutate:    func(c *Config) { c.Verification.PKCEVerifierLength = 129 },
			wantValid: false,
		},
		{
			name:      "relative authorize url",
			mutate:    func(c *Config) { c.Upstream.AuthorizeURL = "/v1/oauth2/authorize" },
			wantValid: false,
		},
		{
			name:      "callback without slash",
			mutate:    func(c *Config) { c.Upstream.CallbackPath = "authed" },
			wantValid: false,
		},
		{
			name:      "unknown challenge method",
			mutate:    func(c *Config) { c.Upstream.ChallengeMethod = "S512" },
			wantValid: false,
		},
		{
			name:      "s256 challenge method",
			mutate:    func(c *Config) { c.Upstream.ChallengeMethod = "S256" },
			wantValid: true,
		},
		{
			name:      "bad mail from",
			mutate:    func(c *Config) { c.Mail.From = "verification" },
			wantValid: false,
		},
		{
			name:      "password min below eight",
			mutate:    func(c *Config) { c.Password.MinLength = 6 },
			wantValid: false,
		},
		{
			name: "throttle without window",
			mutate: func(c *Config) {
				c.Register.EnableIPThrottle = true
				c.Register.Window = 0
			},
			wantValid: false,
		},
		{
			name: "hs256 tokens",
			mutate: func(c *Config) {
				c.Token.Enabled = true
				c.Token.SigningMethod = "hs256"
				c.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
			},
			wantValid: true,
		},
		{
			name: "ed25519 tokens without keys",
			mutate: func(c *Config) {
				c.Token.Enabled = true
			},
			wantValid: false,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigNeedsClientID(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected defaults without client id to be rejected")
	}
	if cfg.Session.ExpiryTTL != 10*time.Minute || cfg.Verification.MaxAttempts != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg.Session)
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	cfg.Token.PrivateKey = []byte("secret")

	clone := cloneConfig(cfg)
	cfg.Token.PrivateKey[0] = 'X'
	if string(clone.Token.PrivateKey) != "secret" {
		t.Fatal("expected clone to own its key bytes")
	}
}

func TestBuilderRejectsReuseAndMissingCollaborators(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithExchanger(&mockExchanger{}).Build(); err == nil {
		t.Fatal("expected missing repository to fail")
	}
	if _, err := New().WithConfig(testConfig()).WithRepository(newMockRepository()).Build(); err == nil {
		t.Fatal("expected missing exchanger to fail")
	}

	b := New().WithConfig(testConfig()).WithRepository(newMockRepository()).WithExchanger(&mockExchanger{})
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.StartRegister(context.Background(), testEmail, testPassword); err != ErrEngineNotReady {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.SessionCount() != 0 {
		t.Fatal("expected zero sessions on nil engine")
	}
}
