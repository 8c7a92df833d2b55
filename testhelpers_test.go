package authflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kurabu/authflow/session"
	"github.com/redis/go-redis/v9"
)

var errUserNotFound = errors.New("user not found")

type tokenUpdate struct {
	key, access, refresh string
}

type mockRepository struct {
	mu sync.Mutex

	usedEmails map[string]bool
	byKey      map[string]UserTokens
	byLogin    map[string]UserTokens // email + "\x00" + password

	emailExistsErr error
	createErr      error
	// onCreate runs inside CreateUser before the user is recorded.
	onCreate func(CreateUserInput)

	emailExistsCalls int
	created          []CreateUserInput
	updates          []tokenUpdate
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		usedEmails: map[string]bool{},
		byKey:      map[string]UserTokens{},
		byLogin:    map[string]UserTokens{},
	}
}

func (m *mockRepository) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailExistsCalls++
	if m.emailExistsErr != nil {
		return false, m.emailExistsErr
	}
	return m.usedEmails[email], nil
}

func (m *mockRepository) CreateUser(_ context.Context, in CreateUserInput) error {
	if m.onCreate != nil {
		m.onCreate(in)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, in)
	m.usedEmails[in.Email] = true
	return nil
}

func (m *mockRepository) UpdateTokens(_ context.Context, key, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, tokenUpdate{key: key, access: access, refresh: refresh})
	return nil
}

func (m *mockRepository) LoginLookup(_ context.Context, email, pass string) (UserTokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byLogin[email+"\x00"+pass]
	if !ok {
		return UserTokens{}, ErrAuth
	}
	return u, nil
}

func (m *mockRepository) TokensFromKey(_ context.Context, key string) (UserTokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byKey[key]
	if !ok {
		return UserTokens{}, errUserNotFound
	}
	return u, nil
}

func (m *mockRepository) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

type sentMail struct {
	to, subject, body, from string
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *mockMailer) SendHTML(_ context.Context, to, subject, body, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body, from: from})
	return nil
}

type exchangeCall struct {
	code, verifier, redirectURI string
}

type mockExchanger struct {
	mu    sync.Mutex
	pair  TokenPair
	err   error
	calls []exchangeCall
}

func (m *mockExchanger) ExchangeCode(_ context.Context, code, verifier, redirectURI string) (TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, exchangeCall{code: code, verifier: verifier, redirectURI: redirectURI})
	if m.err != nil {
		return TokenPair{}, m.err
	}
	return m.pair, nil
}

// manualTimers records expiry timers so tests fire them explicitly.
type manualTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.funcs = append(m.funcs, f)
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.funcs)
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.funcs[i]
	m.mu.Unlock()
	f()
}

func (m *manualTimers) fireAll() {
	m.mu.Lock()
	funcs := append([]func(){}, m.funcs...)
	m.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

type testEnv struct {
	engine    *Engine
	repo      *mockRepository
	mailer    *mockMailer
	exchanger *mockExchanger
	timers    *manualTimers
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Upstream.ClientID = "test-client"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestEnv(t *testing.T, cfg Config, configure ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:   newMockRepository(),
		mailer: &mockMailer{},
		exchanger: &mockExchanger{
			pair: TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
		},
		timers: &manualTimers{},
	}

	b := New().
		WithConfig(cfg).
		WithRepository(env.repo).
		WithMailer(env.mailer).
		WithExchanger(env.exchanger).
		WithAfterFunc(env.timers.afterFunc).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func (env *testEnv) entry(t *testing.T, key string) session.Entry {
	t.Helper()
	e, ok := env.engine.store.Get(key)
	if !ok {
		t.Fatalf("expected session %s to exist", key)
	}
	return e
}

func (env *testEnv) verifCode(t *testing.T, key string) string {
	t.Helper()
	p, ok := env.entry(t, key).Payload.(session.Verif)
	if !ok {
		t.Fatalf("expected verif payload for %s", key)
	}
	return p.Code
}

// wrongCode returns a well-formed code guaranteed to differ from code.
func wrongCode(code string) string {
	if code == "AAAAAA" {
		return "BBBBBB"
	}
	return "AAAAAA"
}

const (
	testEmail    = "a@b.com"
	testPassword = "Aa1!aaaa"
	testDomain   = "https://x.test"
)

func (env *testEnv) startRegister(t *testing.T) string {
	t.Helper()
	key, err := env.engine.StartRegister(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("StartRegister failed: %v", err)
	}
	return key
}

func (env *testEnv) startPending(t *testing.T, redirect string) string {
	t.Helper()
	key := env.startRegister(t)
	if _, err := env.engine.VerifyCode(context.Background(), key, env.verifCode(t, key), testDomain, redirect); err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	return key
}
