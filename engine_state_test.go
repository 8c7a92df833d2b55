package authflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/kurabu/authflow/session"
)

const storedKey = "0b6f7a52-3f2e-4a8e-9c1d-7e5b4a3c2d10"

func TestCheckStateLoadsFromRepository(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.repo.byKey[storedKey] = UserTokens{ID: storedKey, Email: testEmail, AccessToken: "at", RefreshToken: "rt"}

	st, err := env.engine.CheckState(context.Background(), storedKey)
	if err != nil {
		t.Fatalf("CheckState failed: %v", err)
	}
	if st != session.StateDone {
		t.Fatalf("expected done, got %s", st)
	}
	done, ok := env.entry(t, storedKey).Payload.(session.Done)
	if !ok || done.AccessToken != "at" || done.RefreshToken != "rt" {
		t.Fatalf("unexpected loaded payload: %+v", env.entry(t, storedKey).Payload)
	}
	if env.timers.count() != 0 {
		t.Fatal("expected no expiry armed for a loaded done session")
	}
}

func TestCheckStatePropagatesRepositoryMiss(t *testing.T) {
	env := newTestEnv(t, testConfig())

	_, err := env.engine.CheckState(context.Background(), storedKey)
	if err != errUserNotFound {
		t.Fatalf("expected repository miss unchanged, got %v", err)
	}
	if env.engine.SessionCount() != 0 {
		t.Fatal("expected nothing stored on a miss")
	}
}

func TestCheckStateRejectsMalformedKey(t *testing.T) {
	env := newTestEnv(t, testConfig())

	if _, err := env.engine.CheckState(context.Background(), "abc"); !errors.Is(err, ErrMalformedParameter) {
		t.Fatalf("expected ErrMalformedParameter, got %v", err)
	}
	if _, err := env.engine.CheckState(context.Background(), ""); !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
}

func TestRefreshTokensIfChangedIsIdempotent(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.repo.byKey[storedKey] = UserTokens{ID: storedKey, Email: testEmail, AccessToken: "at", RefreshToken: "rt"}

	if err := env.engine.RefreshTokensIfChanged(ctx, storedKey, "at2", "rt2"); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if err := env.engine.RefreshTokensIfChanged(ctx, storedKey, "at2", "rt2"); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if n := env.repo.updateCount(); n != 1 {
		t.Fatalf("expected exactly one persistence update, got %d", n)
	}
	if u := env.repo.updates[0]; u.key != storedKey || u.access != "at2" || u.refresh != "rt2" {
		t.Fatalf("unexpected update: %+v", u)
	}

	pair, err := env.engine.Tokens(ctx, storedKey)
	if err != nil {
		t.Fatalf("Tokens failed: %v", err)
	}
	if pair.AccessToken != "at2" || pair.RefreshToken != "rt2" {
		t.Fatalf("expected in-memory tokens updated, got %+v", pair)
	}
}

func TestRefreshTokensUnchangedDoesNothing(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.repo.byKey[storedKey] = UserTokens{ID: storedKey, AccessToken: "at", RefreshToken: "rt"}

	if err := env.engine.RefreshTokensIfChanged(context.Background(), storedKey, "at", "rt"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if env.repo.updateCount() != 0 {
		t.Fatal("expected no persistence update for unchanged tokens")
	}
}

func TestRefreshTokensRequiresDone(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startRegister(t)

	err := env.engine.RefreshTokensIfChanged(context.Background(), key, "at", "rt")
	if !errors.Is(err, ErrStateStatus) {
		t.Fatalf("expected ErrStateStatus, got %v", err)
	}
	if env.repo.updateCount() != 0 {
		t.Fatal("expected no persistence update")
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.repo.byLogin[testEmail+"\x00"+testPassword] = UserTokens{ID: storedKey, Email: testEmail, AccessToken: "at", RefreshToken: "rt"}

	key, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if key != storedKey {
		t.Fatalf("expected key %s, got %s", storedKey, key)
	}
	if st, _ := env.engine.CheckState(ctx, key); st != session.StateDone {
		t.Fatalf("expected done session, got %s", st)
	}

	_, err = env.engine.Login(ctx, testEmail, "Wrong1!pass")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if Kind(err) != "AuthError" {
		t.Fatalf("expected AuthError kind, got %s", Kind(err))
	}
	if got := env.engine.metrics.Value(MetricLoginFailure); got != 1 {
		t.Fatalf("expected one login failure, got %d", got)
	}
}

func TestSetErroredForcesStateAndExpires(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	key := env.startPending(t, "")

	if err := env.engine.SetErrored(ctx, key); err != nil {
		t.Fatalf("SetErrored failed: %v", err)
	}
	if env.entry(t, key).State() != session.StateErrored {
		t.Fatal("expected errored state")
	}

	// verif and pending timers no longer match; the errored one deletes.
	env.timers.fire(0)
	env.timers.fire(1)
	if !env.engine.store.Has(key) {
		t.Fatal("expected stale timers to leave the errored session")
	}
	env.timers.fire(2)
	if env.engine.store.Has(key) {
		t.Fatal("expected errored timer to delete the session")
	}
}

func TestSetCanceledFromAnyState(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startPending(t, "")

	if err := env.engine.SetCanceled(context.Background(), key); err != nil {
		t.Fatalf("SetCanceled failed: %v", err)
	}
	if env.entry(t, key).State() != session.StateCanceled {
		t.Fatal("expected canceled state")
	}
}

func TestDestroyRemovesSession(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startRegister(t)

	env.engine.Destroy(context.Background(), key)
	env.engine.Destroy(context.Background(), key)
	if env.engine.store.Has(key) {
		t.Fatal("expected session removed")
	}
}

func TestDebugSessionsOmitSecrets(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startRegister(t)
	code := env.verifCode(t, key)

	infos := env.engine.DebugSessions()
	if len(infos) != 1 {
		t.Fatalf("expected one session, got %d", len(infos))
	}
	info := infos[0]
	if info.Key != key || info.State != "verif" || info.Email != testEmail {
		t.Fatalf("unexpected info: %+v", info)
	}
	if strings.Contains(info.Key+info.State+info.Email, code) {
		t.Fatal("debug listing leaks the verification code")
	}
}

func TestLogSessionsWritesListingWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithLogger(logger) })
	key := env.startRegister(t)
	code := env.verifCode(t, key)
	buf.Reset()

	env.engine.LogSessions(context.Background())

	out := buf.String()
	for _, want := range []string{`"msg":"session"`, `"session_key":"` + key + `"`, `"state":"verif"`, `"email":"` + testEmail + `"`, `"attempts":0`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, code) || strings.Contains(out, "argon2id") {
		t.Fatalf("session log leaks a secret: %s", out)
	}
}
