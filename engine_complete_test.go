package authflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kurabu/authflow/session"
)

func TestCompleteRegistrationProviderFailureStaysPending(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startPending(t, "")
	env.exchanger.err = &ProviderError{StatusCode: 400, Code: "invalid_grant", Message: "authorization code expired"}

	_, err := env.engine.CompleteRegistration(context.Background(), key, "authcode123", testDomain)
	if !errors.Is(err, ErrGeneral) {
		t.Fatalf("expected ErrGeneral, got %v", err)
	}
	var gerr *GeneralError
	if !errors.As(err, &gerr) || gerr.Message != "authorization code expired" {
		t.Fatalf("expected provider message passed through, got %v", err)
	}
	if Kind(err) != "General" {
		t.Fatalf("expected General kind, got %s", Kind(err))
	}

	if env.entry(t, key).State() != session.StatePending {
		t.Fatal("expected session to stay pending")
	}
	if len(env.repo.created) != 0 {
		t.Fatal("expected no user persisted")
	}
}

func TestCompleteRegistrationTransportErrorPropagates(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startPending(t, "")
	netErr := errors.New("dial tcp: connection refused")
	env.exchanger.err = netErr

	_, err := env.engine.CompleteRegistration(context.Background(), key, "authcode123", testDomain)
	if err != netErr {
		t.Fatalf("expected transport error unchanged, got %v", err)
	}
	if errors.Is(err, ErrGeneral) {
		t.Fatal("transport error must not be reported as General")
	}
	if env.entry(t, key).State() != session.StatePending {
		t.Fatal("expected session to stay pending")
	}
}

func TestCompleteRegistrationSuccess(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startPending(t, "")
	pending := env.entry(t, key).Payload.(session.Pending)

	target, err := env.engine.CompleteRegistration(context.Background(), key, "authcode123", testDomain)
	if err != nil {
		t.Fatalf("CompleteRegistration failed: %v", err)
	}
	if target != "imal://auth/"+key {
		t.Fatalf("unexpected redirect target %q", target)
	}

	call := env.exchanger.calls[0]
	if call.code != "authcode123" || call.verifier != pending.Verifier || call.redirectURI != "https://x.test/authed" {
		t.Fatalf("unexpected exchange call: %+v", call)
	}

	if len(env.repo.created) != 1 {
		t.Fatalf("expected one user persisted, got %d", len(env.repo.created))
	}
	in := env.repo.created[0]
	if in.SessionKey != key || in.Email != testEmail || in.PasswordHash != pending.PasswordHash ||
		in.AccessToken != "access-1" || in.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected CreateUser input: %+v", in)
	}

	done, ok := env.entry(t, key).Payload.(session.Done)
	if !ok || done.AccessToken != "access-1" || done.RefreshToken != "refresh-1" || done.Email != testEmail {
		t.Fatalf("unexpected done payload: %+v", env.entry(t, key).Payload)
	}

	// Done sessions outlive every armed timer.
	env.timers.fireAll()
	if !env.engine.store.Has(key) {
		t.Fatal("expected done session to survive expiry timers")
	}
}

func TestCompleteRegistrationCallerRedirect(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startPending(t, "exp://192.168.1.2:19000/--/auth/")

	target, err := env.engine.CompleteRegistration(context.Background(), key, "authcode123", testDomain)
	if err != nil {
		t.Fatalf("CompleteRegistration failed: %v", err)
	}
	if target != "exp://192.168.1.2:19000/--/auth/"+key {
		t.Fatalf("unexpected redirect target %q", target)
	}
}

func TestCompleteRegistrationCreateUserFailure(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startPending(t, "")
	dup := errors.New("duplicate key")
	env.repo.createErr = dup

	_, err := env.engine.CompleteRegistration(context.Background(), key, "authcode123", testDomain)
	if err != dup {
		t.Fatalf("expected duplicate error unchanged, got %v", err)
	}
	if env.entry(t, key).State() != session.StatePending {
		t.Fatal("expected session to stay pending")
	}
}

func TestCompleteRegistrationStateChecks(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	key := env.startRegister(t)

	if _, err := env.engine.CompleteRegistration(ctx, key, "authcode123", testDomain); !errors.Is(err, ErrStateStatus) {
		t.Fatalf("expected ErrStateStatus for verif session, got %v", err)
	}
	if _, err := env.engine.CompleteRegistration(ctx, "3f1c0a5e-8a9b-4c6d-9e2f-1a2b3c4d5e6f", "authcode123", testDomain); !errors.Is(err, ErrMissingState) {
		t.Fatalf("expected ErrMissingState, got %v", err)
	}
	if _, err := env.engine.CompleteRegistration(ctx, key, "", testDomain); !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
	if len(env.exchanger.calls) != 0 {
		t.Fatal("expected no exchange for rejected calls")
	}
}

func TestRegistrationEndToEnd(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	key, err := env.engine.StartRegister(ctx, "a@b.com", "Aa1!aaaa")
	if err != nil {
		t.Fatalf("StartRegister failed: %v", err)
	}
	if st, _ := env.engine.CheckState(ctx, key); st != session.StateVerif {
		t.Fatalf("expected verif, got %s", st)
	}

	code := env.verifCode(t, key)
	if _, err := env.engine.VerifyCode(ctx, key, wrongCode(code), testDomain, ""); !errors.Is(err, ErrIncorrectCode) {
		t.Fatalf("expected ErrIncorrectCode, got %v", err)
	}
	if env.entry(t, key).Payload.(session.Verif).Attempts != 1 {
		t.Fatal("expected attempt=1")
	}

	authURL, err := env.engine.VerifyCode(ctx, key, code, testDomain, "")
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if !strings.Contains(authURL, "state="+key) {
		t.Fatalf("expected state=%s in %s", key, authURL)
	}

	target, err := env.engine.CompleteRegistration(ctx, key, "authcode123", "https://x.test")
	if err != nil {
		t.Fatalf("CompleteRegistration failed: %v", err)
	}
	if target != "imal://auth/"+key {
		t.Fatalf("expected imal://auth/%s, got %s", key, target)
	}
	if st, _ := env.engine.CheckState(ctx, key); st != session.StateDone {
		t.Fatalf("expected done, got %s", st)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRegistrationCompleted] != 1 || snap.Counters[MetricVerifyIncorrect] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
	var observed uint64
	for _, n := range snap.Histograms[MetricExchangeLatency] {
		observed += n
	}
	if observed != 1 {
		t.Fatalf("expected one exchange latency sample, got %d", observed)
	}
}

func TestCompleteRegistrationLosesToConcurrentTransition(t *testing.T) {
	cases := []struct {
		name  string
		move  func(e *Engine, key string)
		want  error
		state session.State
	}{
		{"errored", func(e *Engine, key string) { _ = e.SetErrored(context.Background(), key) }, ErrStateStatus, session.StateErrored},
		{"canceled", func(e *Engine, key string) { _ = e.SetCanceled(context.Background(), key) }, ErrStateStatus, session.StateCanceled},
		{"destroyed", func(e *Engine, key string) { e.Destroy(context.Background(), key) }, ErrMissingState, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig())
			key := env.startPending(t, "")
			env.repo.onCreate = func(CreateUserInput) { tc.move(env.engine, key) }

			target, err := env.engine.CompleteRegistration(context.Background(), key, "authcode123", testDomain)
			if !errors.Is(err, tc.want) || target != "" {
				t.Fatalf("expected %v and no redirect, got %q, %v", tc.want, target, err)
			}
			if env.engine.metrics.Value(MetricRegistrationCompleted) != 0 {
				t.Fatal("expected no completion counted")
			}

			entry, ok := env.engine.store.Get(key)
			if tc.want == ErrMissingState {
				if ok {
					t.Fatal("expected destroyed session to stay gone")
				}
				return
			}
			if !ok || entry.State() != tc.state {
				t.Fatalf("expected %s to survive, got %+v (present=%v)", tc.state, entry.Payload, ok)
			}
		})
	}
}

func TestCompleteRegistrationRejectsReplacedPending(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.startPending(t, "")
	env.repo.onCreate = func(CreateUserInput) {
		env.engine.store.Set(key, session.Pending{Email: testEmail, Verifier: "another-verifier"})
	}

	if _, err := env.engine.CompleteRegistration(context.Background(), key, "authcode123", testDomain); !errors.Is(err, ErrStateStatus) {
		t.Fatalf("expected ErrStateStatus, got %v", err)
	}
	if p, ok := env.entry(t, key).Payload.(session.Pending); !ok || p.Verifier != "another-verifier" {
		t.Fatalf("expected the newer pending session untouched, got %+v", env.entry(t, key).Payload)
	}
}
