package session

import (
	"context"
	"testing"
	"time"

	"cipher-server-go/internal/domain/session/store"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	tokens, err := NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	m, err := NewManager(Options{
		Store:         store.NewMemory(store.Config{TTL: time.Minute}),
		Logger:        nopLogger{},
		Tokens:        tokens,
		CredentialTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerIssueAndAuthenticate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cred, token, err := m.Issue(ctx, "tester", "127.0.0.1", map[string]any{"role": "api"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if cred.ClientID == "" || cred.Password == "" {
		t.Fatalf("incomplete credential: %+v", cred)
	}
	if token == "" {
		t.Fatal("expected a signed token")
	}

	got, ok, err := m.Authenticate(ctx, cred.ClientID, cred.Username, cred.Password)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if !ok {
		t.Fatal("expected authentication success")
	}
	if got.Username != "tester" {
		t.Fatalf("unexpected credential: %+v", got)
	}

	if _, ok, _ := m.Authenticate(ctx, cred.ClientID, cred.Username, "wrong"); ok {
		t.Fatal("expected authentication failure for wrong password")
	}
}

func TestManagerVerifyToken(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cred, token, err := m.Issue(ctx, "tester", "", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	got, err := m.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if got.ClientID != cred.ClientID {
		t.Fatalf("token resolved to %q, want %q", got.ClientID, cred.ClientID)
	}

	if _, err := m.VerifyToken(ctx, token+"tampered"); err == nil {
		t.Fatal("expected tampered token to fail verification")
	}
}

func TestManagerRevokeInvalidatesToken(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cred, token, err := m.Issue(ctx, "tester", "", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if err := m.Revoke(ctx, cred.ClientID); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if _, err := m.VerifyToken(ctx, token); err == nil {
		t.Fatal("expected token verification to fail after revocation")
	}
}

func TestManagerRequiresDependencies(t *testing.T) {
	tokens, _ := NewTokenIssuer("secret")

	if _, err := NewManager(Options{Logger: nopLogger{}, Tokens: tokens}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := NewManager(Options{Store: store.NewMemory(store.Config{}), Tokens: tokens}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewManager(Options{Store: store.NewMemory(store.Config{}), Logger: nopLogger{}}); err == nil {
		t.Fatal("expected error without token issuer")
	}
}
