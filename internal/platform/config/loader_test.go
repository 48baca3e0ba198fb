package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	platformerrors "cipher-server-go/internal/platform/errors"
)

func TestLoadDefaults(t *testing.T) {
	result, err := NewLoader("").WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg := result.Config

	if cfg.Wake.DebounceInterval.Std() != 2*time.Second {
		t.Fatalf("unexpected debounce interval: %v", cfg.Wake.DebounceInterval.Std())
	}
	if cfg.Wake.MaxConsecutiveErrors != 8 {
		t.Fatalf("unexpected max consecutive errors: %d", cfg.Wake.MaxConsecutiveErrors)
	}
	if cfg.Wake.BaseBackoffDelay.Std() != 150*time.Millisecond {
		t.Fatalf("unexpected base backoff: %v", cfg.Wake.BaseBackoffDelay.Std())
	}
	if cfg.Wake.BackoffCap.Std() != 500*time.Millisecond {
		t.Fatalf("unexpected backoff cap: %v", cfg.Wake.BackoffCap.Std())
	}
	if cfg.Wake.CooldownDuration.Std() != 3*time.Second {
		t.Fatalf("unexpected cooldown: %v", cfg.Wake.CooldownDuration.Std())
	}
	if cfg.Wake.InactivityTimeout.Std() != 30*time.Second {
		t.Fatalf("unexpected inactivity timeout: %v", cfg.Wake.InactivityTimeout.Std())
	}
	if cfg.Wake.ResumeDelay.Std() != 500*time.Millisecond {
		t.Fatalf("unexpected resume delay: %v", cfg.Wake.ResumeDelay.Std())
	}
	if cfg.Wake.RestartDelay.Std() != 100*time.Millisecond {
		t.Fatalf("unexpected restart delay: %v", cfg.Wake.RestartDelay.Std())
	}
	if len(cfg.Wake.WakePhrases) == 0 || len(cfg.Wake.PhoneticVariants) == 0 {
		t.Fatal("expected default wake phrase catalog")
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
wake:
  debounce_interval: 5s
  wake_phrases:
    - "hey tester"
server:
  port: 9999
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	result, err := NewLoader(path).WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg := result.Config

	if cfg.Wake.DebounceInterval.Std() != 5*time.Second {
		t.Fatalf("yaml override not applied: %v", cfg.Wake.DebounceInterval.Std())
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("yaml override not applied: %d", cfg.Server.Port)
	}
	if len(cfg.Wake.WakePhrases) != 1 || cfg.Wake.WakePhrases[0] != "hey tester" {
		t.Fatalf("unexpected wake phrases: %v", cfg.Wake.WakePhrases)
	}
	// Untouched sections keep their defaults.
	if cfg.Wake.MaxConsecutiveErrors != 8 {
		t.Fatalf("defaults lost on partial override: %d", cfg.Wake.MaxConsecutiveErrors)
	}
	if result.Path != path {
		t.Fatalf("unexpected origin path: %s", result.Path)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CIPHER_SERVER_PORT", "8123")
	t.Setenv("CIPHER_TOKEN_SECRET", "env-secret")

	result, err := NewLoader("").WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if result.Config.Server.Port != 8123 {
		t.Fatalf("env port override not applied: %d", result.Config.Server.Port)
	}
	if result.Config.Session.TokenSecret != "env-secret" {
		t.Fatal("env secret override not applied")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
wake:
  max_consecutive_errors: 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := NewLoader(path).WithDotEnv(false).Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !platformerrors.IsKind(err, platformerrors.KindConfig) {
		t.Fatalf("expected config error kind, got: %v", err)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("wake:\n  base_backoff_delay: nonsense\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := NewLoader(path).WithDotEnv(false).Load(); err == nil {
		t.Fatal("expected parse error for invalid duration")
	}
}
