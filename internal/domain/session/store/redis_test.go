package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"cipher-server-go/internal/domain/session/model"
)

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	s, err := NewRedis(Config{
		TTL: time.Second,
		Redis: &RedisConfig{
			Addr: mr.Addr(),
		},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close(ctx)
	})

	cred := model.Credential{
		ClientID: "redis-client",
		Username: "user",
		Password: "pass",
	}
	if err := s.Put(ctx, cred); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := s.Get(ctx, cred.ClientID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ClientID != cred.ClientID {
		t.Fatalf("unexpected credential: %+v", got)
	}

	_, ok, err := s.Validate(ctx, cred.ClientID, cred.Username, cred.Password)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if !ok {
		t.Fatal("expected validation success")
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 || list[0] != cred.ClientID {
		t.Fatalf("unexpected list: %v", list)
	}

	if err := s.Remove(ctx, cred.ClientID); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := s.Get(ctx, cred.ClientID); err == nil {
		t.Fatal("expected missing client after removal")
	}
}

func TestRedisStoreMissingConfig(t *testing.T) {
	if _, err := NewRedis(Config{}); err == nil {
		t.Fatal("expected error without redis configuration")
	}
	if _, err := NewRedis(Config{Redis: &RedisConfig{}}); err == nil {
		t.Fatal("expected error without redis address")
	}
}
