package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cipher-server-go/internal/domain/session/model"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis constructs a redis-backed credential store. Entries expire through
// redis TTLs, so CleanupExpired is a no-op for this driver.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "session:client:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &redisStore{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) Put(ctx context.Context, cred model.Credential) error {
	if cred.ClientID == "" {
		return fmt.Errorf("client id required")
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	expiry := s.ttl
	if cred.ExpiresAt != nil {
		expiry = time.Until(*cred.ExpiresAt)
	}
	return s.client.Set(ctx, s.key(cred.ClientID), data, expiry).Err()
}

func (s *redisStore) Validate(
	ctx context.Context,
	clientID string,
	username string,
	password string,
) (model.Credential, bool, error) {
	cred, err := s.Get(ctx, clientID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return model.Credential{}, false, nil
		}
		return model.Credential{}, false, err
	}
	if cred.Username != username || cred.Password != password {
		return model.Credential{}, false, nil
	}
	return cred, true, nil
}

func (s *redisStore) Get(ctx context.Context, clientID string) (model.Credential, error) {
	raw, err := s.client.Get(ctx, s.key(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Credential{}, fmt.Errorf("client not found: %s", clientID)
		}
		return model.Credential{}, err
	}

	var cred model.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return model.Credential{}, err
	}
	if cred.Expired(time.Now()) {
		_ = s.Remove(ctx, clientID)
		return model.Credential{}, fmt.Errorf("client expired: %s", clientID)
	}
	return cred, nil
}

func (s *redisStore) Remove(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, s.key(clientID)).Err()
}

func (s *redisStore) List(ctx context.Context) ([]string, error) {
	var cursor uint64
	ids := make([]string, 0)
	pattern := s.prefix + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			ids = append(ids, strings.TrimPrefix(key, s.prefix))
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

func (s *redisStore) CleanupExpired(context.Context) error {
	return nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":        "redis",
		"total":       size,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
