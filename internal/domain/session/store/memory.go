package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cipher-server-go/internal/domain/session/model"
)

type memoryStore struct {
	mu       sync.RWMutex
	creds    map[string]model.Credential
	ttl      time.Duration
	gcEvery  time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory builds an in-memory credential store with a background sweeper.
func NewMemory(cfg Config) Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	gcEvery := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		gcEvery = cfg.Memory.GCInterval
	}

	s := &memoryStore{
		creds:   make(map[string]model.Credential),
		ttl:     ttl,
		gcEvery: gcEvery,
		stop:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *memoryStore) sweep() {
	ticker := time.NewTicker(s.gcEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.CleanupExpired(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) Put(_ context.Context, cred model.Credential) error {
	if cred.ClientID == "" {
		return fmt.Errorf("client id required")
	}
	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	if cred.ExpiresAt == nil && s.ttl > 0 {
		exp := now.Add(s.ttl)
		cred.ExpiresAt = &exp
	}

	s.mu.Lock()
	s.creds[cred.ClientID] = cred
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Validate(
	_ context.Context,
	clientID string,
	username string,
	password string,
) (model.Credential, bool, error) {
	s.mu.RLock()
	cred, ok := s.creds[clientID]
	s.mu.RUnlock()

	if !ok {
		return model.Credential{}, false, nil
	}
	if cred.Expired(time.Now()) {
		return model.Credential{}, false, fmt.Errorf("expired credential: %s", clientID)
	}
	if cred.Username != username || cred.Password != password {
		return model.Credential{}, false, nil
	}
	return cred, true, nil
}

func (s *memoryStore) Get(_ context.Context, clientID string) (model.Credential, error) {
	s.mu.RLock()
	cred, ok := s.creds[clientID]
	s.mu.RUnlock()

	if !ok {
		return model.Credential{}, fmt.Errorf("client not found: %s", clientID)
	}
	if cred.Expired(time.Now()) {
		return model.Credential{}, fmt.Errorf("client expired: %s", clientID)
	}
	return cred, nil
}

func (s *memoryStore) Remove(_ context.Context, clientID string) error {
	s.mu.Lock()
	delete(s.creds, clientID)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]string, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.creds))
	for id, cred := range s.creds {
		if !cred.Expired(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) error {
	now := time.Now()
	s.mu.Lock()
	for id, cred := range s.creds {
		if cred.Expired(now) {
			delete(s.creds, id)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, cred := range s.creds {
		if !cred.Expired(now) {
			active++
		}
	}
	return map[string]any{
		"type":        "memory",
		"total":       len(s.creds),
		"active":      active,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
