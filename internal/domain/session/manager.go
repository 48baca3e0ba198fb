package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cipher-server-go/internal/domain/session/model"
	"cipher-server-go/internal/domain/session/store"
)

type (
	// Credential re-exports the shared session entity for callers.
	Credential = model.Credential
	// Logger re-exports the logging interface used across the domain.
	Logger = model.Logger
)

const (
	defaultCleanupInterval = 10 * time.Minute
	minCleanupInterval     = 30 * time.Second
)

// Options encapsulates the dependencies required to construct a Manager.
type Options struct {
	Store           store.Store
	Logger          Logger
	Tokens          *TokenIssuer
	CredentialTTL   time.Duration
	CleanupInterval time.Duration
}

// Manager issues client credentials and tokens and owns their lifecycle.
type Manager struct {
	store  store.Store
	logger Logger
	tokens *TokenIssuer
	ttl    time.Duration

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupOnce     sync.Once
}

// NewManager wires a Manager using the supplied options.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("session manager requires a store")
	}
	if opts.Logger == nil {
		return nil, errors.New("session manager requires a logger")
	}
	if opts.Tokens == nil {
		return nil, errors.New("session manager requires a token issuer")
	}

	ttl := opts.CredentialTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cleanupInterval := opts.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	} else if cleanupInterval < minCleanupInterval {
		opts.Logger.Warn("cleanup interval too small, raising to %s", minCleanupInterval)
		cleanupInterval = minCleanupInterval
	}

	m := &Manager{
		store:           opts.Store,
		logger:          opts.Logger,
		tokens:          opts.Tokens,
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		cleanupStop:     make(chan struct{}),
	}
	go m.runCleanup()
	return m, nil
}

func (m *Manager) runCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.store.CleanupExpired(context.Background()); err != nil {
				m.logger.Warn("session store cleanup failed: %v", err)
			}
		case <-m.cleanupStop:
			return
		}
	}
}

// Issue registers a new client and returns its credential and a signed token.
func (m *Manager) Issue(ctx context.Context, username, ip string, metadata map[string]any) (Credential, string, error) {
	if username == "" {
		return Credential{}, "", fmt.Errorf("username must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return Credential{}, "", err
	}

	now := time.Now()
	expiresAt := now.Add(m.ttl)
	cred := Credential{
		ClientID:  uuid.NewString(),
		Username:  username,
		Password:  uuid.NewString(),
		IP:        ip,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
		Metadata:  metadata,
	}

	if err := m.store.Put(ctx, cred); err != nil {
		m.logger.Error("failed to store credential for %s: %v", username, err)
		return Credential{}, "", err
	}

	token, err := m.tokens.Issue(cred.ClientID)
	if err != nil {
		_ = m.store.Remove(ctx, cred.ClientID)
		return Credential{}, "", err
	}

	m.logger.Debug("issued session credential: %s", cred.ClientID)
	return cred, token, nil
}

// Authenticate verifies a username/password pair for the given client.
func (m *Manager) Authenticate(ctx context.Context, clientID, username, password string) (Credential, bool, error) {
	cred, ok, err := m.store.Validate(ctx, clientID, username, password)
	if err != nil {
		m.logger.Error("credential validation failed: %s: %v", clientID, err)
		return Credential{}, false, err
	}
	if !ok {
		m.logger.Debug("credential rejected: %s", clientID)
		return Credential{}, false, nil
	}
	return cred, true, nil
}

// VerifyToken checks the token signature and that the client still exists.
func (m *Manager) VerifyToken(ctx context.Context, token string) (Credential, error) {
	clientID, err := m.tokens.Verify(token)
	if err != nil {
		return Credential{}, err
	}
	cred, err := m.store.Get(ctx, clientID)
	if err != nil {
		return Credential{}, fmt.Errorf("token client unknown: %w", err)
	}
	return cred, nil
}

// Get returns the credential without authentication.
func (m *Manager) Get(ctx context.Context, clientID string) (Credential, error) {
	return m.store.Get(ctx, clientID)
}

// Revoke deletes the client credential; outstanding tokens stop verifying.
func (m *Manager) Revoke(ctx context.Context, clientID string) error {
	if err := m.store.Remove(ctx, clientID); err != nil {
		return err
	}
	m.logger.Info("revoked session credential: %s", clientID)
	return nil
}

// List returns active client identifiers.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Stats returns debug information from the store backend.
func (m *Manager) Stats(ctx context.Context) (map[string]any, error) {
	return m.store.Stats(ctx)
}

// Close releases underlying resources.
func (m *Manager) Close() error {
	m.cleanupOnce.Do(func() {
		close(m.cleanupStop)
	})

	if err := m.store.Close(context.Background()); err != nil {
		m.logger.Error("failed closing session store: %v", err)
		return err
	}
	return nil
}
