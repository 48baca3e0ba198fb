package store

import (
	"context"
	"time"

	"cipher-server-go/internal/domain/session/model"
)

// Store is the persistence contract the session manager depends on.
type Store interface {
	Put(ctx context.Context, cred model.Credential) error
	Validate(ctx context.Context, clientID, username, password string) (model.Credential, bool, error)
	Get(ctx context.Context, clientID string) (model.Credential, error)
	Remove(ctx context.Context, clientID string) error
	List(ctx context.Context) ([]string, error)
	CleanupExpired(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Driver identifiers supported by the factory.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and tunes a store driver.
type Config struct {
	Driver string
	TTL    time.Duration
	Memory *MemoryConfig
	Redis  *RedisConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
