package store

import (
	"fmt"

	"cipher-server-go/internal/platform/storage"
)

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	DB *storage.DB
}

// New creates a credential store for the configured driver.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(cfg), nil
	case DriverSQLite:
		if deps.DB == nil {
			return nil, fmt.Errorf("sqlite driver requires a database handle")
		}
		return NewSQLite(deps.DB, cfg)
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported session store driver: %s", driver)
	}
}
