package storage

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	errs "cipher-server-go/internal/platform/errors"
)

// DB wraps the SQLite database handle. Constructed once at startup and passed
// to the stores that need it; there is no package-level instance.
type DB struct {
	gorm *gorm.DB
}

// Open creates the data directory if needed, opens the SQLite database and
// migrates the schema. Pass ":memory:" as dataDir for an in-memory database
// in tests.
func Open(dataDir string) (*DB, error) {
	const op = "storage.Open"

	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, errs.Wrap(errs.KindStorage, op, "create data directory", err)
		}
		dsn = filepath.Join(dataDir, "cipher.db")
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, op, "open database", err)
	}

	if err := gdb.AutoMigrate(&Preference{}, &ConversationRecord{}, &SessionCredential{}); err != nil {
		return nil, errs.Wrap(errs.KindStorage, op, "migrate schema", err)
	}

	return &DB{gorm: gdb}, nil
}

// Gorm exposes the underlying handle for stores built on top of this DB.
func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return errs.Wrap(errs.KindStorage, "storage.Close", "unwrap connection", err)
	}
	return sqlDB.Close()
}
