package datastore

import (
	"fmt"
	"path/filepath"

	"github.com/camf-project/camf-go/internal/conf"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Interface for a single local database file.
type SQLiteStore struct {
	DataStore
}

// Open sets up the SQLite database connection. Pragmas are applied at
// connection open: write-ahead logging with relaxed synchronous flushing
// (crash-safe against corruption, the last transaction may be lost on
// power failure), a 30s busy timeout so concurrent readers and writers do
// not fail immediately on lock contention, an enlarged page cache, and
// memory-backed temp storage.
func (store *SQLiteStore) Open() error {
	dir, fileName := filepath.Split(store.Settings.Output.SQLite.Path)
	basePath := conf.GetBasePath(dir)
	absoluteFilePath := filepath.Join(basePath, fileName)

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000&_foreign_keys=ON",
		absoluteFilePath)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: createGormLogger(store.Settings.Debug)})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}

	// One reusable connection shared across threads; the driver serializes
	// access and the busy timeout covers contention.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	// Pragmas not expressible in the DSN; with a single pooled connection
	// they hold for the process lifetime.
	for _, pragma := range []string{
		"PRAGMA cache_size = -65536", // 64 MiB page cache
		"PRAGMA temp_store = MEMORY",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			store.logger.Warn("failed to apply session pragma",
				"pragma", pragma, "error", err)
		}
	}

	store.DB = db
	store.logger.Info("SQLite database opened",
		"path", absoluteFilePath,
		"journal_mode", "WAL",
		"busy_timeout_ms", 30000)

	return performAutoMigration(db, store.Settings.Debug, store.logger)
}

// Close closes the database connection.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}
