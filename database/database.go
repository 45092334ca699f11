// Package database opens the embedded SQLite store and keeps its schema
// current. The schema is self-creating and idempotent: AutoMigrate only adds
// what is missing.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/entities"
)

// Open opens (creating if needed) the SQLite database at path with WAL
// journaling, enforced foreign keys and a busy timeout, and returns a shared,
// internally thread-safe handle.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.KindIO, "failed to create database directory", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindIO, "failed to open database", err)
	}
	return db, nil
}

// Migrate creates or extends the four core tables. Safe to call on every
// start.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.Client{},
		&entities.Invoice{},
		&entities.InvoiceItem{},
		&entities.InvoiceSequence{},
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to migrate database schema", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to access database handle", err)
	}
	if err := sqlDB.Close(); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to close database", err)
	}
	return nil
}
