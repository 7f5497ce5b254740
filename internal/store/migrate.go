package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store/migrations"
)

// SchemaVersion is the version of the newest embedded migration.
const SchemaVersion = 2

// ErrDirtySchema is returned when an earlier migration stopped half way.
// The cache holds only server data, so deleting the file is a safe fix.
var ErrDirtySchema = errors.New("store: cache schema is dirty")

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Changed bool
}

// Migrate brings the cache schema up to SchemaVersion.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	if v, dirty, err := m.Version(); err == nil && dirty {
		return nil, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}

	changed := true
	if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
		changed = false
	} else if err != nil {
		return nil, fmt.Errorf("migration up: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return nil, fmt.Errorf("migration version: %w", err)
	}
	return &MigrateResult{Version: version, Changed: changed}, nil
}
