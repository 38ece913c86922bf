package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	applog "choreboard/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateSchema brings the database at dbPath up to the embedded schema and
// logs the version it ends on.
func migrateSchema(dbPath string, logger *applog.Logger) error {
	// The migrate driver closes the connection it owns, so it gets its own.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open %s for migration: %w", dbPath, err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrator for %s: %w", dbPath, err)
	}
	defer m.Close()

	from, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s from version %d: %w", dbPath, from, err)
	}
	to, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if to != from {
		logger.Info("SQLite schema migrated", "db_path", dbPath, "from", from, "to", to)
	} else {
		logger.Debug("SQLite schema up to date", "db_path", dbPath, "version", to)
	}
	return nil
}
