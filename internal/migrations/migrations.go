// Package migrations embeds the calendar schema and applies it with
// golang-migrate at startup.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var schemaFiles embed.FS

// Run brings the calendar schema up to date. With apply=false it only
// reports the schema version and leaves the database untouched, for
// deployments that migrate out of band.
func Run(db *sql.DB, apply bool) error {
	src, err := iofs.New(schemaFiles, ".")
	if err != nil {
		return fmt.Errorf("failed to read embedded schema: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if dirty {
		// An interrupted run left the version flagged dirty. The schema is
		// a single idempotent baseline (CREATE ... IF NOT EXISTS), so
		// forcing the recorded version and re-running is safe.
		slog.Warn("Interrupted migration detected, clearing dirty flag", "version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to clear dirty schema state at version %d: %w", version, err)
		}
	}

	if !apply {
		slog.Info("Schema migration disabled, leaving database as-is", "version", version)
		return nil
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("Calendar schema already current", "version", version)
			return nil
		}
		return fmt.Errorf("failed to apply schema migrations: %w", err)
	}

	applied, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version after migrating: %w", err)
	}
	slog.Info("Calendar schema migrated", "from", version, "to", applied)
	return nil
}
