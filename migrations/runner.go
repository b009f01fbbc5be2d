package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Up applies all pending migrations against the given database connection.
// Applying an already-current schema is a no-op.
//
// The connection is not closed; ownership stays with the caller.
func Up(db *sql.DB, logger *slog.Logger) error {
	if err := Validate(); err != nil {
		return fmt.Errorf("embedded migration validation failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(embeddedMigrations, ".")
	if err != nil {
		return fmt.Errorf("create embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("Checkpoint schema already up to date")
	} else {
		version, dirty, versionErr := m.Version()
		if versionErr == nil {
			logger.Info("Checkpoint schema migrated",
				slog.Uint64("version", uint64(version)),
				slog.Bool("dirty", dirty),
			)
		}
	}

	return nil
}
