package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations creates the kv_entries table for the SQL storage drivers.
// The badger and memory drivers need no schema and return nil.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	var migrationsPath string
	switch driver {
	case "postgres":
		migrationsPath = "file://migrations/postgresql"
	case "mysql":
		migrationsPath = "file://migrations/mysql"
	case "badger", "memory":
		logger.Info("storage driver has no schema to migrate", slog.String("driver", driver))
		return nil
	default:
		return fmt.Errorf("unsupported storage driver: %s", driver)
	}

	logger.Info("running database migrations", slog.String("driver", driver))

	m, err := migrate.New(migrationsPath, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}
