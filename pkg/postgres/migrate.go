package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirtyDatabase is returned when a previous migration failed half way and
// the schema needs manual repair.
var ErrDirtyDatabase = errors.New("database schema is dirty")

// RunMigrations applies all pending migrations found at path (for example
// "file://migrations") and returns the resulting schema version.
func RunMigrations(path string, dsn string) (uint, error) {
	const op = "postgres.RunMigrations"

	m, err := migrate.New(path, dsn)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get schema version: %w", op, err)
	}
	if dirty {
		return version, fmt.Errorf("%s: %w: version %d", op, ErrDirtyDatabase, version)
	}

	return version, nil
}

// RollbackMigrations reverts every applied migration.
func RollbackMigrations(path string, dsn string) error {
	const op = "postgres.RollbackMigrations"

	m, err := migrate.New(path, dsn)
	if err != nil {
		return fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to rollback migrations: %w", op, err)
	}

	return nil
}
