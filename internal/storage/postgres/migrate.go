package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the state golang-migrate records in schema_migrations.
type SchemaVersion struct {
	Version uint
	Dirty   bool
	// Fresh is set when no migration has ever been applied.
	Fresh bool
}

// MigrateUp brings the kv table to the latest schema. dir overrides the
// migrations embedded in the binary.
func MigrateUp(databaseURL, dir string) error {
	return withMigrator(databaseURL, dir, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		return nil
	})
}

// MigrateDown reverts the last steps migrations.
func MigrateDown(databaseURL, dir string, steps int) error {
	if steps < 1 {
		return errors.New("migrate down: steps must be at least 1")
	}
	return withMigrator(databaseURL, dir, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		return nil
	})
}

// MigrationStatus reads the applied schema version without changing it.
func MigrationStatus(databaseURL, dir string) (SchemaVersion, error) {
	var status SchemaVersion
	err := withMigrator(databaseURL, dir, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			status.Fresh = true
			return nil
		case err != nil:
			return fmt.Errorf("read schema version: %w", err)
		}
		status.Version, status.Dirty = version, dirty
		return nil
	})
	return status, err
}

func withMigrator(databaseURL, dir string, fn func(*migrate.Migrate) error) error {
	var (
		m   *migrate.Migrate
		err error
	)
	if dir != "" {
		m, err = migrate.New("file://"+dir, databaseURL)
	} else {
		source, srcErr := iofs.New(migrationsFS, "migrations")
		if srcErr != nil {
			return fmt.Errorf("open embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", source, databaseURL)
	}
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}

	runErr := fn(m)
	srcErr, dbErr := m.Close()
	return errors.Join(runErr, srcErr, dbErr)
}
