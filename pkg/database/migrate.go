package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"uk-weather-platform/migrations"
	"uk-weather-platform/pkg/logging"
)

// MigrationDirection selects which way migrations are applied
type MigrationDirection string

const (
	MigrateUp   MigrationDirection = "up"
	MigrateDown MigrationDirection = "down"
)

// Migrate applies the embedded schema migrations for the connected driver.
// An already up-to-date schema is not an error.
func (p *DB) Migrate(ctx context.Context, direction MigrationDirection) error {
	migrator, err := p.newMigrator()
	if err != nil {
		return err
	}
	// Do not close the migrator: it would close the shared *sql.DB.

	p.logger.Info(ctx, "[DB_MIGRATE] Applying migrations", logging.Fields{
		"driver":    p.driver,
		"direction": string(direction),
	})

	switch direction {
	case MigrateUp:
		err = migrator.Up()
	case MigrateDown:
		err = migrator.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		p.metrics.RecordDBError("migration_error")
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, verr := migrator.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", verr)
	}

	p.logger.Info(ctx, "[DB_MIGRATE_COMPLETE] Migrations applied", logging.Fields{
		"driver":  p.driver,
		"version": version,
		"dirty":   dirty,
	})

	return nil
}

func (p *DB) newMigrator() (*migrate.Migrate, error) {
	sub, err := fs.Sub(migrations.FS, p.driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	var driver database.Driver
	switch p.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(p.db.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(p.db.DB, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", p.driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, p.driver, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return migrator, nil
}
