// Package dbtest opens migrated throwaway SQLite stores for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"uk-weather-platform/pkg/database"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

// Open creates a fresh SQLite database under t.TempDir with the schema applied.
// The database is closed when the test ends.
func Open(t testing.TB, collector *metrics.Collector) *database.DB {
	t.Helper()

	cfg := &database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "weather.db"),
		// one writer keeps SQLite free of SQLITE_BUSY under concurrent tests
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	db, err := database.NewDB(cfg, logging.NewNopLogger(), collector)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background(), database.MigrateUp))

	return db
}
