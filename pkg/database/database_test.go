package database_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uk-weather-platform/pkg/database"
	"uk-weather-platform/pkg/database/dbtest"
	"uk-weather-platform/pkg/metrics"
)

func TestConfig_DSN(t *testing.T) {
	pg := &database.Config{
		Driver:   database.DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		User:     "weather",
		Password: "secret",
		Database: "weather",
		SSLMode:  "disable",
	}
	dsn, err := pg.DSN()
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=5432 user=weather password=secret dbname=weather sslmode=disable", dsn)

	lite := &database.Config{Driver: database.DriverSQLite, Path: "/tmp/weather.db"}
	dsn, err = lite.DSN()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/weather.db?"))
	assert.Contains(t, dsn, "foreign_keys")

	_, err = (&database.Config{Driver: database.DriverSQLite}).DSN()
	assert.Error(t, err)

	_, err = (&database.Config{Driver: "oracle"}).DSN()
	assert.Error(t, err)
}

func TestMigrate_IsIdempotentAndReversible(t *testing.T) {
	db := dbtest.Open(t, metrics.NewCollectorForTesting())
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx, database.MigrateUp))

	var tables int
	require.NoError(t, db.GetContext(ctx, "count_tables", &tables,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('regions', 'parameters', 'observations')`))
	assert.Equal(t, 3, tables)

	require.NoError(t, db.Migrate(ctx, database.MigrateDown))
	require.NoError(t, db.GetContext(ctx, "count_tables", &tables,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('regions', 'parameters', 'observations')`))
	assert.Equal(t, 0, tables)

	assert.Error(t, db.Migrate(ctx, database.MigrationDirection("sideways")))
}

func TestDB_RebindAndHealth(t *testing.T) {
	db := dbtest.Open(t, metrics.NewCollectorForTesting())

	assert.Equal(t, database.DriverSQLite, db.DriverName())
	assert.Equal(t, "SELECT ?", db.Rebind("SELECT ?"))
	assert.NoError(t, db.HealthCheck(context.Background()))
}
