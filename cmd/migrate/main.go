package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"uk-weather-platform/internal/config"
	"uk-weather-platform/internal/repository"
	"uk-weather-platform/internal/services"
	"uk-weather-platform/pkg/database"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
	"uk-weather-platform/pkg/ui"
)

func main() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	direction := fs.String("direction", "up", "Migration direction: up or down")
	seed := fs.Bool("seed", false, "Seed the default regions and parameters after migrating up")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	_ = fs.Parse(os.Args[1:])

	ui.InitColors(*noColor)

	dir := database.MigrationDirection(*direction)
	if dir != database.MigrateUp && dir != database.MigrateDown {
		ui.Errorf("direction must be up or down, got %q", *direction)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("uk-weather-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	collector := metrics.NewCollector("uk_weather_migrate")
	ctx := context.Background()

	db, err := database.NewDB(cfg.DBConfig(), logger, collector)
	if err != nil {
		ui.Errorf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	ui.Infof("Connected to %s database", db.DriverName())

	if err := db.Migrate(ctx, dir); err != nil {
		ui.Errorf("Migration failed: %v", err)
		os.Exit(1)
	}
	ui.Successf("Migration %s completed", dir)

	if *seed && dir == database.MigrateUp {
		repo := repository.NewWeatherRepository(db, logger, collector)
		result, err := services.NewCatalogService(repo, logger, collector, clockwork.NewRealClock()).Seed(ctx)
		if err != nil {
			ui.Errorf("Seeding failed: %v", err)
			os.Exit(1)
		}
		ui.Successf("Seeded %d regions and %d parameters", result.RegionsCreated, result.ParametersCreated)
	}
}
