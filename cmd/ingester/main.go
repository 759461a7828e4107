package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"uk-weather-platform/internal/config"
	"uk-weather-platform/internal/fetcher"
	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/parser"
	"uk-weather-platform/internal/repository"
	"uk-weather-platform/internal/services"
	"uk-weather-platform/pkg/database"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
	"uk-weather-platform/pkg/ui"
)

const version = "1.0.0"

func main() {
	// Parse command-line flags
	fs := flag.NewFlagSet("ingester", flag.ExitOnError)
	regions := fs.StringSlice("region", nil, "Region codes to fetch (default: every catalog region)")
	parameters := fs.StringSlice("parameter", nil, "Parameter codes to fetch (default: every catalog parameter)")
	dataDir := fs.String("data-dir", "", "Ingest a local mirror laid out as <dir>/<parameter>/<region>.txt")
	file := fs.String("file", "", "Ingest one local file named <parameter>/<region>.txt")
	url := fs.String("url", "", "Ingest one dataset url")
	modeFlag := fs.String("mode", "", "Ingestion mode: annual, monthly or all (default: ingestion.mode)")
	annualFlag := fs.String("annual-column", "", "Annual value column: thirteenth or last (default: ingestion.annual_column)")
	concurrency := fs.Int("concurrency", 0, "Concurrent fetches (default: ingestion.concurrency)")
	migrateFirst := fs.Bool("migrate", false, "Apply schema migrations before ingesting")
	listCatalog := fs.Bool("list", false, "Print the catalog with observation counts and exit")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ingester [flags]\n\nLoads Met Office regional climate series into the store.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	ui.InitColors(*noColor)

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

	mode, err := models.ParseIngestionMode(cfg.Ingestion.Mode)
	if *modeFlag != "" {
		mode, err = models.ParseIngestionMode(*modeFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid mode: %v\n", err)
		os.Exit(2)
	}
	annualColumn, err := parser.ParseAnnualColumn(cfg.Ingestion.AnnualColumn)
	if *annualFlag != "" {
		annualColumn, err = parser.ParseAnnualColumn(*annualFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid annual column: %v\n", err)
		os.Exit(2)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("uk-weather-ingester", version, logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[INGESTER_START] Starting climate series ingestion", logging.Fields{
		"version":  version,
		"mode":     string(mode),
		"data_dir": *dataDir,
		"file":     *file,
		"url":      *url,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("uk_weather_ingester")

	// Initialize database
	db, err := database.NewDB(cfg.DBConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if *migrateFirst {
		if err := db.Migrate(ctx, database.MigrateUp); err != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Failed to migrate database", logging.Fields{}, err)
		}
	}

	// Initialize repository and services
	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)
	clock := clockwork.NewRealClock()
	catalogService := services.NewCatalogService(weatherRepo, logger, metricsCollector, clock)

	seriesFetcher := fetcher.NewHTTPFetcher(fetcher.Config{
		Timeout:           cfg.Ingestion.FetchTimeout,
		UserAgent:         cfg.Ingestion.UserAgent,
		MaxBodyBytes:      cfg.Ingestion.MaxBodyBytes,
		RequestsPerSecond: cfg.Ingestion.RequestsPerSecond,
	}, logger, metricsCollector)

	ingestionService := services.NewIngestionService(weatherRepo, catalogService, seriesFetcher, services.IngestionOptions{
		BaseURL:           cfg.Ingestion.BaseURL,
		AllowedHosts:      cfg.Ingestion.AllowedHosts,
		Placeholder:       cfg.Ingestion.Placeholder,
		DefaultMode:       mode,
		AnnualColumn:      annualColumn,
		BatchSize:         cfg.Ingestion.BatchSize,
		Concurrency:       cfg.Ingestion.Concurrency,
		AutoCreateCatalog: cfg.Ingestion.AutoCreateCatalog,
	}, logger, metricsCollector, clock)

	if *listCatalog {
		if err := printCatalog(ctx, catalogService); err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	seed, err := catalogService.Seed(ctx)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to seed catalog", logging.Fields{}, err)
	}
	if seed.RegionsCreated+seed.ParametersCreated > 0 {
		ui.Infof("Seeded %d regions and %d parameters", seed.RegionsCreated, seed.ParametersCreated)
	}

	var failed bool
	switch {
	case *url != "":
		failed = runSingle(ingestionService.IngestURL(ctx, *url, "", "", mode))
	case *file != "":
		failed = runSingle(ingestionService.IngestFile(ctx, *file, mode))
	case *dataDir != "":
		failed = runDirectory(ingestionService.IngestDirectory(ctx, *dataDir, mode))
	default:
		failed = runRemote(ingestionService.IngestAll(ctx, codesOr(*regions, services.DefaultRegions), codesOr(*parameters, services.DefaultParameters), mode, *concurrency))
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion finished", logging.Fields{
		"failed": failed,
	})

	if failed {
		os.Exit(1)
	}
}

func codesOr(codes []string, defaults []services.CatalogEntry) []string {
	if len(codes) > 0 {
		return codes
	}
	out := make([]string, len(defaults))
	for i, entry := range defaults {
		out[i] = entry.Code
	}
	return out
}

func runSingle(result *services.IngestionResult, err error) bool {
	if err != nil {
		ui.Errorf("Ingestion failed: %v", err)
		return true
	}
	printResult(result)
	return false
}

func printResult(result *services.IngestionResult) {
	ui.Header(fmt.Sprintf("%s / %s", result.Region, result.Parameter))
	ui.Field("Source", result.URL)
	ui.Field("Mode", result.Mode)
	ui.Field("Readings parsed", result.ReadingsParsed)
	ui.Field("Records created", result.RecordsCreated)
	ui.Field("Records skipped", result.RecordsSkipped)
	ui.Field("Malformed values", result.MalformedValues)
	ui.Field("Duration", result.Duration.Round(time.Millisecond))
	if result.RecordsCreated > 0 {
		ui.Successf("Stored %d new observations", result.RecordsCreated)
	} else {
		ui.Warningf("No new observations")
	}
}

func runDirectory(result *services.DirectoryResult, err error) bool {
	if err != nil {
		ui.Errorf("Directory ingestion failed: %v", err)
		return true
	}

	ui.Header("Directory ingestion")
	ui.Field("Files", result.TotalFiles)
	ui.Field("Records created", result.RecordsCreated)
	ui.Field("Records skipped", result.RecordsSkipped)
	ui.Field("Duration", result.Duration.Round(time.Millisecond))

	if len(result.Errors) > 0 {
		ui.Errorf("%d files failed", len(result.Errors))
		ui.List(result.Errors, 10)
		return true
	}
	ui.Successf("Ingested %d files", len(result.Results))
	return false
}

func runRemote(result *services.BatchResult, err error) bool {
	if err != nil {
		ui.Errorf("Ingestion aborted: %v", err)
		return true
	}

	ui.Header("Remote ingestion")
	ui.Field("Series", len(result.Pairs))
	ui.Field("Records created", result.RecordsCreated)
	ui.Field("Records skipped", result.RecordsSkipped)
	ui.Field("Duration", result.Duration.Round(time.Millisecond))

	if result.Failed > 0 {
		failures := make([]string, 0, result.Failed)
		for _, pair := range result.Pairs {
			if pair.Err != nil {
				failures = append(failures, fmt.Sprintf("%s/%s: %v", pair.Region, pair.Parameter, pair.Err))
			}
		}
		ui.Errorf("%d of %d series failed", result.Failed, len(result.Pairs))
		ui.List(failures, 10)
		return true
	}
	ui.Successf("Ingested %d series", len(result.Pairs))
	return false
}

func printCatalog(ctx context.Context, catalog *services.CatalogService) error {
	regions, _, err := catalog.ListRegions(ctx, repository.CatalogFilter{Limit: services.MaxPageSize})
	if err != nil {
		return fmt.Errorf("failed to list regions: %w", err)
	}
	parameters, _, err := catalog.ListParameters(ctx, repository.CatalogFilter{Limit: services.MaxPageSize})
	if err != nil {
		return fmt.Errorf("failed to list parameters: %w", err)
	}

	ui.Header("Regions")
	for _, r := range regions {
		ui.Field(r.Code, fmt.Sprintf("%-28s %d observations", r.Name, r.DataCount))
	}
	fmt.Fprintln(ui.Output)
	ui.Header("Parameters")
	for _, p := range parameters {
		ui.Field(p.Code, fmt.Sprintf("%-28s %-6s %d observations", p.Name, p.Unit, p.DataCount))
	}
	return nil
}
