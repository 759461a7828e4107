package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uk-weather-platform/internal/config"
	"uk-weather-platform/internal/fetcher"
	"uk-weather-platform/internal/handlers"
	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/parser"
	"uk-weather-platform/internal/repository"
	"uk-weather-platform/internal/services"
	"uk-weather-platform/pkg/database"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
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

	// Initialize logger
	logger := logging.NewStructuredLogger(cfg.Logging.Service, version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting UK weather API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"db_name":     cfg.Database.Database,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("uk_weather")

	// Initialize database
	db, err := database.NewDB(cfg.DBConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if cfg.Server.AutoMigrate {
		if err := db.Migrate(ctx, database.MigrateUp); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to migrate database", logging.Fields{}, err)
		}
	}

	// Initialize repository
	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)

	// Initialize services
	clock := clockwork.NewRealClock()
	catalogService := services.NewCatalogService(weatherRepo, logger, metricsCollector, clock)
	if cfg.Server.SeedCatalog {
		if _, err := catalogService.Seed(ctx); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to seed catalog", logging.Fields{}, err)
		}
	}

	mode, err := models.ParseIngestionMode(cfg.Ingestion.Mode)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid ingestion mode", logging.Fields{}, err)
	}
	annualColumn, err := parser.ParseAnnualColumn(cfg.Ingestion.AnnualColumn)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid annual column", logging.Fields{}, err)
	}

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

	weatherService := services.NewWeatherService(weatherRepo, services.QueryOptions{
		DefaultPageSize: cfg.Query.DefaultPageSize,
		MaxPageSize:     cfg.Query.MaxPageSize,
	}, logger, metricsCollector)
	statsService := services.NewStatisticsService(weatherRepo, logger, metricsCollector)

	// Initialize handlers
	weatherHandler := handlers.NewWeatherHandler(
		weatherService,
		statsService,
		catalogService,
		ingestionService,
		weatherRepo,
		logger,
		metricsCollector,
	)

	// Setup router
	router := handlers.NewRouter(weatherHandler)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.CORS(cfg.Server.CORSOrigins)(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
