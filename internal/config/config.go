package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/parser"
	"uk-weather-platform/pkg/database"
)

// EnvPrefix prefixes every environment override, e.g. WEATHER_DATABASE_HOST
const EnvPrefix = "WEATHER"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Query     QueryConfig     `mapstructure:"query"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SeedCatalog     bool          `mapstructure:"seed_catalog"`
}

// DatabaseConfig configures the store
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Service string `mapstructure:"service"`
}

// IngestionConfig configures fetching and loading series
type IngestionConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// AllowedHosts limits which hosts a caller supplied URL may point at.
	// Empty means the host of BaseURL only; "*" allows any host.
	AllowedHosts      []string      `mapstructure:"allowed_hosts"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Placeholder       string        `mapstructure:"placeholder"`
	Mode              string        `mapstructure:"mode"`
	AnnualColumn      string        `mapstructure:"annual_column"`
	BatchSize         int           `mapstructure:"batch_size"`
	Concurrency       int           `mapstructure:"concurrency"`
	AutoCreateCatalog bool          `mapstructure:"auto_create_catalog"`
}

// QueryConfig configures listing defaults
type QueryConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// LoadConfig reads configuration from defaults, an optional config.yaml in the
// working directory, a .env file and WEATHER_* environment variables, in
// increasing order of precedence.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.auto_migrate", false)
	v.SetDefault("server.seed_catalog", true)

	v.SetDefault("database.driver", database.DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "weather")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "weather")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "weather.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.service", "uk-weather-api")

	v.SetDefault("ingestion.base_url", "https://www.metoffice.gov.uk/pub/data/weather/uk/climate/datasets")
	v.SetDefault("ingestion.fetch_timeout", 30*time.Second)
	v.SetDefault("ingestion.user_agent", "uk-weather-platform/1.0")
	v.SetDefault("ingestion.max_body_bytes", 8<<20)
	v.SetDefault("ingestion.requests_per_second", 2.0)
	v.SetDefault("ingestion.placeholder", "---")
	v.SetDefault("ingestion.mode", string(models.ModeAnnual))
	v.SetDefault("ingestion.annual_column", string(parser.AnnualThirteenth))
	v.SetDefault("ingestion.allowed_hosts", []string{})
	v.SetDefault("ingestion.batch_size", 500)
	v.SetDefault("ingestion.concurrency", 4)
	v.SetDefault("ingestion.auto_create_catalog", true)

	v.SetDefault("query.default_page_size", 25)
	v.SetDefault("query.max_page_size", 1000)
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required for postgres"))
		}
		if c.Database.Database == "" {
			errs = append(errs, errors.New("database.name is required for postgres"))
		}
	case database.DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q",
			database.DriverPostgres, database.DriverSQLite, c.Database.Driver))
	}

	if _, err := models.ParseIngestionMode(c.Ingestion.Mode); err != nil {
		errs = append(errs, fmt.Errorf("ingestion.mode: %w", err))
	}
	if _, err := parser.ParseAnnualColumn(c.Ingestion.AnnualColumn); err != nil {
		errs = append(errs, fmt.Errorf("ingestion.annual_column: %w", err))
	}
	if strings.TrimSpace(c.Ingestion.Placeholder) == "" {
		errs = append(errs, errors.New("ingestion.placeholder must not be blank"))
	}
	if c.Ingestion.BatchSize <= 0 {
		errs = append(errs, errors.New("ingestion.batch_size must be positive"))
	}
	if c.Ingestion.Concurrency <= 0 {
		errs = append(errs, errors.New("ingestion.concurrency must be positive"))
	}

	if c.Query.DefaultPageSize <= 0 {
		errs = append(errs, errors.New("query.default_page_size must be positive"))
	}
	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		errs = append(errs, errors.New("query.max_page_size must be at least query.default_page_size"))
	}

	return errors.Join(errs...)
}

// DBConfig converts the database section into a database.Config
func (c *Config) DBConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}
