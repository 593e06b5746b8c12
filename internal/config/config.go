// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gitlab.com/yelinaung/ledger-core/internal/exchange"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

const (
	defaultRateAPIURL          = "https://api.frankfurter.app"
	defaultRateBaseCurrency    = "EUR"
	defaultRateTimeout         = 5 * time.Second
	defaultRateRefreshInterval = time.Hour
	defaultRateTTL             = 6 * time.Hour
	defaultTimezone            = "Asia/Manila"
	defaultServiceName         = "ledger-core"
	defaultSQLitePath          = "data/ledger.db"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Telemetry exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config holds all configuration for the application.
type Config struct {
	DataBackend  string
	DatabaseURL  string
	SQLitePath   string
	GeminiAPIKey string
	GeminiModel  string
	LogLevel     string
	LogFormat    string

	PrimaryCurrency   string
	SecondaryCurrency string

	RateBaseCurrency    string
	RateAPIURL          string
	RateTimeout         time.Duration
	RateRefreshInterval time.Duration
	RateTTL             time.Duration

	Timezone string

	TelemetryExporter string
	ServiceName       string
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataBackend:         BackendPostgres,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SQLitePath:          defaultSQLitePath,
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         os.Getenv("GEMINI_MODEL"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		LogFormat:           os.Getenv("LOG_FORMAT"),
		PrimaryCurrency:     currencyOr(os.Getenv("PRIMARY_CURRENCY"), models.DefaultCurrency),
		SecondaryCurrency:   currencyOr(os.Getenv("SECONDARY_CURRENCY"), ""),
		RateBaseCurrency:    currencyOr(os.Getenv("RATE_BASE_CURRENCY"), defaultRateBaseCurrency),
		RateAPIURL:          defaultRateAPIURL,
		RateTimeout:         durationOr(os.Getenv("RATE_TIMEOUT"), defaultRateTimeout),
		RateRefreshInterval: durationOr(os.Getenv("RATE_REFRESH_INTERVAL"), defaultRateRefreshInterval),
		RateTTL:             durationOr(os.Getenv("RATE_TTL"), defaultRateTTL),
		Timezone:            defaultTimezone,
		TelemetryExporter:   ExporterNone,
		ServiceName:         defaultServiceName,
	}

	if backend := strings.ToLower(strings.TrimSpace(os.Getenv("DATA_BACKEND"))); backend != "" {
		cfg.DataBackend = backend
	}
	if path := strings.TrimSpace(os.Getenv("SQLITE_PATH")); path != "" {
		cfg.SQLitePath = path
	}
	if u := strings.TrimSpace(os.Getenv("RATE_API_URL")); u != "" {
		cfg.RateAPIURL = strings.TrimRight(u, "/")
	}
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			cfg.Timezone = tz
		}
	}
	if exp := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER"))); exp != "" {
		cfg.TelemetryExporter = exp
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		cfg.ServiceName = name
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SecondaryCurrencyPtr returns the secondary currency, or nil when unset.
func (c *Config) SecondaryCurrencyPtr() *string {
	if c.SecondaryCurrency == "" {
		return nil
	}
	s := c.SecondaryCurrency
	return &s
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	switch c.DataBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required")
		}
	case BackendSQLite:
	default:
		errs = append(errs, fmt.Sprintf("DATA_BACKEND %q must be postgres or sqlite", c.DataBackend))
	}

	for _, v := range []struct{ name, code string }{
		{"PRIMARY_CURRENCY", c.PrimaryCurrency},
		{"SECONDARY_CURRENCY", c.SecondaryCurrency},
		{"RATE_BASE_CURRENCY", c.RateBaseCurrency},
	} {
		if v.code == "" {
			continue
		}
		if _, ok := models.SupportedCurrencies[v.code]; !ok && v.name != "RATE_BASE_CURRENCY" {
			errs = append(errs, fmt.Sprintf("%s %q is not a supported currency", v.name, v.code))
		}
		if !exchange.IsCurrencyCode(v.code) {
			errs = append(errs, fmt.Sprintf("%s %q must be a 3-letter ISO code", v.name, v.code))
		}
	}

	if c.SecondaryCurrency != "" && c.SecondaryCurrency == c.PrimaryCurrency {
		errs = append(errs, "SECONDARY_CURRENCY must differ from PRIMARY_CURRENCY")
	}

	switch c.TelemetryExporter {
	case ExporterNone, ExporterStdout, ExporterOTLPHTTP, ExporterOTLPGRPC:
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER %q must be one of none, stdout, otlp-http, otlp-grpc", c.TelemetryExporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func currencyOr(value, fallback string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
