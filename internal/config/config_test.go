package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so a developer's .env or shell
// does not leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_BACKEND", "SQLITE_PATH", "DATABASE_URL", "GEMINI_API_KEY", "GEMINI_MODEL", "LOG_LEVEL", "LOG_FORMAT",
		"PRIMARY_CURRENCY", "SECONDARY_CURRENCY", "RATE_BASE_CURRENCY", "RATE_API_URL",
		"RATE_TIMEOUT", "RATE_REFRESH_INTERVAL", "RATE_TTL", "TIMEZONE",
		"OTEL_EXPORTER", "OTEL_SERVICE_NAME",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, BackendPostgres, cfg.DataBackend)
		require.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		require.Equal(t, "data/ledger.db", cfg.SQLitePath)
		require.Equal(t, "PHP", cfg.PrimaryCurrency)
		require.Empty(t, cfg.SecondaryCurrency)
		require.Nil(t, cfg.SecondaryCurrencyPtr())
		require.Equal(t, "EUR", cfg.RateBaseCurrency)
		require.Equal(t, "https://api.frankfurter.app", cfg.RateAPIURL)
		require.Equal(t, 5*time.Second, cfg.RateTimeout)
		require.Equal(t, time.Hour, cfg.RateRefreshInterval)
		require.Equal(t, 6*time.Hour, cfg.RateTTL)
		require.Equal(t, "Asia/Manila", cfg.Timezone)
		require.Equal(t, ExporterNone, cfg.TelemetryExporter)
		require.Equal(t, "ledger-core", cfg.ServiceName)
	})

	t.Run("loads currencies and rate settings", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PRIMARY_CURRENCY", " sgd ")
		t.Setenv("SECONDARY_CURRENCY", "usd")
		t.Setenv("RATE_API_URL", "https://rates.example.com/")
		t.Setenv("RATE_TIMEOUT", "3s")
		t.Setenv("RATE_REFRESH_INTERVAL", "15m")
		t.Setenv("RATE_TTL", "2h")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "SGD", cfg.PrimaryCurrency)
		require.Equal(t, "USD", *cfg.SecondaryCurrencyPtr())
		require.Equal(t, "https://rates.example.com", cfg.RateAPIURL)
		require.Equal(t, 3*time.Second, cfg.RateTimeout)
		require.Equal(t, 15*time.Minute, cfg.RateRefreshInterval)
		require.Equal(t, 2*time.Hour, cfg.RateTTL)
	})

	t.Run("invalid durations fall back to defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RATE_TIMEOUT", "invalid")
		t.Setenv("RATE_TTL", "-1h")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, 5*time.Second, cfg.RateTimeout)
		require.Equal(t, 6*time.Hour, cfg.RateTTL)
	})

	t.Run("timezone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TIMEZONE", "America/New_York")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "America/New_York", cfg.Timezone)
		require.Equal(t, "America/New_York", cfg.Location().String())

		t.Setenv("TIMEZONE", "Mars/Olympus")
		cfg, err = Load()
		require.NoError(t, err)
		require.Equal(t, "Asia/Manila", cfg.Timezone)
	})

	t.Run("sqlite backend needs no database url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "")
		t.Setenv("DATA_BACKEND", "SQLite")
		t.Setenv("SQLITE_PATH", "/var/lib/ledger/ledger.db")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, BackendSQLite, cfg.DataBackend)
		require.Equal(t, "/var/lib/ledger/ledger.db", cfg.SQLitePath)
	})

	t.Run("telemetry", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OTEL_EXPORTER", "OTLP-HTTP")
		t.Setenv("OTEL_SERVICE_NAME", "ledger-test")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, ExporterOTLPHTTP, cfg.TelemetryExporter)
		require.Equal(t, "ledger-test", cfg.ServiceName)
	})

	t.Run("loads Gemini settings", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "test-gemini-key")
		t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "test-gemini-key", cfg.GeminiAPIKey)
		require.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{
			name:    "missing database url",
			env:     map[string]string{"DATABASE_URL": ""},
			wantMsg: "DATABASE_URL is required",
		},
		{
			name:    "unsupported primary currency",
			env:     map[string]string{"PRIMARY_CURRENCY": "XYZ"},
			wantMsg: `PRIMARY_CURRENCY "XYZ" is not a supported currency`,
		},
		{
			name:    "secondary equals primary",
			env:     map[string]string{"PRIMARY_CURRENCY": "PHP", "SECONDARY_CURRENCY": "php"},
			wantMsg: "SECONDARY_CURRENCY must differ",
		},
		{
			name:    "malformed base currency",
			env:     map[string]string{"RATE_BASE_CURRENCY": "EURO"},
			wantMsg: "must be a 3-letter ISO code",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"DATA_BACKEND": "mongo"},
			wantMsg: `DATA_BACKEND "mongo" must be postgres or sqlite`,
		},
		{
			name:    "unknown exporter",
			env:     map[string]string{"OTEL_EXPORTER": "zipkin"},
			wantMsg: `OTEL_EXPORTER "zipkin"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.Error(t, err)
			require.Nil(t, cfg)
			require.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("reports every problem at once", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "")
		t.Setenv("PRIMARY_CURRENCY", "XYZ")

		_, err := Load()
		require.ErrorContains(t, err, "DATABASE_URL is required")
		require.ErrorContains(t, err, "PRIMARY_CURRENCY")
	})
}
