// Package main is the entry point for the ledger command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/yelinaung/ledger-core/internal/app"
	"gitlab.com/yelinaung/ledger-core/internal/config"
	"gitlab.com/yelinaung/ledger-core/internal/database"
	"gitlab.com/yelinaung/ledger-core/internal/exchange"
	"gitlab.com/yelinaung/ledger-core/internal/gemini"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/repository"
	"gitlab.com/yelinaung/ledger-core/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")
		cancel()
	}()

	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Command failed")
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Personal finance ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(),
		categoriesCmd(),
		txCmd(),
		budgetCmd(),
		ratesCmd(),
		chartCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ledger %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// env is everything a command needs once configuration is loaded.
type env struct {
	cfg *config.Config
	app *app.App
}

// session loads configuration, connects to the database and builds the app.
// The returned func releases everything.
func session(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger.SetFormat(cfg.LogFormat)
	logger.SetLevel(cfg.LogLevel)
	logger.InitHashSalt()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.TelemetryExporter, cfg.ServiceName, os.Stdout)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		_ = shutdownTelemetry(context.Background())
		return nil, nil, err
	}

	closeAll := func() {
		closeStore()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}

	var analyzer app.ReceiptAnalyzer
	if cfg.GeminiAPIKey != "" {
		var opts []gemini.Option
		if cfg.GeminiModel != "" {
			opts = append(opts, gemini.WithModel(cfg.GeminiModel))
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, opts...)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		analyzer = client
	}

	a, err := app.New(ctx,
		store,
		exchange.NewFrankfurterClient(cfg.RateAPIURL, cfg.RateTimeout),
		app.Options{
			PrimaryCurrency:   cfg.PrimaryCurrency,
			SecondaryCurrency: cfg.SecondaryCurrencyPtr(),
			RateBase:          cfg.RateBaseCurrency,
			RateTTL:           cfg.RateTTL,
			RefreshInterval:   cfg.RateRefreshInterval,
			Analyzer:          analyzer,
		})
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	return &env{cfg: cfg, app: a}, closeAll, nil
}

// withSession runs fn inside a session.
func withSession(fn func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, done, err := session(ctx)
		if err != nil {
			return err
		}
		defer done()
		return fn(ctx, e, cmd, args)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed the reserved categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.SetFormat(cfg.LogFormat)
			logger.SetLevel(cfg.LogLevel)

			// Opening a store applies its migrations.
			_, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			closeStore()
			logger.Log.Info().Msg("Database initialized successfully")
			return nil
		},
	}
}

// openStore opens the configured persistence backend and brings its schema
// up to date.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.DataBackend == config.BackendSQLite {
		store, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := database.SeedCategories(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repository.NewPostgresStore(pool), pool.Close, nil
}
