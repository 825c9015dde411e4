package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rateKit/internal/app/runtime"
	"rateKit/internal/infrastructure/config"
	"rateKit/internal/infrastructure/logging"
	sqlitestorage "rateKit/internal/infrastructure/persistence/sqlite"
)

const version = "v0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr, dbPath string

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if addr != "" {
			cfg.Addr = addr
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		return cfg, nil
	}

	root := &cobra.Command{
		Use:          "ratekit",
		Short:        "Social account ingestion and advertising rate engine",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path (overrides DB_PATH)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket feed and token refresher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run, err := runtime.Build(ctx, cfg, runtime.Options{})
			if err != nil {
				return err
			}
			defer run.Close()

			log.Info().Str("version", version).Msg("ratekit starting")
			return run.Serve(ctx)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := sqlitestorage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info().Str("path", cfg.DBPath).Msg("migrations applied")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "refresh-tokens",
		Short: "Renew every credential close to expiry and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			run, err := runtime.Build(cmd.Context(), cfg, runtime.Options{})
			if err != nil {
				return err
			}
			defer run.Close()

			if err := run.RefreshTokens(cmd.Context()); err != nil {
				return fmt.Errorf("refresh-tokens: %w", err)
			}
			log.Info().Msg("token sweep complete")
			return nil
		},
	})

	root.SetContext(context.Background())
	return root
}
