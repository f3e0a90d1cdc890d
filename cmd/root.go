package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"milda_bot/config"
	"milda_bot/lockfile"
	"milda_bot/monitoring"
	"milda_bot/services"

	"github.com/spf13/cobra"
)

var (
	envFiles []string
	jsonLogs bool
)

var rootCmd = &cobra.Command{
	Use:           "milda-bot",
	Short:         "Telegram support bot for the MILDA distribution campaign",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reconcileCmd)
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	lock, err := lockfile.Acquire(cfg.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release lock file", "path", lock.Path(), "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ready atomic.Bool
	if cfg.MetricsAddr != "" {
		srv := monitoring.NewServer(cfg.MetricsAddr, ready.Load)
		go func() {
			logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return services.Run(ctx, cfg, logger, &ready)
}
