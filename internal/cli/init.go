// Package cli provides common CLI initialization utilities shared by
// cmd/choreboard and cmd/choreboard-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"choreboard/internal/config"
	applog "choreboard/internal/log"
)

// SetupLogger initializes structured logging from LOG_LEVEL and LOG_FORMAT.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(cfg *config.Config) *slog.Logger {
	level, format := slog.LevelInfo, "text"
	if cfg != nil {
		level = applog.ParseLevel(cfg.LogLevel)
		format = cfg.LogFormat
	}
	logger := slog.New(applog.NewHandler(format, level, os.Stdout))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates its structure.
// Missing credentials are not an error here.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap runs the shared startup sequence: .env, config, logger. A
// structural config error is printed and exits the process.
func Bootstrap() (*config.Config, *slog.Logger) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		// The logger depends on the config; fall back to stderr.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg, SetupLogger(cfg)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}
