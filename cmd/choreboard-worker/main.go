package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"choreboard/internal/amqp"
	"choreboard/internal/backend"
	"choreboard/internal/cli"
	"choreboard/internal/config"
	"choreboard/internal/sheets"
	gsheet "choreboard/internal/sheets/google"
	mem "choreboard/internal/sheets/memory"
	"choreboard/internal/storage"
	"choreboard/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting choreboard-worker")

	if err := run(cfg, logger); err != nil {
		logger.Error("choreboard-worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required for the worker")
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	// The ledger remembers exported archive rows so redelivered messages are not
	// appended twice.
	ledger, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		return err
	}
	defer ledger.Close()

	var writer sheets.ArchiveWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			return err
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = mem.New()
		logger.Warn("Google Sheets disabled, archived weeks are kept in memory only")
	}

	exportWorker := worker.NewExportWorker(ledger, writer, logger)

	// Export archive entries that were written while the worker was down.
	if missing := cfg.Missing(); len(missing) == 0 {
		if err := startupCheck(ctx, cfg, logger, exportWorker); err != nil {
			logger.Error("Failed startup export check", "error", err)
			// Don't exit - continue with normal operation
		}
	} else {
		logger.Info("Skipping startup export check, board persistence not configured", "missing", missing)
	}

	client := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	defer client.Close()

	if err := client.Consume(ctx, exportWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func startupCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger, w *worker.ExportWorker) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}
	return w.StartupExportCheck(ctx, res.Backend)
}
