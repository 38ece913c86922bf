package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"choreboard/internal/amqp"
	"choreboard/internal/backend"
	"choreboard/internal/cli"
	"choreboard/internal/config"
	apphttp "choreboard/internal/http"
	"choreboard/internal/metrics"
	"choreboard/internal/notify"
	"choreboard/internal/notify/telegram"
	"choreboard/internal/reminder"
	"choreboard/internal/services"
	"choreboard/internal/store"
	"choreboard/internal/suggest"
)

func main() {
	cfg, logger := cli.Bootstrap()
	if err := run(cfg, logger); err != nil {
		logger.Error("choreboard stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	m := metrics.New()

	// Missing credentials start the board in local-only mode instead of
	// failing.
	var (
		gateway        store.Gateway
		disabledReason string
	)
	if missing := cfg.Missing(); len(missing) > 0 {
		disabledReason = services.MissingConfigMessage(missing)
		logger.Warn("Persistence disabled", "missing", missing, "backend", cfg.DataBackend)
	} else {
		backendCfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
		if err != nil {
			return err
		}
		if res.Cleanup != nil {
			defer func() {
				if err := res.Cleanup(); err != nil {
					logger.Warn("Backend cleanup failed", "error", err)
				}
			}()
		}
		gateway = res.Backend
	}

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err := client.Connect(); err != nil {
			// The client reconnects lazily on the next publish.
			logger.Warn("AMQP broker unreachable at startup", "error", err)
		}
		defer client.Close()
		publisher = client
	}

	notifier := newNotifier(cfg, logger)

	boardCfg := services.BoardConfig{
		SaveDebounce:   cfg.SaveDebounce,
		FinalizeDelay:  cfg.ArchiveFinalizeDelay,
		DisabledReason: disabledReason,
		OnReward:       notify.RewardForwarder(notifier, 10*time.Second, logger),
	}
	board := services.NewBoardService(gateway, publisher, m, boardCfg, logger)
	defer board.Close()

	if err := board.Load(ctx); err != nil {
		// The status carries the error; the board stays usable locally.
		logger.Error("Initial board load failed", "error", err)
	}

	var pinger store.Pinger
	if p, ok := gateway.(store.Pinger); ok {
		pinger = p
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Board:     board,
		Suggester: suggest.New(cfg.AnthropicAPIKey, cfg.SuggestModel, m, logger),
		Pinger:    pinger,
		Metrics:   m,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting choreboard server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		board.Flush()
		return nil
	})

	if cfg.ReminderSchedule != "" {
		sched, err := reminder.New(cfg.ReminderSchedule, board, notifier, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if !cfg.TelegramEnabled() {
		logger.Info("Telegram not configured, notifications go to the log")
		return notify.NewLogNotifier(logger)
	}
	n, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.Warn("Telegram unavailable, notifications go to the log", "error", err)
		return notify.NewLogNotifier(logger)
	}
	return n
}
