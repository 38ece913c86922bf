package backend

import (
	"context"
	"fmt"
	"log/slog"

	"choreboard/internal/storage"
	"choreboard/internal/store/jsonbin"
	"choreboard/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case JSONBinBackend:
		return f.createJSONBinBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createJSONBinBackend(config Config) (*BackendResult, error) {
	cfg := jsonbin.DefaultConfig(config.JSONBinBinID, config.JSONBinAPIKey)
	if config.JSONBinBaseURL != "" {
		cfg.BaseURL = config.JSONBinBaseURL
	}
	client, err := jsonbin.New(cfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JSONBin client: %w", err)
	}

	f.logger.Info("Initialized JSONBin backend", "base_url", cfg.BaseURL)

	return &BackendResult{Backend: client}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Initialized memory backend, board changes are lost on restart")

	return &BackendResult{Backend: memory.New()}, nil
}
