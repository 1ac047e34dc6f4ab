package backend

import (
	"context"
	"errors"
	"fmt"

	"spendwise/internal/log"
	"spendwise/internal/storage"
	"spendwise/internal/storage/memory"
	redisstore "spendwise/internal/storage/redis"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the transaction backend and then the budget store.
// If the budget store cannot be opened the transaction backend is closed
// again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var result *BackendResult
	var err error
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.Budgets == RedisBudgets {
		budgets, err := redisstore.Connect(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			if cerr := result.Close(); cerr != nil {
				f.logger.Warn("Failed to close backend after redis error", log.FieldError, cerr)
			}
			return nil, fmt.Errorf("failed to initialize redis budget store: %w", err)
		}
		f.logger.Info("Budgets stored in redis", "addr", config.RedisAddr, "db", config.RedisDB)
		result.Budgets = budgets
		result.Cleanup = chain(result.Cleanup, budgets.Close)
	}

	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Ledger:  repo,
		Budgets: repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	store := memory.New()

	f.logger.Warn("Initialized memory backend; data is lost on restart")

	return &BackendResult{
		Ledger:  store,
		Budgets: store,
	}
}

func chain(first, second CleanupFunc) CleanupFunc {
	return func() error {
		var errs []error
		if second != nil {
			errs = append(errs, second())
		}
		if first != nil {
			errs = append(errs, first())
		}
		return errors.Join(errs...)
	}
}
