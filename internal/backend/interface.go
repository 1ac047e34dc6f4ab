package backend

import (
	"context"

	"spendwise/internal/budget"
	"spendwise/internal/storage"
)

// Ledger is everything the services need from the transaction backend.
type Ledger interface {
	storage.TransactionStore
	storage.OwnerLister
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened stores and the function releasing them.
type BackendResult struct {
	Ledger  Ledger
	Budgets budget.Store
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type         BackendType
	SQLiteDBPath string

	Budgets       BudgetBackendType
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// BackendType names where transactions are kept.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

func (bt BackendType) String() string {
	return string(bt)
}

// BudgetBackendType names where budgets are kept. StoreBudgets uses the
// transaction backend itself.
type BudgetBackendType string

const (
	StoreBudgets BudgetBackendType = "store"
	RedisBudgets BudgetBackendType = "redis"
)

func (bt BudgetBackendType) IsValid() bool {
	return bt == StoreBudgets || bt == RedisBudgets
}
