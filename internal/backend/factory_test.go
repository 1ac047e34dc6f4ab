package backend

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/config"
	"spendwise/internal/core"
	"spendwise/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		app     *config.Config
		want    Config
		wantErr string
	}{
		{
			name: "sqlite with store budgets",
			app:  &config.Config{DataBackend: "sqlite", SQLiteDBPath: "db.sqlite", BudgetBackend: "store"},
			want: Config{Type: SQLiteBackend, SQLiteDBPath: "db.sqlite", Budgets: StoreBudgets},
		},
		{
			name: "empty budget backend defaults to store",
			app:  &config.Config{DataBackend: "memory"},
			want: Config{Type: MemoryBackend, Budgets: StoreBudgets},
		},
		{
			name: "redis budgets",
			app:  &config.Config{DataBackend: "memory", BudgetBackend: "redis", RedisAddr: "localhost:6379", RedisDB: 2},
			want: Config{Type: MemoryBackend, Budgets: RedisBudgets, RedisAddr: "localhost:6379", RedisDB: 2},
		},
		{name: "nil", app: nil, wantErr: "app config is nil"},
		{name: "unknown type", app: &config.Config{DataBackend: "sheets"}, wantErr: "invalid backend type"},
		{name: "redis without address", app: &config.Config{DataBackend: "memory", BudgetBackend: "redis"}, wantErr: "redis address is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.app)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	result, err := NewFactory(log.Discard()).CreateBackend(t.Context(), Config{Type: MemoryBackend, Budgets: StoreBudgets})
	if err != nil {
		t.Fatal(err)
	}
	defer result.Close()

	ctx := t.Context()
	if err := result.Budgets.SetBudget(ctx, "alice", decimal.NewFromInt(500)); err != nil {
		t.Fatal(err)
	}
	amount, ok, err := result.Budgets.GetBudget(ctx, "alice")
	if err != nil || !ok || !amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected budget %v %v %v", amount, ok, err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spendwise.db")
	result, err := NewFactory(log.Discard()).CreateBackend(t.Context(), Config{Type: SQLiteBackend, SQLiteDBPath: path, Budgets: StoreBudgets})
	if err != nil {
		t.Fatal(err)
	}
	defer result.Close()

	ctx := t.Context()
	if _, err := result.Ledger.Insert(ctx, core.Transaction{
		OwnerID:    "alice",
		Amount:     decimal.NewFromInt(12),
		Kind:       core.Expense,
		Category:   "Food",
		Wallet:     "Cash",
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}
	owners, err := result.Ledger.Owners(ctx)
	if err != nil || len(owners) != 1 || owners[0] != "alice" {
		t.Fatalf("unexpected owners %v %v", owners, err)
	}
}

func TestCreateBackendRedisUnreachable(t *testing.T) {
	cfg := Config{Type: MemoryBackend, Budgets: RedisBudgets, RedisAddr: "127.0.0.1:1"}
	if _, err := NewFactory(log.Discard()).CreateBackend(t.Context(), cfg); err == nil {
		t.Fatal("expected an error for an unreachable redis")
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(t.Context(), Config{Type: "sheets"}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestChainRunsBothInReverse(t *testing.T) {
	var order []string
	first := func() error { order = append(order, "first"); return nil }
	second := func() error { order = append(order, "second"); return nil }
	if err := chain(first, second)(); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "second,first" {
		t.Fatalf("unexpected order %v", order)
	}
}
