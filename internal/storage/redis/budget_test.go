package redis

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
)

func TestKey(t *testing.T) {
	if Key("alice") != "monthly_budget:alice" {
		t.Fatalf("unexpected key %q", Key("alice"))
	}
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestBudgetStoreIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	ctx := context.Background()
	store, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"), db)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	owner := "spendwise-test-owner"
	_ = store.ClearBudget(ctx, owner)

	if _, ok, err := store.GetBudget(ctx, owner); err != nil || ok {
		t.Fatalf("expected absent budget, ok=%v err=%v", ok, err)
	}
	if err := store.SetBudget(ctx, owner, decimal.RequireFromString("750.25")); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := store.GetBudget(ctx, owner)
	if err != nil || !ok || !v.Equal(decimal.RequireFromString("750.25")) {
		t.Fatalf("get: %s %v %v", v, ok, err)
	}
	if err := store.ClearBudget(ctx, owner); err != nil {
		t.Fatalf("clear: %v", err)
	}
}
