// Package redis keeps per-owner budget figures in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const keyPrefix = "monthly_budget:"

// BudgetStore implements budget.Store on plain string keys.
type BudgetStore struct {
	client *redis.Client
}

// Connect dials Redis and verifies it answers a PING.
func Connect(ctx context.Context, addr, password string, db int) (*BudgetStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &BudgetStore{client: client}, nil
}

func NewBudgetStore(client *redis.Client) *BudgetStore {
	return &BudgetStore{client: client}
}

// Key is the Redis key holding owner's budget.
func Key(owner string) string {
	return keyPrefix + owner
}

func (s *BudgetStore) GetBudget(ctx context.Context, owner string) (decimal.Decimal, bool, error) {
	raw, err := s.client.Get(ctx, Key(owner)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis get budget: %w", err)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse budget %q: %w", raw, err)
	}
	return amount, true, nil
}

func (s *BudgetStore) SetBudget(ctx context.Context, owner string, amount decimal.Decimal) error {
	if err := s.client.Set(ctx, Key(owner), amount.String(), 0).Err(); err != nil {
		return fmt.Errorf("redis set budget: %w", err)
	}
	return nil
}

func (s *BudgetStore) ClearBudget(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, Key(owner)).Err(); err != nil {
		return fmt.Errorf("redis clear budget: %w", err)
	}
	return nil
}

func (s *BudgetStore) Close() error {
	return s.client.Close()
}
