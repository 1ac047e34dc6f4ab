package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

// Store keeps transactions and budgets in process memory.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]core.Transaction
	budgets map[string]decimal.Decimal
}

func New() *Store {
	return &Store{
		items:   make(map[int64]core.Transaction),
		budgets: make(map[string]decimal.Decimal),
	}
}

// NewWithTransactions seeds the store, assigning fresh ids.
func NewWithTransactions(txs []core.Transaction) *Store {
	s := New()
	for _, t := range txs {
		s.nextID++
		t.ID = s.nextID
		s.items[t.ID] = t.Normalized()
	}
	return s
}

func (s *Store) Insert(_ context.Context, tx core.Transaction) (int64, error) {
	tx = tx.Normalized()
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx.ID = s.nextID
	s.items[tx.ID] = tx
	return tx.ID, nil
}

func (s *Store) Update(_ context.Context, tx core.Transaction) error {
	tx = tx.Normalized()
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.items[tx.ID]
	if !ok {
		return core.ErrNotFound
	}
	tx.OwnerID = old.OwnerID
	s.items[tx.ID] = tx
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ByID(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) AllForOwner(_ context.Context, owner string) ([]core.Transaction, error) {
	return s.filter(func(t core.Transaction) bool { return t.OwnerID == owner }), nil
}

func (s *Store) ForOwnerAndPeriod(_ context.Context, owner string, p core.Period, loc *time.Location) ([]core.Transaction, error) {
	return s.filter(func(t core.Transaction) bool {
		return t.OwnerID == owner && p.Contains(t.OccurredAt, loc)
	}), nil
}

// Owners lists owners with at least one transaction, sorted.
func (s *Store) Owners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	seen := make(map[string]struct{})
	for _, t := range s.items {
		seen[t.OwnerID] = struct{}{}
	}
	s.mu.Unlock()
	out := make([]string, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Strings(out)
	return out, nil
}

// filter returns matching copies, newest first.
func (s *Store) filter(keep func(core.Transaction) bool) []core.Transaction {
	s.mu.Lock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		if keep(t) {
			out = append(out, t)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) GetBudget(_ context.Context, owner string) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.budgets[owner]
	return v, ok, nil
}

func (s *Store) SetBudget(_ context.Context, owner string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[owner] = amount
	return nil
}

func (s *Store) ClearBudget(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets, owner)
	return nil
}
