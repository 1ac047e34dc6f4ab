package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/aggregate"
	"spendwise/internal/core"
)

// Store persists one budget figure per owner. Absent is reported with
// ok == false and is distinct from zero.
type Store interface {
	GetBudget(ctx context.Context, owner string) (amount decimal.Decimal, ok bool, err error)
	SetBudget(ctx context.Context, owner string, amount decimal.Decimal) error
	ClearBudget(ctx context.Context, owner string) error
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Tracker reads and writes budgets and evaluates them against the current
// month.
type Tracker struct {
	store Store
	clock Clock
}

func NewTracker(store Store, clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock
	}
	return &Tracker{store: store, clock: clock}
}

// Set stores amount as owner's monthly budget, overwriting any previous one.
func (t *Tracker) Set(ctx context.Context, owner string, amount decimal.Decimal) error {
	if owner == "" {
		return core.ErrNotAuthenticated
	}
	if !amount.IsPositive() {
		return &core.ValidationError{Field: "budget", Err: core.ErrInvalidAmount}
	}
	if err := t.store.SetBudget(ctx, owner, amount); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

func (t *Tracker) Clear(ctx context.Context, owner string) error {
	if owner == "" {
		return core.ErrNotAuthenticated
	}
	if err := t.store.ClearBudget(ctx, owner); err != nil {
		return fmt.Errorf("clear budget: %w", err)
	}
	return nil
}

// Get returns owner's budget. ok is false when none is configured.
func (t *Tracker) Get(ctx context.Context, owner string) (decimal.Decimal, bool, error) {
	if owner == "" {
		return decimal.Zero, false, core.ErrNotAuthenticated
	}
	amount, ok, err := t.store.GetBudget(ctx, owner)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get budget: %w", err)
	}
	if !ok || !amount.IsPositive() {
		return decimal.Zero, false, nil
	}
	return amount, true, nil
}

// Status evaluates owner's budget against the expenses in txs that fall in
// the current calendar month of loc. It returns ErrBudgetNotSet when no
// budget is configured.
func (t *Tracker) Status(ctx context.Context, owner string, txs []core.Transaction, loc *time.Location) (Status, error) {
	amount, ok, err := t.Get(ctx, owner)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{}, ErrBudgetNotSet
	}
	month := core.PeriodOf(t.clock.Now(), loc)
	spent := aggregate.Totals(aggregate.PeriodFilter(txs, month, loc)).ExpenseTotal
	return Utilization(amount, spent)
}
