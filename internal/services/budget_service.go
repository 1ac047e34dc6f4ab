package services

import (
	"context"

	"github.com/shopspring/decimal"

	"spendwise/internal/budget"
	"spendwise/internal/log"
)

// BudgetService scopes the budget tracker to the current owner.
type BudgetService struct {
	tracker   *budget.Tracker
	owners    OwnerContext
	revisions *Revisions
	logger    *log.Logger
}

func NewBudgetService(tracker *budget.Tracker, owners OwnerContext, revisions *Revisions, logger *log.Logger) *BudgetService {
	if revisions == nil {
		revisions = NewRevisions()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BudgetService{
		tracker:   tracker,
		owners:    owners,
		revisions: revisions,
		logger:    logger.WithComponent(log.ComponentBudget),
	}
}

// Get returns the current owner's budget; ok is false when none is set.
func (s *BudgetService) Get(ctx context.Context) (decimal.Decimal, bool, error) {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return decimal.Zero, false, err
	}
	return s.tracker.Get(ctx, owner)
}

func (s *BudgetService) Set(ctx context.Context, amount decimal.Decimal) error {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return err
	}
	if err := s.tracker.Set(ctx, owner, amount); err != nil {
		return err
	}
	s.revisions.Bump(owner)
	s.logger.InfoContext(ctx, "Budget set", log.FieldOwner, owner, log.FieldAmount, amount.String())
	return nil
}

func (s *BudgetService) Clear(ctx context.Context) error {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return err
	}
	if err := s.tracker.Clear(ctx, owner); err != nil {
		return err
	}
	s.revisions.Bump(owner)
	s.logger.InfoContext(ctx, "Budget cleared", log.FieldOwner, owner)
	return nil
}
