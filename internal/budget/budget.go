// Package budget tracks the monthly spending limit of an owner and how much
// of it the current month has consumed.
package budget

import (
	"errors"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

// ErrBudgetNotSet is returned when utilization is asked for without a
// positive budget.
var ErrBudgetNotSet = errors.New("budget not set")

// Tier is the discrete utilization state shown next to the progress bar.
type Tier int

const (
	Safe Tier = iota
	Warning
	Danger
	Over
)

var tierNames = map[Tier]string{
	Safe:    "safe",
	Warning: "warning",
	Danger:  "danger",
	Over:    "over",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalText makes tiers render by name in JSON responses.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

var (
	warningAt = decimal.NewFromInt(50)
	dangerAt  = decimal.NewFromInt(80)
	hundred   = decimal.NewFromInt(100)
)

// Status is the utilization of a budget by the spend of one month.
type Status struct {
	Budget    decimal.Decimal `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	Percent   decimal.Decimal `json:"percent"`
	Remaining decimal.Decimal `json:"remaining"`
	Tier      Tier            `json:"tier"`
}

// ProgressPercent is Percent clamped to [0, 100] for a progress bar.
func (s Status) ProgressPercent() decimal.Decimal {
	if s.Percent.GreaterThan(hundred) {
		return hundred
	}
	if s.Percent.IsNegative() {
		return decimal.Zero
	}
	return s.Percent
}

// Utilization computes percent, remaining and tier for spent against budget.
// Over wins whenever remaining is negative; the percent tiers are
// inclusive-exclusive: [0,50) Safe, [50,80) Warning, [80,...) Danger.
func Utilization(budget, spent decimal.Decimal) (Status, error) {
	if !budget.IsPositive() {
		return Status{}, ErrBudgetNotSet
	}
	st := Status{
		Budget:    budget,
		Spent:     spent,
		Percent:   core.Percent(spent, budget),
		Remaining: budget.Sub(spent),
	}
	switch {
	case st.Remaining.IsNegative():
		st.Tier = Over
	case st.Percent.GreaterThanOrEqual(dangerAt):
		st.Tier = Danger
	case st.Percent.GreaterThanOrEqual(warningAt):
		st.Tier = Warning
	default:
		st.Tier = Safe
	}
	return st, nil
}
