package insight

import (
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/aggregate"
	"spendwise/internal/core"
)

type State int

const (
	StateNoSignificantChange State = iota
	StateChanged
)

func (s State) String() string {
	if s == StateChanged {
		return "changed"
	}
	return "no_significant_change"
}

// CategoryChange compares one category across two consecutive months.
type CategoryChange struct {
	Category      string
	ThisMonth     decimal.Decimal
	LastMonth     decimal.Decimal
	PercentChange decimal.Decimal
}

// Changes holds the reported movers. A nil slot means nothing in that
// direction cleared the significance threshold.
type Changes struct {
	Reference   core.Period
	Previous    core.Period
	TopIncrease *CategoryChange
	TopDecrease *CategoryChange
}

func (c Changes) State() State {
	if c.TopIncrease == nil && c.TopDecrease == nil {
		return StateNoSignificantChange
	}
	return StateChanged
}

// MonthOverMonthChanges compares expense categories of reference against the
// month before it. Categories with no spend last month are skipped: a new
// category is never an "increase". It returns core.ErrNoData when txs holds
// no expenses at all.
func MonthOverMonthChanges(txs []core.Transaction, reference core.Period, loc *time.Location) (Changes, error) {
	out := Changes{Reference: reference, Previous: reference.Prev()}
	if len(aggregate.KindFilter(txs, core.Expense)) == 0 {
		return out, core.ErrNoData
	}

	this := aggregate.CategoryTotals(aggregate.PeriodFilter(txs, reference, loc))
	last := aggregate.CategoryMap(aggregate.PeriodFilter(txs, out.Previous, loc))

	var inc, dec *CategoryChange
	for _, ca := range this {
		prev, ok := last[ca.Category]
		if !ok || !prev.IsPositive() {
			continue
		}
		change := &CategoryChange{
			Category:      ca.Category,
			ThisMonth:     ca.Amount,
			LastMonth:     prev,
			PercentChange: core.Percent(ca.Amount.Sub(prev), prev),
		}
		if change.PercentChange.IsPositive() && (inc == nil || change.PercentChange.GreaterThan(inc.PercentChange)) {
			inc = change
		}
		if change.PercentChange.IsNegative() && (dec == nil || change.PercentChange.LessThan(dec.PercentChange)) {
			dec = change
		}
	}

	if inc != nil && inc.PercentChange.GreaterThan(SignificanceThreshold) {
		out.TopIncrease = inc
	}
	if dec != nil && dec.PercentChange.Neg().GreaterThan(SignificanceThreshold) {
		out.TopDecrease = dec
	}
	return out, nil
}

// Report bundles what the insight screen shows for the moment now.
type Report struct {
	Top        TopCategories
	Changes    Changes
	HasYear    bool
	HasChanges bool
}

// BuildReport computes the yearly ranking and the month-over-month movers for
// the year and month containing now. ErrNoData is returned only when there
// is no expense anywhere in txs.
func BuildReport(txs []core.Transaction, now time.Time, loc *time.Location) (Report, error) {
	ref := core.PeriodOf(now, loc)
	changes, err := MonthOverMonthChanges(txs, ref, loc)
	if err != nil {
		return Report{Changes: changes}, err
	}
	top, err := TopCategoriesOfYear(txs, ref.Year, DefaultTopN, loc)
	return Report{
		Top:        top,
		Changes:    changes,
		HasYear:    err == nil,
		HasChanges: changes.State() == StateChanged,
	}, nil
}
