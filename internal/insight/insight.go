// Package insight derives spending signals from a transaction set: the
// biggest categories of a year and the month-over-month movers.
package insight

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/aggregate"
	"spendwise/internal/core"
)

const (
	// DefaultTopN is how many categories the yearly ranking shows.
	DefaultTopN = 3
)

// SignificanceThreshold is the smallest absolute percent change (exclusive)
// that gets reported.
var SignificanceThreshold = decimal.NewFromInt(5)

// RankedCategory is one entry of the yearly ranking. Ratio is the amount
// relative to the leader, 100 for the leader itself.
type RankedCategory struct {
	Category string
	Amount   decimal.Decimal
	Ratio    decimal.Decimal
}

// TopCategories is the yearly ranking, at most N entries, sorted descending.
type TopCategories struct {
	Year    int
	Entries []RankedCategory
}

// TopCategoriesOfYear ranks the expense categories of year. It returns
// core.ErrNoData when the year has no expenses at all; a short list is not an
// error.
func TopCategoriesOfYear(txs []core.Transaction, year, n int, loc *time.Location) (TopCategories, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	var totals []core.CategoryAmount
	for _, ca := range aggregate.CategoryTotals(aggregate.YearFilter(txs, year, loc)) {
		if ca.Amount.IsPositive() {
			totals = append(totals, ca)
		}
	}
	if len(totals) == 0 {
		return TopCategories{Year: year}, core.ErrNoData
	}

	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Amount.GreaterThan(totals[j].Amount)
	})
	if len(totals) > n {
		totals = totals[:n]
	}

	leader := totals[0].Amount
	out := TopCategories{Year: year, Entries: make([]RankedCategory, 0, len(totals))}
	for _, ca := range totals {
		out.Entries = append(out.Entries, RankedCategory{
			Category: ca.Category,
			Amount:   ca.Amount,
			Ratio:    aggregate.Share(ca.Amount, leader).Truncate(0),
		})
	}
	return out, nil
}
