// Package aggregate turns an unordered set of transactions into totals,
// category buckets and month-bucketed slices.
//
// Every function here is pure: inputs are never modified and results never
// alias the input slice.
package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

// Totals sums income and expense. Balance is income minus expense.
func Totals(txs []core.Transaction) core.Summary {
	s := core.Summary{
		IncomeTotal:  decimal.Zero,
		ExpenseTotal: decimal.Zero,
		Balance:      decimal.Zero,
	}
	for _, t := range txs {
		switch t.Kind {
		case core.Income:
			s.IncomeTotal = s.IncomeTotal.Add(t.Amount)
			s.IncomeCount++
		case core.Expense:
			s.ExpenseTotal = s.ExpenseTotal.Add(t.Amount)
			s.ExpenseCount++
		}
	}
	s.Balance = s.IncomeTotal.Sub(s.ExpenseTotal)
	return s
}

// PeriodFilter keeps the transactions whose OccurredAt falls in p, read in loc.
func PeriodFilter(txs []core.Transaction, p core.Period, loc *time.Location) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if p.Contains(t.OccurredAt, loc) {
			out = append(out, t)
		}
	}
	return out
}

// YearFilter keeps the transactions that fall in the given calendar year.
func YearFilter(txs []core.Transaction, year int, loc *time.Location) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if core.PeriodOf(t.OccurredAt, loc).Year == year {
			out = append(out, t)
		}
	}
	return out
}

// KindFilter keeps transactions of one kind.
func KindFilter(txs []core.Transaction, kind core.Kind) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// CategoryTotals groups expenses by normalized category. Income is never
// part of this view. Entries come back in first-occurrence order.
func CategoryTotals(txs []core.Transaction) []core.CategoryAmount {
	index := make(map[string]int)
	var out []core.CategoryAmount
	for _, t := range txs {
		if t.Kind != core.Expense {
			continue
		}
		c := core.NormalizeCategory(t.Category)
		i, ok := index[c]
		if !ok {
			i = len(out)
			index[c] = i
			out = append(out, core.CategoryAmount{Category: c, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	return out
}

// CategoryMap is CategoryTotals keyed by category.
func CategoryMap(txs []core.Transaction) map[string]decimal.Decimal {
	totals := CategoryTotals(txs)
	m := make(map[string]decimal.Decimal, len(totals))
	for _, ca := range totals {
		m[ca.Category] = ca.Amount
	}
	return m
}

// MonthlyBuckets returns one Summary per month of year; index 0 is January.
func MonthlyBuckets(txs []core.Transaction, year int, loc *time.Location) [12]core.Summary {
	var grouped [12][]core.Transaction
	for _, t := range txs {
		p := core.PeriodOf(t.OccurredAt, loc)
		if p.Year != year {
			continue
		}
		grouped[p.Month-1] = append(grouped[p.Month-1], t)
	}
	var out [12]core.Summary
	for i := range grouped {
		out[i] = Totals(grouped[i])
	}
	return out
}

// Share is amount as a percentage of total, zero when total is zero.
func Share(amount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return core.Percent(amount, total)
}
