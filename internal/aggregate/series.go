package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

// Point is one labeled value handed to the chart widget.
type Point struct {
	Label   string          `json:"label"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
	Color   string          `json:"color,omitempty"`
}

// CategorySeries converts category totals into a pie-chart series.
func CategorySeries(totals []core.CategoryAmount) []Point {
	sum := decimal.Zero
	for _, ca := range totals {
		sum = sum.Add(ca.Amount)
	}
	out := make([]Point, 0, len(totals))
	for _, ca := range totals {
		out = append(out, Point{
			Label:   ca.Category,
			Value:   ca.Amount,
			Percent: Share(ca.Amount, sum).Round(2),
			Color:   core.CategoryColor(ca.Category),
		})
	}
	return out
}

// MonthlyExpenseSeries is a twelve-point bar series of monthly spending.
func MonthlyExpenseSeries(buckets [12]core.Summary) []Point {
	out := make([]Point, 0, len(buckets))
	for i, s := range buckets {
		out = append(out, Point{
			Label:   time.Month(i + 1).String()[:3],
			Value:   s.ExpenseTotal,
			Percent: decimal.Zero,
		})
	}
	return out
}
