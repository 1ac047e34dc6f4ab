package http

import (
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/aggregate"
	"spendwise/internal/budget"
	"spendwise/internal/core"
	"spendwise/internal/insight"
	"spendwise/internal/services"
)

type transactionResponse struct {
	ID       int64           `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Type     string          `json:"type"`
	Category string          `json:"category"`
	Wallet   string          `json:"wallet"`
	Date     time.Time       `json:"date"`
	Note     string          `json:"note,omitempty"`
	Title    string          `json:"title"`
	Color    string          `json:"color"`
}

func newTransactionResponse(tx core.Transaction, loc *time.Location) transactionResponse {
	return transactionResponse{
		ID:       tx.ID,
		Amount:   tx.Amount,
		Type:     tx.Kind.String(),
		Category: tx.Category,
		Wallet:   tx.Wallet,
		Date:     tx.OccurredAt.In(loc),
		Note:     tx.Note,
		Title:    tx.Title(),
		Color:    core.CategoryColor(tx.Category),
	}
}

func newTransactionList(txs []core.Transaction, loc *time.Location) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionResponse(tx, loc))
	}
	return out
}

type totalsResponse struct {
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Balance      decimal.Decimal `json:"balance"`
	IncomeCount  int             `json:"income_count"`
	ExpenseCount int             `json:"expense_count"`
}

func newTotals(s core.Summary) totalsResponse {
	return totalsResponse{
		Income:       s.IncomeTotal,
		Expense:      s.ExpenseTotal,
		Balance:      s.Balance,
		IncomeCount:  s.IncomeCount,
		ExpenseCount: s.ExpenseCount,
	}
}

type categoryResponse struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Color    string          `json:"color"`
}

func newCategories(cats []core.CategoryAmount) []categoryResponse {
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{Category: c.Category, Amount: c.Amount, Color: core.CategoryColor(c.Category)})
	}
	return out
}

type summaryResponse struct {
	Year       int                `json:"year"`
	Month      int                `json:"month"`
	Totals     totalsResponse     `json:"totals"`
	Categories []categoryResponse `json:"categories"`
	Series     []aggregate.Point  `json:"series"`
	Budget     *budget.Status     `json:"budget"`
}

func newSummaryResponse(s services.MonthSummary) summaryResponse {
	return summaryResponse{
		Year:       s.Period.Year,
		Month:      int(s.Period.Month),
		Totals:     newTotals(s.Totals),
		Categories: newCategories(s.Categories),
		Series:     nonNilPoints(s.Series),
		Budget:     s.Budget,
	}
}

type rankedResponse struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Ratio    decimal.Decimal `json:"ratio"`
	Color    string          `json:"color"`
}

type topResponse struct {
	Year    int              `json:"year"`
	Entries []rankedResponse `json:"entries"`
}

func newTop(top insight.TopCategories) topResponse {
	out := topResponse{Year: top.Year, Entries: make([]rankedResponse, 0, len(top.Entries))}
	for _, e := range top.Entries {
		out.Entries = append(out.Entries, rankedResponse{
			Category: e.Category,
			Amount:   e.Amount,
			Ratio:    e.Ratio,
			Color:    core.CategoryColor(e.Category),
		})
	}
	return out
}

type changeResponse struct {
	Category      string          `json:"category"`
	ThisMonth     decimal.Decimal `json:"this_month"`
	LastMonth     decimal.Decimal `json:"last_month"`
	PercentChange decimal.Decimal `json:"percent_change"`
}

func newChange(c *insight.CategoryChange) *changeResponse {
	if c == nil {
		return nil
	}
	return &changeResponse{
		Category:      c.Category,
		ThisMonth:     c.ThisMonth,
		LastMonth:     c.LastMonth,
		PercentChange: c.PercentChange,
	}
}

type insightsResponse struct {
	Top         *topResponse    `json:"top"`
	State       string          `json:"state"`
	Reference   string          `json:"reference"`
	Previous    string          `json:"previous"`
	TopIncrease *changeResponse `json:"top_increase"`
	TopDecrease *changeResponse `json:"top_decrease"`
}

func newInsightsResponse(r insight.Report) insightsResponse {
	out := insightsResponse{
		State:       r.Changes.State().String(),
		Reference:   r.Changes.Reference.String(),
		Previous:    r.Changes.Previous.String(),
		TopIncrease: newChange(r.Changes.TopIncrease),
		TopDecrease: newChange(r.Changes.TopDecrease),
	}
	if r.HasYear {
		top := newTop(r.Top)
		out.Top = &top
	}
	return out
}

type monthResponse struct {
	Month  int            `json:"month"`
	Totals totalsResponse `json:"totals"`
}

type yearlyResponse struct {
	Year   int               `json:"year"`
	Totals totalsResponse    `json:"totals"`
	Months []monthResponse   `json:"months"`
	Series []aggregate.Point `json:"series"`
	Top    topResponse       `json:"top"`
}

func newYearlyResponse(y services.YearSummary) yearlyResponse {
	out := yearlyResponse{
		Year:   y.Year,
		Totals: newTotals(y.Totals),
		Months: make([]monthResponse, 0, len(y.Months)),
		Series: nonNilPoints(y.Series),
		Top:    newTop(y.Top),
	}
	for i, m := range y.Months {
		out.Months = append(out.Months, monthResponse{Month: i + 1, Totals: newTotals(m)})
	}
	return out
}

type budgetResponse struct {
	Amount *decimal.Decimal `json:"amount"`
	Set    bool             `json:"set"`
}

func nonNilPoints(p []aggregate.Point) []aggregate.Point {
	if p == nil {
		return []aggregate.Point{}
	}
	return p
}
