package aggregate

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

func tx(kind core.Kind, amount int64, category string, y int, m time.Month, d int) core.Transaction {
	return core.Transaction{
		OwnerID:    "u1",
		Amount:     decimal.NewFromInt(amount),
		Kind:       kind,
		Category:   category,
		Wallet:     "Cash",
		OccurredAt: time.Date(y, m, d, 12, 0, 0, 0, time.UTC),
	}
}

func sample() []core.Transaction {
	return []core.Transaction{
		tx(core.Expense, 500, "Food", 2025, time.January, 15),
		tx(core.Expense, 300, "Food", 2025, time.February, 10),
		tx(core.Expense, 100, "Transport", 2025, time.February, 12),
		tx(core.Income, 2000, core.CategoryIncome, 2025, time.February, 1),
		tx(core.Expense, 40, "", 2025, time.February, 20),
	}
}

func TestTotalsEmpty(t *testing.T) {
	s := Totals(nil)
	if !s.IncomeTotal.IsZero() || !s.ExpenseTotal.IsZero() || !s.Balance.IsZero() || s.IncomeCount != 0 || s.ExpenseCount != 0 {
		t.Fatalf("expected all-zero summary, got %+v", s)
	}
}

func TestTotals(t *testing.T) {
	s := Totals(sample())
	if !s.IncomeTotal.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("income = %s", s.IncomeTotal)
	}
	if !s.ExpenseTotal.Equal(decimal.NewFromInt(940)) {
		t.Errorf("expense = %s", s.ExpenseTotal)
	}
	if !s.Balance.Equal(s.IncomeTotal.Sub(s.ExpenseTotal)) {
		t.Errorf("balance %s != income - expense", s.Balance)
	}
	if s.IncomeCount != 1 || s.ExpenseCount != 4 {
		t.Errorf("counts = %d/%d", s.IncomeCount, s.ExpenseCount)
	}
}

func TestPeriodFilter(t *testing.T) {
	feb := core.Period{Year: 2025, Month: time.February}
	got := PeriodFilter(sample(), feb, time.UTC)
	if len(got) != 4 {
		t.Fatalf("expected 4 February transactions, got %d", len(got))
	}
	jan := PeriodFilter(sample(), feb.Prev(), time.UTC)
	if len(jan) != 1 || jan[0].Category != "Food" {
		t.Fatalf("unexpected January slice: %+v", jan)
	}
}

func TestPeriodFilterDoesNotAlias(t *testing.T) {
	in := sample()
	out := PeriodFilter(in, core.Period{Year: 2025, Month: time.February}, time.UTC)
	out[0].Category = "changed"
	for _, t0 := range in {
		if t0.Category == "changed" {
			t.Fatal("filter result aliases its input")
		}
	}
}

func TestCategoryTotals(t *testing.T) {
	all := []core.Transaction{
		tx(core.Expense, 500, "Food", 2025, time.January, 15),
		tx(core.Expense, 300, "Food", 2025, time.February, 10),
		tx(core.Expense, 100, "Transport", 2025, time.February, 12),
	}
	got := CategoryTotals(all)
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %+v", got)
	}
	if got[0].Category != "Food" || !got[0].Amount.Equal(decimal.NewFromInt(800)) {
		t.Errorf("unexpected first entry %+v", got[0])
	}
	if got[1].Category != "Transport" || !got[1].Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected second entry %+v", got[1])
	}
}

func TestCategoryTotalsNormalizesAndSkipsIncome(t *testing.T) {
	m := CategoryMap(sample())
	if _, ok := m[core.CategoryIncome]; ok {
		t.Error("income must not appear in category totals")
	}
	if !m[core.CategoryOthers].Equal(decimal.NewFromInt(40)) {
		t.Errorf("empty category should land in Others, got %v", m)
	}
}

func TestCategoryTotalsMatchesExpenseTotal(t *testing.T) {
	sets := [][]core.Transaction{nil, sample(), KindFilter(sample(), core.Income)}
	for i, set := range sets {
		sum := decimal.Zero
		for _, ca := range CategoryTotals(set) {
			sum = sum.Add(ca.Amount)
		}
		want := Totals(KindFilter(set, core.Expense)).ExpenseTotal
		if !sum.Equal(want) {
			t.Errorf("set %d: category sum %s != expense total %s", i, sum, want)
		}
	}
}

func TestMonthlyBuckets(t *testing.T) {
	b := MonthlyBuckets(sample(), 2025, time.UTC)
	if !b[0].ExpenseTotal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("January expense = %s", b[0].ExpenseTotal)
	}
	if !b[1].ExpenseTotal.Equal(decimal.NewFromInt(440)) || !b[1].IncomeTotal.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("February = %+v", b[1])
	}
	if !b[11].ExpenseTotal.IsZero() {
		t.Errorf("December should be empty")
	}
	series := MonthlyExpenseSeries(b)
	if len(series) != 12 || series[0].Label != "Jan" {
		t.Errorf("unexpected series %+v", series)
	}
}

func TestCategorySeries(t *testing.T) {
	series := CategorySeries(CategoryTotals(sample()))
	if len(series) != 3 {
		t.Fatalf("expected 3 points, got %d", len(series))
	}
	total := decimal.Zero
	for _, p := range series {
		total = total.Add(p.Value)
		if p.Color == "" {
			t.Errorf("point %q has no color", p.Label)
		}
	}
	if !total.Equal(decimal.NewFromInt(940)) {
		t.Errorf("series total %s", total)
	}
	if !series[0].Percent.Equal(decimal.RequireFromString("85.11")) {
		t.Errorf("Food share = %s", series[0].Percent)
	}
}

func TestPeriodFilterAgreesWithBoundsAcrossDaylightSaving(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	instants := []time.Time{
		time.Date(2025, 3, 1, 4, 30, 0, 0, time.UTC),  // Feb 28 23:30 EST
		time.Date(2025, 3, 1, 5, 0, 0, 0, time.UTC),   // Mar 1 00:00 EST
		time.Date(2025, 3, 9, 6, 59, 0, 0, time.UTC),  // before spring forward
		time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC),   // after spring forward
		time.Date(2025, 4, 1, 3, 30, 0, 0, time.UTC),  // Mar 31 23:30 EDT
		time.Date(2025, 4, 1, 4, 0, 0, 0, time.UTC),   // Apr 1 00:00 EDT
		time.Date(2025, 11, 1, 3, 30, 0, 0, time.UTC), // Oct 31 23:30 EDT
		time.Date(2025, 11, 2, 5, 30, 0, 0, time.UTC), // 01:30 EDT
		time.Date(2025, 11, 2, 6, 30, 0, 0, time.UTC), // 01:30 EST
		time.Date(2025, 12, 1, 4, 30, 0, 0, time.UTC), // Nov 30 23:30 EST
	}
	var txs []core.Transaction
	for i, at := range instants {
		tr := tx(core.Expense, int64(i+1), "Food", 2025, time.January, 1)
		tr.OccurredAt = at
		txs = append(txs, tr)
	}

	want := map[time.Month]int{
		time.February: 1,
		time.March:    4,
		time.April:    1,
		time.October:  1,
		time.November: 3,
	}
	for m := time.January; m <= time.December; m++ {
		p := core.Period{Year: 2025, Month: m}
		got := PeriodFilter(txs, p, ny)
		if len(got) != want[m] {
			t.Errorf("%s: %d transactions, want %d", p, len(got), want[m])
		}
		start, end := p.Bounds(ny)
		for _, tr := range got {
			if tr.OccurredAt.Before(start) || !tr.OccurredAt.Before(end) {
				t.Errorf("%s kept %s outside [%s, %s)", p, tr.OccurredAt.In(ny), start, end)
			}
			if core.PeriodOf(tr.OccurredAt, ny) != p {
				t.Errorf("%s kept %s, which PeriodOf puts elsewhere", p, tr.OccurredAt.In(ny))
			}
		}
	}
}
