package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendwise/internal/aggregate"
	"spendwise/internal/budget"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/insight"
	"spendwise/internal/log"
)

// MonthSummary is what the dashboard shows for one month.
type MonthSummary struct {
	Period     core.Period
	Totals     core.Summary
	Categories []core.CategoryAmount
	Series     []aggregate.Point
	// Budget is the current month's utilization; nil when no budget is set.
	Budget *budget.Status
}

// YearSummary is the twelve-month view of one year.
type YearSummary struct {
	Year   int
	Totals core.Summary
	Months [12]core.Summary
	Series []aggregate.Point
	Top    insight.TopCategories
}

// DashboardService computes summaries over an owner's snapshot and caches
// them until the owner's next write.
type DashboardService struct {
	ledger    *TransactionService
	tracker   *budget.Tracker
	clock     budget.Clock
	summaries cache.Cache[MonthSummary]
	years     cache.Cache[YearSummary]
	reports   cache.Cache[insight.Report]
	logger    *log.Logger
}

// DashboardOptions configures caching and time.
type DashboardOptions struct {
	CacheSize int
	CacheTTL  time.Duration
	Clock     budget.Clock
	Manager   *cache.Manager
	Logger    *log.Logger
}

func NewDashboardService(ledger *TransactionService, tracker *budget.Tracker, opts DashboardOptions) *DashboardService {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = budget.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	summaries := cache.NewLRUCache[MonthSummary](opts.CacheSize, opts.CacheTTL)
	years := cache.NewLRUCache[YearSummary](opts.CacheSize, opts.CacheTTL)
	reports := cache.NewLRUCache[insight.Report](opts.CacheSize, opts.CacheTTL)
	if opts.Manager != nil {
		opts.Manager.Register(summaries)
		opts.Manager.Register(years)
		opts.Manager.Register(reports)
	}
	return &DashboardService{
		ledger:    ledger,
		tracker:   tracker,
		clock:     opts.Clock,
		summaries: summaries,
		years:     years,
		reports:   reports,
		logger:    opts.Logger.WithComponent(log.ComponentDashboard),
	}
}

func (s *DashboardService) key(owner, view string) string {
	return fmt.Sprintf("%d:%s|%d|%s", len(owner), owner, s.ledger.revisions.Get(owner), view)
}

// Summary computes totals, the category breakdown and the current budget
// status for period.
func (s *DashboardService) Summary(ctx context.Context, period core.Period) (MonthSummary, error) {
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return MonthSummary{}, err
	}
	// The budget status follows the current month, so it is part of the key.
	current := core.PeriodOf(s.clock.Now(), s.ledger.loc)
	key := s.key(owner, "summary|"+period.String()+"|"+current.String())
	if v, ok := s.summaries.Get(key); ok {
		return v, nil
	}

	txs, err := s.ledger.snapshot(ctx, owner)
	if err != nil {
		return MonthSummary{}, err
	}
	loc := s.ledger.loc
	inPeriod := aggregate.PeriodFilter(txs, period, loc)
	categories := aggregate.CategoryTotals(inPeriod)
	out := MonthSummary{
		Period:     period,
		Totals:     aggregate.Totals(inPeriod),
		Categories: categories,
		Series:     aggregate.CategorySeries(categories),
	}

	if s.tracker != nil {
		st, err := s.tracker.Status(ctx, owner, txs, loc)
		switch {
		case err == nil:
			out.Budget = &st
		case errors.Is(err, budget.ErrBudgetNotSet):
		default:
			return MonthSummary{}, err
		}
	}

	s.logger.Debug("Dashboard summary computed", log.FieldOwner, owner, log.FieldCount, len(inPeriod))
	s.summaries.Set(key, out)
	return out, nil
}

// Insights computes the yearly ranking and month-over-month movers for the
// current moment. core.ErrNoData is returned when the owner has no expense.
func (s *DashboardService) Insights(ctx context.Context) (insight.Report, error) {
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return insight.Report{}, err
	}
	now := s.clock.Now()
	key := s.key(owner, "insights|"+core.PeriodOf(now, s.ledger.loc).String())
	if v, ok := s.reports.Get(key); ok {
		return v, nil
	}

	txs, err := s.ledger.snapshot(ctx, owner)
	if err != nil {
		return insight.Report{}, err
	}
	report, err := insight.BuildReport(txs, now, s.ledger.loc)
	if err != nil {
		return insight.Report{}, err
	}
	s.reports.Set(key, report)
	return report, nil
}

// Yearly buckets year into months and ranks its categories.
func (s *DashboardService) Yearly(ctx context.Context, year int) (YearSummary, error) {
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return YearSummary{}, err
	}
	key := s.key(owner, fmt.Sprintf("yearly|%04d", year))
	if v, ok := s.years.Get(key); ok {
		return v, nil
	}

	txs, err := s.ledger.snapshot(ctx, owner)
	if err != nil {
		return YearSummary{}, err
	}
	loc := s.ledger.loc
	months := aggregate.MonthlyBuckets(txs, year, loc)
	out := YearSummary{
		Year:   year,
		Totals: aggregate.Totals(aggregate.YearFilter(txs, year, loc)),
		Months: months,
		Series: aggregate.MonthlyExpenseSeries(months),
	}
	top, err := insight.TopCategoriesOfYear(txs, year, insight.DefaultTopN, loc)
	if err != nil && !errors.Is(err, core.ErrNoData) {
		return YearSummary{}, err
	}
	out.Top = top

	s.years.Set(key, out)
	return out, nil
}
