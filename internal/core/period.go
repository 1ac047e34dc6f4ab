package core

import (
	"errors"
	"fmt"
	"time"
)

// Period is one calendar month. Month is 1-based (time.January == 1).
type Period struct {
	Year  int
	Month time.Month
}

var ErrInvalidPeriod = errors.New("invalid period")

// NewPeriod validates year and month.
func NewPeriod(year int, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < 1970 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the month t falls in, read on the wall clock of loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.Local
	}
	y, m, _ := t.In(loc).Date()
	return Period{Year: y, Month: m}
}

// Prev returns the preceding month, rolling January back to December.
func (p Period) Prev() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Contains compares calendar fields, so DST shifts inside loc never move a
// transaction into a neighbouring month.
func (p Period) Contains(t time.Time, loc *time.Location) bool {
	return PeriodOf(t, loc) == p
}

// Bounds returns [start, end) of the month in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	next := p.Next()
	end := time.Date(next.Year, next.Month, 1, 0, 0, 0, 0, loc)
	return start, end
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
