package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

var errBadRequest = errors.New("bad request")

// badRequest wraps a client mistake that is not a domain validation error.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// transactionRequest is the body of POST and PUT /api/transactions. Amount
// accepts both a JSON number and a numeric string.
type transactionRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Type     string          `json:"type"`
	Category string          `json:"category"`
	Wallet   string          `json:"wallet"`
	Date     string          `json:"date"`
	Note     string          `json:"note"`
}

// toCore converts the request; a missing date means now. Dates are either
// RFC 3339 or YYYY-MM-DD read as midnight in loc.
func (r transactionRequest) toCore(now time.Time, loc *time.Location) (core.Transaction, error) {
	kind, err := core.ParseKind(r.Type)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "type", Err: core.ErrInvalidKind}
	}
	at, err := parseDate(r.Date, now, loc)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "date", Err: err}
	}
	return core.Transaction{
		Amount:     r.Amount,
		Kind:       kind,
		Category:   sanitizeInput(r.Category),
		Wallet:     sanitizeInput(r.Wallet),
		OccurredAt: at,
		Note:       sanitizeInput(r.Note),
	}, nil
}

func parseDate(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return t, nil
}

// budgetRequest is the body of PUT /api/budget.
type budgetRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// parsePeriod reads ?year=&month=, defaulting each to the month containing
// now. Unlike the lenient form parsing elsewhere, a malformed value is an
// error rather than silently replaced.
func parsePeriod(c *gin.Context, now time.Time, loc *time.Location) (core.Period, error) {
	current := core.PeriodOf(now, loc)
	year, err := intQuery(c, "year", current.Year)
	if err != nil {
		return core.Period{}, err
	}
	month, err := intQuery(c, "month", int(current.Month))
	if err != nil {
		return core.Period{}, err
	}
	p, err := core.NewPeriod(year, month)
	if err != nil {
		return core.Period{}, badRequest("%v", err)
	}
	return p, nil
}

// parseYear reads ?year=, defaulting to the current year in loc.
func parseYear(c *gin.Context, now time.Time, loc *time.Location) (int, error) {
	year, err := intQuery(c, "year", now.In(loc).Year())
	if err != nil {
		return 0, err
	}
	if _, err := core.NewPeriod(year, 1); err != nil {
		return 0, badRequest("%v", err)
	}
	return year, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be a number, got %q", name, v)
	}
	return n, nil
}

func boolQuery(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return err == nil && v
}

// parseID reads the :id path segment.
func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid transaction id %q", c.Param("id"))
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
