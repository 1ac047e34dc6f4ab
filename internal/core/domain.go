package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

const (
	// CategoryOthers is what an empty or missing category reads as.
	CategoryOthers = "Others"
	// CategoryIncome is the fixed category carried by income transactions.
	CategoryIncome = "Income"

	maxNoteLength = 500
)

// DefaultWallets are the funding sources offered when recording a transaction.
var DefaultWallets = []string{"Cash", "bKash", "Nagad", "Bank"}

type (
	Kind string

	Transaction struct {
		ID         int64 // 0 until the store assigns one
		OwnerID    string
		Amount     decimal.Decimal // always positive; sign comes from Kind
		Kind       Kind
		Category   string
		Wallet     string
		OccurredAt time.Time
		Note       string
	}
)

// ParseKind accepts the wire names "expense" and "income" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Expense:
		return Expense, nil
	case Income:
		return Income, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k Kind) IsValid() bool {
	return k == Expense || k == Income
}

func (k Kind) String() string {
	return string(k)
}

// NormalizeCategory maps empty and blank labels to "Others".
func NormalizeCategory(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return CategoryOthers
	}
	return c
}

// Normalized returns a trimmed copy with the category rules applied.
func (t Transaction) Normalized() Transaction {
	out := t
	out.OwnerID = strings.TrimSpace(t.OwnerID)
	out.Wallet = strings.TrimSpace(t.Wallet)
	out.Note = strings.TrimSpace(t.Note)
	if t.Kind == Income {
		out.Category = CategoryIncome
	} else {
		out.Category = NormalizeCategory(t.Category)
	}
	return out
}

// Title is the display label: the note when present, else the category.
func (t Transaction) Title() string {
	if note := strings.TrimSpace(t.Note); note != "" {
		return note
	}
	return NormalizeCategory(t.Category)
}

// IsExpense reports whether the transaction counts toward spending.
func (t Transaction) IsExpense() bool {
	return t.Kind == Expense
}

// Validate checks the entry-time rules. The owner is checked too because a
// persisted record must always have one.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return &ValidationError{Field: "owner", Err: ErrEmptyOwner}
	}
	if !t.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if !t.Kind.IsValid() {
		return &ValidationError{Field: "type", Err: ErrInvalidKind}
	}
	if t.Kind == Expense && strings.TrimSpace(t.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	if strings.TrimSpace(t.Wallet) == "" {
		return &ValidationError{Field: "wallet", Err: ErrEmptyWallet}
	}
	if t.OccurredAt.IsZero() {
		return &ValidationError{Field: "date", Err: ErrZeroTime}
	}
	if len(t.Note) > maxNoteLength {
		return &ValidationError{Field: "note", Err: ErrNoteTooLong}
	}
	return nil
}
