package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOwner    = errors.New("empty owner")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidKind   = errors.New("invalid transaction type")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyWallet   = errors.New("empty wallet")
	ErrZeroTime      = errors.New("date cannot be zero")
	ErrNoteTooLong   = errors.New("note too long (max 500 characters)")

	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("transaction not found")
	ErrForbidden        = errors.New("transaction belongs to another owner")
	ErrNoData           = errors.New("no data")
	ErrMalformedBackup  = errors.New("malformed backup")
	ErrPartialImport    = errors.New("partial import failure")
)

// ValidationError is a user-correctable problem found before anything
// reaches the store.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PartialImportError reports a batch insert that stopped being clean. Rows
// counted in Inserted are committed and stay committed.
type PartialImportError struct {
	Inserted int
	Failed   int
	Err      error // first failure
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("partial import failure: %d inserted, %d failed: %v", e.Inserted, e.Failed, e.Err)
}

func (e *PartialImportError) Unwrap() []error {
	return []error{ErrPartialImport, e.Err}
}

// MalformedBackup wraps a decode problem so it matches ErrMalformedBackup.
func MalformedBackup(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedBackup, fmt.Sprintf(format, args...))
}
