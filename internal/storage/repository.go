package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Writes are serialized by the service write queue; one connection keeps
	// sqlite from returning SQLITE_BUSY to concurrent readers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Insert implements TransactionStore
func (r *SQLiteRepository) Insert(ctx context.Context, tx core.Transaction) (int64, error) {
	tx = tx.Normalized()
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		OwnerID:    tx.OwnerID,
		Amount:     tx.Amount.String(),
		Kind:       tx.Kind.String(),
		Category:   tx.Category,
		Wallet:     tx.Wallet,
		OccurredAt: tx.OccurredAt.UnixMilli(),
		Note:       tx.Note,
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"owner", tx.OwnerID,
		"kind", tx.Kind,
		"amount", tx.Amount.String())

	return id, nil
}

// Update implements TransactionStore. The owner of a row never changes.
func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) error {
	tx = tx.Normalized()
	if err := tx.Validate(); err != nil {
		return err
	}
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		Amount:     tx.Amount.String(),
		Kind:       tx.Kind.String(),
		Category:   tx.Category,
		Wallet:     tx.Wallet,
		OccurredAt: tx.OccurredAt.UnixMilli(),
		Note:       tx.Note,
		ID:         tx.ID,
	})
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Delete implements TransactionStore
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ByID implements TransactionStore
func (r *SQLiteRepository) ByID(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction by id: %w", err)
	}
	return row.toCore()
}

// AllForOwner implements TransactionStore
func (r *SQLiteRepository) AllForOwner(ctx context.Context, owner string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions for owner: %w", err)
	}
	return toCoreSlice(rows)
}

// ForOwnerAndPeriod implements TransactionStore
func (r *SQLiteRepository) ForOwnerAndPeriod(ctx context.Context, owner string, p core.Period, loc *time.Location) ([]core.Transaction, error) {
	from, to := p.Bounds(loc)
	rows, err := r.queries.ListTransactionsByOwnerBetween(ctx, ListTransactionsByOwnerBetweenParams{
		OwnerID: owner,
		From:    from.UnixMilli(),
		To:      to.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", p, err)
	}
	return toCoreSlice(rows)
}

// Owners implements OwnerLister
func (r *SQLiteRepository) Owners(ctx context.Context) ([]string, error) {
	owners, err := r.queries.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

// GetBudget implements budget.Store
func (r *SQLiteRepository) GetBudget(ctx context.Context, owner string) (decimal.Decimal, bool, error) {
	raw, err := r.queries.GetBudget(ctx, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get budget: %w", err)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse stored budget %q: %w", raw, err)
	}
	return amount, true, nil
}

// SetBudget implements budget.Store
func (r *SQLiteRepository) SetBudget(ctx context.Context, owner string, amount decimal.Decimal) error {
	if err := r.queries.UpsertBudget(ctx, owner, amount.String()); err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

// ClearBudget implements budget.Store
func (r *SQLiteRepository) ClearBudget(ctx context.Context, owner string) error {
	if err := r.queries.DeleteBudget(ctx, owner); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func (t Transaction) toCore() (core.Transaction, error) {
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored amount of %d: %w", t.ID, err)
	}
	return core.Transaction{
		ID:         t.ID,
		OwnerID:    t.OwnerID,
		Amount:     amount,
		Kind:       core.Kind(t.Kind),
		Category:   t.Category,
		Wallet:     t.Wallet,
		OccurredAt: time.UnixMilli(t.OccurredAt),
		Note:       t.Note,
	}, nil
}

func toCoreSlice(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
