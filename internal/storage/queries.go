package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Transaction is one row of the transactions table.
type Transaction struct {
	ID         int64
	OwnerID    string
	Amount     string
	Kind       string
	Category   string
	Wallet     string
	OccurredAt int64
	Note       string
}

const transactionColumns = `id, owner_id, amount, kind, category, wallet, occurred_at, note`

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (owner_id, amount, kind, category, wallet, occurred_at, note)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateTransactionParams struct {
	OwnerID    string
	Amount     string
	Kind       string
	Category   string
	Wallet     string
	OccurredAt int64
	Note       string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.OwnerID,
		arg.Amount,
		arg.Kind,
		arg.Category,
		arg.Wallet,
		arg.OccurredAt,
		arg.Note,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateTransaction = `-- name: UpdateTransaction :execrows
UPDATE transactions
SET amount = ?, kind = ?, category = ?, wallet = ?, occurred_at = ?, note = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateTransactionParams struct {
	Amount     string
	Kind       string
	Category   string
	Wallet     string
	OccurredAt int64
	Note       string
	ID         int64
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Amount,
		arg.Kind,
		arg.Category,
		arg.Wallet,
		arg.OccurredAt,
		arg.Note,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Amount,
		&i.Kind,
		&i.Category,
		&i.Wallet,
		&i.OccurredAt,
		&i.Note,
	)
	return i, err
}

const listTransactionsByOwner = `-- name: ListTransactionsByOwner :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE owner_id = ?
ORDER BY occurred_at DESC, id DESC`

func (q *Queries) ListTransactionsByOwner(ctx context.Context, ownerID string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const listTransactionsByOwnerBetween = `-- name: ListTransactionsByOwnerBetween :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE owner_id = ? AND occurred_at >= ? AND occurred_at < ?
ORDER BY occurred_at DESC, id DESC`

type ListTransactionsByOwnerBetweenParams struct {
	OwnerID string
	From    int64
	To      int64
}

func (q *Queries) ListTransactionsByOwnerBetween(ctx context.Context, arg ListTransactionsByOwnerBetweenParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByOwnerBetween, arg.OwnerID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const listOwners = `-- name: ListOwners :many
SELECT DISTINCT owner_id FROM transactions
ORDER BY owner_id`

func (q *Queries) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listOwners)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		items = append(items, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.OwnerID,
			&i.Amount,
			&i.Kind,
			&i.Category,
			&i.Wallet,
			&i.OccurredAt,
			&i.Note,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getBudget = `-- name: GetBudget :one
SELECT amount FROM budgets WHERE owner_id = ?`

func (q *Queries) GetBudget(ctx context.Context, ownerID string) (string, error) {
	row := q.db.QueryRowContext(ctx, getBudget, ownerID)
	var amount string
	err := row.Scan(&amount)
	return amount, err
}

const upsertBudget = `-- name: UpsertBudget :exec
INSERT INTO budgets (owner_id, amount) VALUES (?, ?)
ON CONFLICT (owner_id) DO UPDATE SET amount = excluded.amount, updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertBudget(ctx context.Context, ownerID, amount string) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, ownerID, amount)
	return err
}

const deleteBudget = `-- name: DeleteBudget :exec
DELETE FROM budgets WHERE owner_id = ?`

func (q *Queries) DeleteBudget(ctx context.Context, ownerID string) error {
	_, err := q.db.ExecContext(ctx, deleteBudget, ownerID)
	return err
}
