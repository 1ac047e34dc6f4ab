package storage

import (
	"context"
	"time"

	"spendwise/internal/core"
)

// Ports implemented by the storage backends.
type (
	// TransactionStore owns transaction identity. Reads for one owner come
	// back ordered by occurrence, newest first.
	TransactionStore interface {
		Insert(ctx context.Context, tx core.Transaction) (int64, error)
		Update(ctx context.Context, tx core.Transaction) error
		Delete(ctx context.Context, id int64) error
		ByID(ctx context.Context, id int64) (core.Transaction, error)
		AllForOwner(ctx context.Context, owner string) ([]core.Transaction, error)
		ForOwnerAndPeriod(ctx context.Context, owner string, p core.Period, loc *time.Location) ([]core.Transaction, error)
	}

	// SnapshotReader is the read side used by consumers that only need an
	// owner's full ledger.
	SnapshotReader interface {
		AllForOwner(ctx context.Context, owner string) ([]core.Transaction, error)
	}

	// OwnerLister enumerates the owners that have at least one transaction.
	OwnerLister interface {
		Owners(ctx context.Context) ([]string, error)
	}
)
