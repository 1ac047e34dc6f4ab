package services

import (
	"context"
	"fmt"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/backup"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/storage"
)

// ChangePublisher announces ledger changes to other processes.
type ChangePublisher interface {
	PublishTransactionChanged(ctx context.Context, owner string, id int64, op string) error
}

// TransactionService is the owner-scoped entry point for ledger reads and
// writes. Writes go through the WriteQueue; after each one the owner's
// snapshot is pushed to the Hub.
type TransactionService struct {
	store     storage.TransactionStore
	owners    OwnerContext
	queue     *WriteQueue
	hub       *Hub
	revisions *Revisions
	publisher ChangePublisher
	loc       *time.Location
	logger    *log.Logger
	slog      *log.StructuredLogger
}

// TransactionServiceOptions carries the optional collaborators.
type TransactionServiceOptions struct {
	Queue     *WriteQueue
	Hub       *Hub
	Revisions *Revisions
	Publisher ChangePublisher
	Location  *time.Location
	Logger    *log.Logger
}

func NewTransactionService(store storage.TransactionStore, owners OwnerContext, opts TransactionServiceOptions) *TransactionService {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Queue == nil {
		opts.Queue = NewWriteQueue(opts.Logger)
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.Revisions == nil {
		opts.Revisions = NewRevisions()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	logger := opts.Logger.WithComponent(log.ComponentLedger)
	return &TransactionService{
		store:     store,
		owners:    owners,
		queue:     opts.Queue,
		hub:       opts.Hub,
		revisions: opts.Revisions,
		publisher: opts.Publisher,
		loc:       opts.Location,
		logger:    logger,
		slog:      log.NewStructuredLogger(logger),
	}
}

// Location is the zone used to bucket transactions into months.
func (s *TransactionService) Location() *time.Location { return s.loc }

// Revisions exposes the per-owner write counter.
func (s *TransactionService) Revisions() *Revisions { return s.revisions }

// Add validates tx, stores it for the current owner and returns it with its
// new id.
func (s *TransactionService) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = 0
	tx.OwnerID = owner
	tx = tx.Normalized()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	task := Submit(s.queue, func(ctx context.Context) (core.Transaction, error) {
		id, err := s.store.Insert(ctx, tx)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
		}
		tx.ID = id
		s.afterWrite(ctx, owner, id, amqp.OperationCreate)
		return tx, nil
	})
	out, err := task.Wait(ctx)
	if err == nil {
		s.slog.LogTransactionWritten(ctx, log.OpCreate, owner, out.ID, out.Kind.String(), out.Amount.String(), out.Category)
	}
	return out, err
}

// Update replaces a transaction of the current owner. Records of other
// owners are refused with core.ErrForbidden.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	tx.OwnerID = owner
	tx = tx.Normalized()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	task := Submit(s.queue, func(ctx context.Context) (core.Transaction, error) {
		if _, err := s.owned(ctx, owner, tx.ID); err != nil {
			return core.Transaction{}, err
		}
		if err := s.store.Update(ctx, tx); err != nil {
			return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
		}
		s.afterWrite(ctx, owner, tx.ID, amqp.OperationUpdate)
		return tx, nil
	})
	out, err := task.Wait(ctx)
	if err == nil {
		s.slog.LogTransactionWritten(ctx, log.OpUpdate, owner, out.ID, out.Kind.String(), out.Amount.String(), out.Category)
	}
	return out, err
}

// Delete removes a transaction of the current owner.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return err
	}
	task := Submit(s.queue, func(ctx context.Context) (struct{}, error) {
		if _, err := s.owned(ctx, owner, id); err != nil {
			return struct{}{}, err
		}
		if err := s.store.Delete(ctx, id); err != nil {
			return struct{}{}, fmt.Errorf("delete transaction: %w", err)
		}
		s.afterWrite(ctx, owner, id, amqp.OperationDelete)
		return struct{}{}, nil
	})
	_, err = task.Wait(ctx)
	if err == nil {
		s.logger.InfoContext(ctx, "Transaction deleted",
			log.FieldOwner, owner,
			log.FieldTransactionID, id,
			log.FieldOperation, log.OpDelete)
	}
	return err
}

// Get returns one transaction of the current owner.
func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.owned(ctx, owner, id)
}

// List returns the current owner's whole ledger, newest first.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, owner)
}

// ListPeriod returns the current owner's transactions within p.
func (s *TransactionService) ListPeriod(ctx context.Context, p core.Period) ([]core.Transaction, error) {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ForOwnerAndPeriod(ctx, owner, p, s.loc)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}
	return txs, nil
}

// Subscribe delivers the current owner's snapshot to fn now and again after
// every applied write, until cancel is called.
func (s *TransactionService) Subscribe(ctx context.Context, fn SnapshotFunc) (cancel func(), err error) {
	owner, err := requireOwner(ctx, s.owners)
	if err != nil {
		return nil, err
	}
	// Registering on the queue orders the first delivery before any later write.
	task := Submit(s.queue, func(ctx context.Context) (func(), error) {
		current, err := s.snapshot(ctx, owner)
		if err != nil {
			return nil, err
		}
		cancel := s.hub.Subscribe(owner, fn)
		fn(current)
		return cancel, nil
	})
	cancel, err = task.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		task.Then(func(c func(), _ error) {
			if c != nil {
				c()
			}
		})
	}
	return cancel, err
}

// importBatch inserts already-rebound records for owner on the write queue.
// When dedupe is set, records already in the ledger are skipped.
func (s *TransactionService) importBatch(owner string, records []core.Transaction, dedupe bool) *Task[ImportResult] {
	return Submit(s.queue, func(ctx context.Context) (ImportResult, error) {
		res := ImportResult{Total: len(records)}
		if dedupe {
			existing, err := s.store.AllForOwner(ctx, owner)
			if err != nil {
				return res, fmt.Errorf("load ledger for dedupe: %w", err)
			}
			records, res.Skipped = backup.Dedupe(records, existing)
		}
		inserted, err := backup.InsertAll(ctx, s.store, records)
		res.Inserted = inserted
		res.Failed = len(records) - inserted
		if inserted > 0 {
			s.afterWrite(ctx, owner, 0, amqp.OperationImport)
		}
		return res, err
	})
}

func (s *TransactionService) owned(ctx context.Context, owner string, id int64) (core.Transaction, error) {
	tx, err := s.store.ByID(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.OwnerID != owner {
		return core.Transaction{}, core.ErrForbidden
	}
	return tx, nil
}

func (s *TransactionService) snapshot(ctx context.Context, owner string) ([]core.Transaction, error) {
	txs, err := s.store.AllForOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return txs, nil
}

// afterWrite runs on the queue goroutine right after a successful write.
func (s *TransactionService) afterWrite(ctx context.Context, owner string, id int64, op string) {
	metrics.TransactionsWritten.WithLabelValues(op).Inc()
	s.revisions.Bump(owner)

	if s.hub.Subscribers(owner) > 0 {
		snap, err := s.snapshot(ctx, owner)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to reload snapshot", log.FieldOwner, owner, log.FieldError, err)
		} else {
			s.hub.Publish(owner, snap)
		}
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionChanged(ctx, owner, id, op); err != nil {
		// The write is committed locally; the mirror catches up on the next change.
		s.logger.WarnContext(ctx, "Failed to publish change message",
			log.FieldOwner, owner,
			log.FieldTransactionID, id,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}
