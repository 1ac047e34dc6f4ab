package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/amqp"
	"spendwise/internal/backup"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/mirror"
	"spendwise/internal/storage"
)

// Mirror receives an owner's full ledger.
type Mirror interface {
	Mirror(ctx context.Context, owner string, snapshot []core.Transaction) (mirror.Result, error)
}

// Uploader stores an owner's cloud auto-backup.
type Uploader interface {
	Upload(ctx context.Context, owner string, env backup.Envelope) error
}

// SyncWorker propagates ledger changes announced over AMQP to the Mongo
// mirror and the cloud auto-backup.
type SyncWorker struct {
	ledger   storage.SnapshotReader
	mirror   Mirror
	uploader Uploader
	now      func() time.Time
	logger   *log.Logger
}

// NewSyncWorker builds a worker. mirror and uploader are optional; a nil one
// is skipped.
func NewSyncWorker(ledger storage.SnapshotReader, m Mirror, uploader Uploader, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &SyncWorker{
		ledger:   ledger,
		mirror:   m,
		uploader: uploader,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleTransactionChanged reloads the owner's ledger and pushes it to the
// mirror and the cloud concurrently. Returning an error makes the consumer
// requeue the message.
func (w *SyncWorker) HandleTransactionChanged(ctx context.Context, msg *amqp.TransactionChangedMessage) (err error) {
	defer func() { metrics.SyncMessages.WithLabelValues(metrics.Result(err)).Inc() }()

	logger := w.logger.With(log.FieldOwner, msg.OwnerID, log.FieldOperation, msg.Operation)
	logger.DebugContext(ctx, "Processing change message", log.FieldTransactionID, msg.TransactionID)

	snapshot, err := w.ledger.AllForOwner(ctx, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("load ledger of %s: %w", msg.OwnerID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if w.mirror != nil {
		g.Go(func() error {
			res, err := w.mirror.Mirror(gctx, msg.OwnerID, snapshot)
			if err != nil {
				return fmt.Errorf("mirror: %w", err)
			}
			logger.InfoContext(gctx, "Ledger mirrored",
				log.FieldCount, len(snapshot),
				"upserted", res.Upserted,
				"deleted", res.Deleted)
			return nil
		})
	}
	if w.uploader != nil && len(snapshot) > 0 {
		g.Go(func() error {
			err := w.uploader.Upload(gctx, msg.OwnerID, backup.Export(snapshot, w.now()))
			metrics.CloudBackups.WithLabelValues(log.OpUpload, metrics.Result(err)).Inc()
			if err != nil {
				return fmt.Errorf("auto backup: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "Change propagation failed", log.FieldError, err)
		return err
	}
	return nil
}

// Resync pushes the ledgers of owners regardless of pending messages. It is
// run at startup to recover from changes published while the worker was down.
func (w *SyncWorker) Resync(ctx context.Context, owners []string) error {
	var failed int
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := amqp.NewTransactionChangedMessage(owner, 0, log.OpSync)
		if err := w.HandleTransactionChanged(ctx, msg); err != nil {
			failed++
		}
	}
	w.logger.InfoContext(ctx, "Startup resync completed",
		log.FieldCount, len(owners),
		log.FieldFailed, failed)
	if failed > 0 {
		return fmt.Errorf("resync: %d of %d owners failed", failed, len(owners))
	}
	return nil
}
