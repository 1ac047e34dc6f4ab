package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/backup"
	"spendwise/internal/backup/cloud"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/metrics"
)

// ErrCloudDisabled is returned by the cloud operations when no bucket is
// configured.
var ErrCloudDisabled = errors.New("cloud backup is not configured")

// ImportResult counts what one import did with the records it received.
type ImportResult struct {
	BatchID  string `json:"batch_id"`
	Total    int    `json:"total"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// ImportOptions tunes an import.
type ImportOptions struct {
	// AllowDuplicates inserts records even when an identical one exists.
	AllowDuplicates bool
}

// CloudStatus describes the owner's cloud backup.
type CloudStatus struct {
	Exists    bool      `json:"exists"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// BackupService exports and imports an owner's ledger as a backup file and
// keeps the cloud copy.
type BackupService struct {
	ledger *TransactionService
	cloud  *cloud.Manager
	now    func() time.Time
	logger *log.Logger
}

// NewBackupService builds the service. manager may be nil, in which case
// the cloud operations return ErrCloudDisabled.
func NewBackupService(ledger *TransactionService, manager *cloud.Manager, logger *log.Logger) *BackupService {
	if logger == nil {
		logger = log.Default()
	}
	return &BackupService{
		ledger: ledger,
		cloud:  manager,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentBackup),
	}
}

// Export serializes the current owner's ledger. It refuses an empty ledger
// with core.ErrNoData.
func (s *BackupService) Export(ctx context.Context) (data []byte, filename string, err error) {
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return nil, "", err
	}
	txs, err := s.ledger.snapshot(ctx, owner)
	if err != nil {
		return nil, "", err
	}
	if len(txs) == 0 {
		return nil, "", core.ErrNoData
	}

	now := s.now()
	data, err = backup.Serialize(backup.Export(txs, now))
	if err != nil {
		return nil, "", err
	}
	metrics.ExportedRecords.Add(float64(len(txs)))
	s.logger.InfoContext(ctx, "Backup exported",
		log.FieldOwner, owner,
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(txs))
	return data, backup.Filename(now), nil
}

// ImportAsync decodes data and queues its records for the current owner.
// Decoding and ownership problems fail the returned task immediately; nothing
// is written for a malformed payload.
func (s *BackupService) ImportAsync(ctx context.Context, data []byte, opts ImportOptions) *Task[ImportResult] {
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return failedTask[ImportResult](err)
	}
	env, err := backup.Deserialize(data)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(metrics.Result(err)).Inc()
		return failedTask[ImportResult](err)
	}
	return s.importEnvelope(ctx, owner, env, opts)
}

// Import is ImportAsync followed by Wait.
func (s *BackupService) Import(ctx context.Context, data []byte, opts ImportOptions) (ImportResult, error) {
	return s.ImportAsync(ctx, data, opts).Wait(ctx)
}

func (s *BackupService) importEnvelope(ctx context.Context, owner string, env backup.Envelope, opts ImportOptions) *Task[ImportResult] {
	records, err := backup.Import(env, owner)
	if err != nil {
		return failedTask[ImportResult](err)
	}

	batchID := uuid.NewString()
	logger := s.logger.With(log.FieldOwner, owner, log.FieldBatchID, batchID)
	logger.InfoContext(ctx, "Import queued", log.FieldCount, len(records))

	inner := s.ledger.importBatch(owner, records, !opts.AllowDuplicates)
	out := newTask[ImportResult]()
	inner.Then(func(res ImportResult, err error) {
		res.BatchID = batchID
		metrics.ImportsTotal.WithLabelValues(metrics.Result(err)).Inc()
		metrics.ImportedRecords.WithLabelValues("inserted").Add(float64(res.Inserted))
		metrics.ImportedRecords.WithLabelValues("failed").Add(float64(res.Failed))
		metrics.ImportedRecords.WithLabelValues("skipped").Add(float64(res.Skipped))

		fields := log.NewFields().
			WithOperation(log.OpImport).
			WithImport(res.Inserted, res.Failed, res.Skipped).
			WithError(err)
		if err != nil {
			logger.Error("Import finished with failures", fields.ToSlice()...)
		} else {
			logger.Info("Import finished", fields.ToSlice()...)
		}
		out.complete(res, err)
	})
	return out
}

// CloudBackup uploads the current owner's ledger, replacing the previous
// cloud copy. An empty ledger is refused with core.ErrNoData.
func (s *BackupService) CloudBackup(ctx context.Context) (int, error) {
	if s.cloud == nil {
		return 0, ErrCloudDisabled
	}
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return 0, err
	}
	txs, err := s.ledger.snapshot(ctx, owner)
	if err != nil {
		return 0, err
	}
	if len(txs) == 0 {
		return 0, core.ErrNoData
	}
	err = s.cloud.Upload(ctx, owner, backup.Export(txs, s.now()))
	metrics.CloudBackups.WithLabelValues(log.OpUpload, metrics.Result(err)).Inc()
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

// CloudRestore imports the owner's cloud copy into the ledger.
func (s *BackupService) CloudRestore(ctx context.Context, opts ImportOptions) (ImportResult, error) {
	if s.cloud == nil {
		return ImportResult{}, ErrCloudDisabled
	}
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return ImportResult{}, err
	}
	env, _, err := s.cloud.Restore(ctx, owner)
	metrics.CloudBackups.WithLabelValues(log.OpRestore, metrics.Result(err)).Inc()
	if err != nil {
		return ImportResult{}, err
	}
	return s.importEnvelope(ctx, owner, env, opts).Wait(ctx)
}

func (s *BackupService) CloudStatus(ctx context.Context) (CloudStatus, error) {
	if s.cloud == nil {
		return CloudStatus{}, ErrCloudDisabled
	}
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return CloudStatus{}, err
	}
	ok, updated, err := s.cloud.Exists(ctx, owner)
	if err != nil {
		return CloudStatus{}, err
	}
	return CloudStatus{Exists: ok, UpdatedAt: updated}, nil
}

func (s *BackupService) CloudDelete(ctx context.Context) error {
	if s.cloud == nil {
		return ErrCloudDisabled
	}
	owner, err := requireOwner(ctx, s.ledger.owners)
	if err != nil {
		return err
	}
	err = s.cloud.Delete(ctx, owner)
	metrics.CloudBackups.WithLabelValues(log.OpDelete, metrics.Result(err)).Inc()
	return err
}

func failedTask[T any](err error) *Task[T] {
	t := newTask[T]()
	var zero T
	t.complete(zero, err)
	return t
}
