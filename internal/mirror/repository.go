package mirror

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"spendwise/internal/backup"
	"spendwise/internal/core"
)

const (
	TransactionsCollection = "transactions"
	SyncLogCollection      = "sync_log"
)

// Document is how a transaction is stored in the mirror.
type Document struct {
	Fingerprint string    `bson:"_id"`
	OwnerID     string    `bson:"ownerId"`
	Amount      string    `bson:"amount"`
	Kind        string    `bson:"type"`
	Category    string    `bson:"category"`
	Wallet      string    `bson:"wallet"`
	OccurredAt  time.Time `bson:"occurredAt"`
	Note        string    `bson:"note,omitempty"`
	SyncRun     string    `bson:"syncRun"`
}

// SyncLog records one mirror run.
type SyncLog struct {
	CollectionName  string    `bson:"collectionName"`
	OwnerID         string    `bson:"ownerId"`
	SyncTimestamp   time.Time `bson:"syncTimestamp"`
	RecordsUploaded int64     `bson:"recordsUploaded"`
	RecordsDeleted  int64     `bson:"recordsDeleted"`
}

// Result summarizes a Mirror call.
type Result struct {
	Upserted int64
	Modified int64
	Deleted  int64
}

// MongoRepository mirrors owner snapshots into per-owner collections.
type MongoRepository struct {
	provider CollectionProvider
	now      func() time.Time
}

func NewMongoRepository(provider CollectionProvider) *MongoRepository {
	return &MongoRepository{provider: provider, now: time.Now}
}

// CollectionName is the collection holding owner's mirror. The owner is
// query-escaped so reserved characters never reach the collection name.
func CollectionName(owner string) string {
	return fmt.Sprintf("%s_%s", TransactionsCollection, url.QueryEscape(owner))
}

// Mirror replaces owner's mirrored ledger with snapshot. Documents are keyed
// by content fingerprint, so repeated runs converge; documents missing from
// snapshot are deleted.
func (r *MongoRepository) Mirror(ctx context.Context, owner string, snapshot []core.Transaction) (Result, error) {
	if owner == "" {
		return Result{}, core.ErrNotAuthenticated
	}
	runID := uuid.NewString()
	name := CollectionName(owner)
	collection := r.provider.Collection(name)

	var res Result
	if len(snapshot) > 0 {
		models := make([]mongo.WriteModel, 0, len(snapshot))
		for _, tx := range snapshot {
			doc := toDocument(owner, tx, runID)
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": doc.Fingerprint}).
				SetUpdate(bson.M{"$set": doc}).
				SetUpsert(true))
		}
		written, err := collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		if err != nil {
			return Result{}, fmt.Errorf("mirror %s: %w", name, err)
		}
		res.Upserted = written.UpsertedCount
		res.Modified = written.ModifiedCount
	}

	deleted, err := collection.DeleteMany(ctx, staleFilter(runID))
	if err != nil {
		return res, fmt.Errorf("prune %s: %w", name, err)
	}
	res.Deleted = deleted.DeletedCount

	_, err = r.provider.Collection(SyncLogCollection).InsertOne(ctx, SyncLog{
		CollectionName:  name,
		OwnerID:         owner,
		SyncTimestamp:   r.now(),
		RecordsUploaded: int64(len(snapshot)),
		RecordsDeleted:  res.Deleted,
	})
	if err != nil {
		return res, fmt.Errorf("record sync log: %w", err)
	}
	return res, nil
}

func toDocument(owner string, tx core.Transaction, runID string) Document {
	n := tx.Normalized()
	return Document{
		Fingerprint: backup.Fingerprint(n),
		OwnerID:     owner,
		Amount:      n.Amount.String(),
		Kind:        n.Kind.String(),
		Category:    n.Category,
		Wallet:      n.Wallet,
		OccurredAt:  n.OccurredAt.UTC(),
		Note:        n.Note,
		SyncRun:     runID,
	}
}
