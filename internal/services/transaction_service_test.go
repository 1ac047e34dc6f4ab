package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage/memory"
)

type ownerKey struct{}

func asOwner(owner string) context.Context {
	return context.WithValue(context.Background(), ownerKey{}, owner)
}

var ctxOwner = OwnerFunc(func(ctx context.Context) (string, error) {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner, nil
})

type recordingPublisher struct {
	mu  sync.Mutex
	ops []string
	err error
}

func (p *recordingPublisher) PublishTransactionChanged(_ context.Context, _ string, _ int64, op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, op)
	return p.err
}

func (p *recordingPublisher) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

func newLedger(t *testing.T, store *memory.Store, pub ChangePublisher) *TransactionService {
	t.Helper()
	q := NewWriteQueue(log.Discard())
	t.Cleanup(q.Close)
	return NewTransactionService(store, ctxOwner, TransactionServiceOptions{
		Queue:     q,
		Publisher: pub,
		Location:  time.UTC,
		Logger:    log.Discard(),
	})
}

func expenseAt(amount int64, category string, y int, m time.Month, d int) core.Transaction {
	return core.Transaction{
		Amount:     decimal.NewFromInt(amount),
		Kind:       core.Expense,
		Category:   category,
		Wallet:     "Cash",
		OccurredAt: time.Date(y, m, d, 12, 0, 0, 0, time.UTC),
	}
}

func TestAddForcesOwner(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newLedger(t, memory.New(), pub)

	tx := expenseAt(120, "", 2025, 3, 4)
	tx.OwnerID = "mallory"
	tx.ID = 99
	got, err := svc.Add(asOwner("alice"), tx)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.ID == 0 || got.ID == 99 || got.OwnerID != "alice" || got.Category != core.CategoryOthers {
		t.Fatalf("unexpected stored transaction %+v", got)
	}
	if ops := pub.Ops(); len(ops) != 1 || ops[0] != "create" {
		t.Fatalf("expected one create message, got %v", ops)
	}
	if svc.Revisions().Get("alice") != 1 {
		t.Fatal("write must bump the owner's revision")
	}
}

func TestOperationsRequireOwner(t *testing.T) {
	svc := newLedger(t, memory.New(), nil)
	ctx := asOwner("  ")

	if _, err := svc.Add(ctx, expenseAt(1, "Food", 2025, 1, 1)); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.List(ctx); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("list: %v", err)
	}
	if err := svc.Delete(ctx, 1); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Subscribe(ctx, func([]core.Transaction) {}); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("subscribe: %v", err)
	}
}

func TestAddRejectsInvalid(t *testing.T) {
	svc := newLedger(t, memory.New(), nil)
	tx := expenseAt(0, "Food", 2025, 1, 1)
	if _, err := svc.Add(asOwner("alice"), tx); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateAndDeleteOtherOwner(t *testing.T) {
	store := memory.New()
	svc := newLedger(t, store, nil)
	own, err := svc.Add(asOwner("alice"), expenseAt(50, "Food", 2025, 2, 1))
	if err != nil {
		t.Fatal(err)
	}

	own.Amount = decimal.NewFromInt(60)
	if _, err := svc.Update(asOwner("bob"), own); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("update: expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(asOwner("bob"), own.ID); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("delete: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(asOwner("bob"), own.ID); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("get: expected ErrForbidden, got %v", err)
	}

	got, err := svc.Get(asOwner("alice"), own.ID)
	if err != nil || !got.Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("record changed by another owner: %+v %v", got, err)
	}

	if _, err := svc.Update(asOwner("alice"), own); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if err := svc.Delete(asOwner("alice"), own.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := svc.Get(asOwner("alice"), own.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListPeriod(t *testing.T) {
	store := memory.NewWithTransactions([]core.Transaction{
		withOwner(expenseAt(10, "Food", 2025, 1, 31), "alice"),
		withOwner(expenseAt(20, "Food", 2025, 2, 1), "alice"),
		withOwner(expenseAt(30, "Food", 2025, 2, 10), "bob"),
	})
	svc := newLedger(t, store, nil)

	got, err := svc.ListPeriod(asOwner("alice"), core.Period{Year: 2025, Month: time.February})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected period listing %+v", got)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	svc := newLedger(t, memory.New(), nil)
	ctx := asOwner("alice")

	snaps := make(chan int, 8)
	cancel, err := svc.Subscribe(ctx, func(s []core.Transaction) { snaps <- len(s) })
	if err != nil {
		t.Fatal(err)
	}
	if n := <-snaps; n != 0 {
		t.Fatalf("initial snapshot should be empty, got %d", n)
	}

	if _, err := svc.Add(ctx, expenseAt(5, "Food", 2025, 1, 1)); err != nil {
		t.Fatal(err)
	}
	if n := <-snaps; n != 1 {
		t.Fatalf("expected snapshot of 1, got %d", n)
	}

	// Another owner's write does not reach alice.
	if _, err := svc.Add(asOwner("bob"), expenseAt(5, "Food", 2025, 1, 1)); err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := svc.Add(ctx, expenseAt(6, "Food", 2025, 1, 2)); err != nil {
		t.Fatal(err)
	}
	select {
	case n := <-snaps:
		t.Fatalf("unexpected snapshot of %d after cancel", n)
	default:
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newLedger(t, memory.New(), pub)
	if _, err := svc.Add(asOwner("alice"), expenseAt(5, "Food", 2025, 1, 1)); err != nil {
		t.Fatalf("write should succeed without the broker: %v", err)
	}
}

func withOwner(tx core.Transaction, owner string) core.Transaction {
	tx.OwnerID = owner
	return tx
}
