// Package backup owns the portable JSON snapshot of a ledger: encoding,
// decoding, and merging a decoded snapshot back into an owner's store.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

// FormatVersion is the only envelope version this codec reads and writes.
const FormatVersion = 1

// Envelope is a decoded backup. Records never carry store ids.
type Envelope struct {
	ExportedAt    time.Time
	FormatVersion int
	Count         int
	Records       []core.Transaction
}

type wireEnvelope struct {
	ExportDate       int64             `json:"exportDate"`
	Version          int               `json:"version"`
	TransactionCount int               `json:"transactionCount"`
	Transactions     []wireTransaction `json:"transactions"`
}

type wireTransaction struct {
	UserID        string      `json:"userId"`
	Amount        json.Number `json:"amount"`
	Type          string      `json:"type"`
	Category      string      `json:"category"`
	Wallet        string      `json:"wallet"`
	DateTimestamp *int64      `json:"dateTimestamp"`
	Note          *string     `json:"note"`
}

// Export wraps txs into an envelope stamped with now. The records are copies
// with ids cleared; every other field is written as stored.
func Export(txs []core.Transaction, now time.Time) Envelope {
	records := make([]core.Transaction, len(txs))
	for i, t := range txs {
		r := t
		r.ID = 0
		records[i] = r
	}
	return Envelope{
		ExportedAt:    now,
		FormatVersion: FormatVersion,
		Count:         len(records),
		Records:       records,
	}
}

// Serialize renders env as indented JSON with a fixed field order. Amounts
// are written as JSON numbers.
func Serialize(env Envelope) ([]byte, error) {
	w := wireEnvelope{
		ExportDate:       env.ExportedAt.UnixMilli(),
		Version:          env.FormatVersion,
		TransactionCount: len(env.Records),
		Transactions:     make([]wireTransaction, 0, len(env.Records)),
	}
	if w.Version == 0 {
		w.Version = FormatVersion
	}
	for _, t := range env.Records {
		ts := t.OccurredAt.UnixMilli()
		wt := wireTransaction{
			UserID:        t.OwnerID,
			Amount:        json.Number(t.Amount.String()),
			Type:          t.Kind.String(),
			Category:      t.Category,
			Wallet:        t.Wallet,
			DateTimestamp: &ts,
		}
		if t.Note != "" {
			note := t.Note
			wt.Note = &note
		}
		w.Transactions = append(w.Transactions, wt)
	}
	out, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return out, nil
}

// Deserialize parses a backup payload. Any structural problem rejects the
// whole payload with an error matching core.ErrMalformedBackup.
func Deserialize(data []byte) (Envelope, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Envelope{}, core.MalformedBackup("empty payload")
	}

	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, core.MalformedBackup("decode: %v", err)
	}
	if w.Version != FormatVersion {
		return Envelope{}, core.MalformedBackup("unsupported version %d", w.Version)
	}
	if w.Transactions == nil {
		return Envelope{}, core.MalformedBackup("missing transactions")
	}

	records := make([]core.Transaction, 0, len(w.Transactions))
	for i, wt := range w.Transactions {
		t, err := wt.transaction()
		if err != nil {
			return Envelope{}, core.MalformedBackup("record %d: %v", i, err)
		}
		records = append(records, t)
	}

	if w.TransactionCount != len(records) {
		log.Default().WithComponent(log.ComponentBackup).Warn("Backup count does not match records",
			"declared", w.TransactionCount,
			log.FieldCount, len(records))
	}

	return Envelope{
		ExportedAt:    time.UnixMilli(w.ExportDate),
		FormatVersion: w.Version,
		Count:         w.TransactionCount,
		Records:       records,
	}, nil
}

func (wt wireTransaction) transaction() (core.Transaction, error) {
	kind, err := core.ParseKind(wt.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	if wt.Amount == "" {
		return core.Transaction{}, fmt.Errorf("missing amount")
	}
	amount, err := decimal.NewFromString(string(wt.Amount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", wt.Amount, err)
	}
	if !amount.IsPositive() {
		return core.Transaction{}, fmt.Errorf("%w: %s", core.ErrInvalidAmount, amount)
	}
	if wt.DateTimestamp == nil {
		return core.Transaction{}, fmt.Errorf("missing dateTimestamp")
	}
	t := core.Transaction{
		OwnerID:    wt.UserID,
		Amount:     amount,
		Kind:       kind,
		Category:   wt.Category,
		Wallet:     wt.Wallet,
		OccurredAt: time.UnixMilli(*wt.DateTimestamp),
	}
	if wt.Note != nil {
		t.Note = *wt.Note
	}
	return t, nil
}

// Filename is the suggested name for an export written at now.
func Filename(now time.Time) string {
	return "expense_backup_" + now.Format("20060102_150405") + ".json"
}
