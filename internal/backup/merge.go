package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"spendwise/internal/core"
)

// Import rebinds every record of env to targetOwner and returns them as a new
// slice ready for insertion. Only the owner and id change; env is never
// modified. Blank wallets, which old clients wrote, become the first default
// wallet. Every record must pass the entry rules, otherwise the whole payload
// is rejected with core.ErrMalformedBackup.
func Import(env Envelope, targetOwner string) ([]core.Transaction, error) {
	if strings.TrimSpace(targetOwner) == "" {
		return nil, core.ErrNotAuthenticated
	}
	out := make([]core.Transaction, len(env.Records))
	for i, r := range env.Records {
		t := r
		t.ID = 0
		t.OwnerID = targetOwner
		if strings.TrimSpace(t.Wallet) == "" {
			t.Wallet = core.DefaultWallets[0]
		}
		if err := t.Normalized().Validate(); err != nil {
			return nil, core.MalformedBackup("record %d: %v", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// Fingerprint identifies a record by its content, ignoring id and owner, so
// the same backup imported twice produces the same set of fingerprints.
func Fingerprint(t core.Transaction) string {
	n := t.Normalized()
	var b strings.Builder
	b.WriteString(n.Amount.String())
	b.WriteByte('|')
	b.WriteString(n.Kind.String())
	b.WriteByte('|')
	b.WriteString(n.Category)
	b.WriteByte('|')
	b.WriteString(n.Wallet)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(n.OccurredAt.UnixMilli(), 10))
	b.WriteByte('|')
	b.WriteString(n.Note)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Dedupe drops incoming records whose fingerprint is already present in
// existing or earlier in incoming. It returns the kept records and the
// number dropped.
func Dedupe(incoming, existing []core.Transaction) ([]core.Transaction, int) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, t := range existing {
		seen[Fingerprint(t)] = struct{}{}
	}
	kept := make([]core.Transaction, 0, len(incoming))
	skipped := 0
	for _, t := range incoming {
		fp := Fingerprint(t)
		if _, dup := seen[fp]; dup {
			skipped++
			continue
		}
		seen[fp] = struct{}{}
		kept = append(kept, t)
	}
	return kept, skipped
}

// Inserter is the part of a transaction store an import needs.
type Inserter interface {
	Insert(ctx context.Context, tx core.Transaction) (int64, error)
}

// InsertAll inserts txs one at a time in order. Rows already inserted stay
// when a later one fails; the failure is reported as a
// *core.PartialImportError carrying both counts and the first error.
func InsertAll(ctx context.Context, store Inserter, txs []core.Transaction) (int, error) {
	inserted, failed := 0, 0
	var first error
	for _, t := range txs {
		if err := ctx.Err(); err != nil {
			failed += len(txs) - inserted - failed
			if first == nil {
				first = err
			}
			break
		}
		if _, err := store.Insert(ctx, t); err != nil {
			failed++
			if first == nil {
				first = err
			}
			continue
		}
		inserted++
	}
	if failed > 0 {
		return inserted, &core.PartialImportError{Inserted: inserted, Failed: failed, Err: first}
	}
	return inserted, nil
}
