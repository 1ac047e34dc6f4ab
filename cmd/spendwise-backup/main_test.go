package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/backup/cloud"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
	"spendwise/internal/storage/memory"
)

func seeded(owner string) *memory.Store {
	return memory.NewWithTransactions([]core.Transaction{
		{OwnerID: owner, Amount: decimal.NewFromInt(30), Kind: core.Expense, Category: "Food", Wallet: "Cash", OccurredAt: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)},
		{OwnerID: owner, Amount: decimal.NewFromInt(1000), Kind: core.Income, Category: "Salary", Wallet: "Bank", OccurredAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	})
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
		want    options
		wantErr string
	}{
		{"export", "export", []string{"-owner", "alice", "-out", "x.json"}, options{owner: "alice", out: "x.json"}, ""},
		{"import", "import", []string{"-owner", "alice", "-in", "x.json", "-allow-duplicates"}, options{owner: "alice", in: "x.json", allowDuplicates: true}, ""},
		{"missing owner", "export", nil, options{}, "-owner is required"},
		{"blank owner", "cloud-status", []string{"-owner", "  "}, options{}, "-owner is required"},
		{"import without file", "import", []string{"-owner", "alice"}, options{}, "-in is required"},
		{"flag of another command", "export", []string{"-owner", "alice", "-in", "x.json"}, options{}, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.command, tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExportThenImport(t *testing.T) {
	ctx := t.Context()
	out := filepath.Join(t.TempDir(), "backups", "alice.json")

	source, closeSource := newBackupService(seeded("alice"), "alice", nil, nil, time.UTC, log.Discard())
	defer closeSource()
	var stdout bytes.Buffer
	if err := dispatch(ctx, "export", source, options{owner: "alice", out: out}, &stdout); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), out) {
		t.Fatalf("unexpected output %q", stdout.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}

	target := memory.New()
	dest, closeDest := newBackupService(target, "bob", nil, nil, time.UTC, log.Discard())
	defer closeDest()

	importOnce := func() services.ImportResult {
		t.Helper()
		stdout.Reset()
		if err := dispatch(ctx, "import", dest, options{owner: "bob", in: out}, &stdout); err != nil {
			t.Fatal(err)
		}
		var result services.ImportResult
		if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
			t.Fatalf("decode result %q: %v", stdout.String(), err)
		}
		return result
	}

	first := importOnce()
	if first.Inserted != 2 || first.Skipped != 0 {
		t.Fatalf("unexpected first import %+v", first)
	}
	second := importOnce()
	if second.Inserted != 0 || second.Skipped != 2 {
		t.Fatalf("expected duplicates to be skipped, got %+v", second)
	}

	txs, err := target.AllForOwner(ctx, "bob")
	if err != nil || len(txs) != 2 {
		t.Fatalf("expected 2 transactions for bob, got %d %v", len(txs), err)
	}
}

func TestImportRejectsMalformedFile(t *testing.T) {
	in := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(in, []byte(`{"version": 99}`), 0o600); err != nil {
		t.Fatal(err)
	}
	svc, closeQueue := newBackupService(memory.New(), "alice", nil, nil, time.UTC, log.Discard())
	defer closeQueue()

	err := dispatch(t.Context(), "import", svc, options{owner: "alice", in: in}, &bytes.Buffer{})
	if !errors.Is(err, core.ErrMalformedBackup) {
		t.Fatalf("expected malformed backup, got %v", err)
	}
}

func TestCloudCommands(t *testing.T) {
	ctx := t.Context()

	t.Run("disabled", func(t *testing.T) {
		svc, closeQueue := newBackupService(seeded("alice"), "alice", nil, nil, time.UTC, log.Discard())
		defer closeQueue()
		err := dispatch(ctx, "cloud-backup", svc, options{owner: "alice"}, &bytes.Buffer{})
		if !errors.Is(err, services.ErrCloudDisabled) {
			t.Fatalf("expected cloud disabled, got %v", err)
		}
	})

	t.Run("backup and status", func(t *testing.T) {
		manager := cloud.NewManager(cloud.NewMemoryStore(), log.Discard())
		svc, closeQueue := newBackupService(seeded("alice"), "alice", manager, nil, time.UTC, log.Discard())
		defer closeQueue()

		var stdout bytes.Buffer
		if err := dispatch(ctx, "cloud-backup", svc, options{owner: "alice"}, &stdout); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(stdout.String(), "Uploaded 2 transactions") {
			t.Fatalf("unexpected output %q", stdout.String())
		}

		stdout.Reset()
		if err := dispatch(ctx, "cloud-status", svc, options{owner: "alice"}, &stdout); err != nil {
			t.Fatal(err)
		}
		var status services.CloudStatus
		if err := json.Unmarshal(stdout.Bytes(), &status); err != nil || !status.Exists {
			t.Fatalf("expected an existing backup, got %q %v", stdout.String(), err)
		}
	})
}
