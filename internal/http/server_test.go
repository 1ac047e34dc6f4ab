package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"spendwise/internal/auth"
	"spendwise/internal/backup/cloud"
	"spendwise/internal/budget"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/services"
	"spendwise/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type testEnv struct {
	srv    *Server
	tokens *auth.Tokens
	ledger *services.TransactionService
	store  *memory.Store
}

type envOptions struct {
	cloud   bool
	limiter ratelimit.Allower
	seed    []core.Transaction
}

func newTestEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()
	store := memory.NewWithTransactions(o.seed)
	queue := services.NewWriteQueue(log.Discard())
	t.Cleanup(queue.Close)

	owners := auth.ContextOwner{}
	ledger := services.NewTransactionService(store, owners, services.TransactionServiceOptions{
		Queue:    queue,
		Location: time.UTC,
		Logger:   log.Discard(),
	})
	clock := fixedClock(testNow)
	tracker := budget.NewTracker(store, clock)
	var manager *cloud.Manager
	if o.cloud {
		manager = cloud.NewManager(cloud.NewMemoryStore(), log.Discard())
	}
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(Services{
		Ledger:    ledger,
		Dashboard: services.NewDashboardService(ledger, tracker, services.DashboardOptions{Clock: clock, Logger: log.Discard()}),
		Budget:    services.NewBudgetService(tracker, owners, ledger.Revisions(), log.Discard()),
		Backup:    services.NewBackupService(ledger, manager, log.Discard()),
	}, Options{
		Tokens:         tokens,
		Limiter:        o.limiter,
		MaxImportBytes: 64 << 10,
		Clock:          func() time.Time { return testNow },
		Logger:         log.Discard(),
	})
	return &testEnv{srv: srv, tokens: tokens, ledger: ledger, store: store}
}

func (e *testEnv) token(t *testing.T, owner string) string {
	t.Helper()
	tok, err := e.tokens.Issue(owner)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case []byte:
		rd = bytes.NewReader(b)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, owner))
	}
	w := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expense(amount, category, date string) map[string]any {
	return map[string]any{"amount": amount, "type": "expense", "category": category, "wallet": "Cash", "date": date}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	for _, path := range []string{"/health", "/ready"} {
		if w := env.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
	if w := env.do(t, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "spendwise_http_requests_total") {
		t.Fatalf("metrics endpoint missing collectors: %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	other, _ := auth.NewTokens("other-secret", time.Hour)
	foreign, _ := other.Issue("alice")

	tests := map[string]string{
		"no header":    "",
		"wrong scheme": "Basic " + env.token(t, "alice"),
		"bad token":    "Bearer nope",
		"wrong secret": "Bearer " + foreign,
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			env.srv.Handler.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodPost, "/api/transactions", "alice", map[string]any{
		"amount": 12.5, "type": "expense", "category": "  ", "wallet": "Cash", "date": "2025-03-02", "note": "lunch\x00",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	created := decode[transactionResponse](t, w)
	if created.ID == 0 || created.Category != core.CategoryOthers || created.Note != "lunch" || !created.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected created transaction %+v", created)
	}
	path := "/api/transactions/" + decimal.NewFromInt(created.ID).String()

	if w := env.do(t, http.MethodGet, path, "alice", nil); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}

	w = env.do(t, http.MethodPut, path, "alice", expense("20", "Food", "2025-03-03"))
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body)
	}
	if got := decode[transactionResponse](t, w); got.Category != "Food" || got.ID != created.ID {
		t.Fatalf("unexpected update %+v", got)
	}

	list := decode[struct {
		Transactions []transactionResponse `json:"transactions"`
	}](t, env.do(t, http.MethodGet, "/api/transactions?year=2025&month=3", "alice", nil))
	if len(list.Transactions) != 1 {
		t.Fatalf("expected 1 transaction in March, got %d", len(list.Transactions))
	}
	empty := decode[struct {
		Transactions []transactionResponse `json:"transactions"`
	}](t, env.do(t, http.MethodGet, "/api/transactions?year=2025&month=2", "alice", nil))
	if empty.Transactions == nil || len(empty.Transactions) != 0 {
		t.Fatalf("expected an empty list for February, got %+v", empty.Transactions)
	}

	if w := env.do(t, http.MethodDelete, path, "alice", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, path, "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestOtherOwnersRecordsAreForbidden(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	created := decode[transactionResponse](t, env.do(t, http.MethodPost, "/api/transactions", "alice", expense("5", "Food", "2025-03-01")))
	path := "/api/transactions/" + decimal.NewFromInt(created.ID).String()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			w := env.do(t, method, path, "mallory", expense("1", "Food", "2025-03-01"))
			if w.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", w.Code)
			}
		})
	}
}

func TestInvalidRequests(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"zero amount", http.MethodPost, "/api/transactions", expense("0", "Food", ""), http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/api/transactions", map[string]any{"amount": "1", "type": "transfer", "wallet": "Cash"}, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/transactions", expense("1", "Food", "03/02/2025"), http.StatusBadRequest},
		{"missing wallet", http.MethodPost, "/api/transactions", map[string]any{"amount": "1", "type": "income"}, http.StatusBadRequest},
		{"not json", http.MethodPost, "/api/transactions", "amount=1", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/transactions/abc", nil, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/transactions/999", nil, http.StatusNotFound},
		{"month 13", http.MethodGet, "/api/summary?year=2025&month=13", nil, http.StatusBadRequest},
		{"month 0", http.MethodGet, "/api/summary?month=0", nil, http.StatusBadRequest},
		{"year not a number", http.MethodGet, "/api/yearly?year=twenty", nil, http.StatusBadRequest},
		{"negative budget", http.MethodPut, "/api/budget", map[string]any{"amount": "-5"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, "alice", tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body)
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Fatalf("expected an error body, got %s", w.Body)
			}
		})
	}
}

func TestSummaryWithBudget(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.do(t, http.MethodPost, "/api/transactions", "alice", expense("60", "Food", "2025-03-02"))
	env.do(t, http.MethodPost, "/api/transactions", "alice", map[string]any{"amount": "500", "type": "income", "wallet": "Bank", "date": "2025-03-01"})

	w := env.do(t, http.MethodGet, "/api/budget", "alice", nil)
	if got := decode[budgetResponse](t, w); got.Set || got.Amount != nil {
		t.Fatalf("expected no budget, got %+v", got)
	}
	if w := env.do(t, http.MethodPut, "/api/budget", "alice", map[string]any{"amount": 100}); w.Code != http.StatusOK {
		t.Fatalf("set budget: %d %s", w.Code, w.Body)
	}

	w = env.do(t, http.MethodGet, "/api/summary", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: %d %s", w.Code, w.Body)
	}
	var got struct {
		Year   int `json:"year"`
		Month  int `json:"month"`
		Totals struct {
			Expense decimal.Decimal `json:"expense"`
			Balance decimal.Decimal `json:"balance"`
		} `json:"totals"`
		Categories []categoryResponse `json:"categories"`
		Budget     *struct {
			Tier      string          `json:"tier"`
			Remaining decimal.Decimal `json:"remaining"`
		} `json:"budget"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Year != 2025 || got.Month != 3 {
		t.Fatalf("summary should default to the current month, got %d-%d", got.Year, got.Month)
	}
	if !got.Totals.Expense.Equal(decimal.NewFromInt(60)) || !got.Totals.Balance.Equal(decimal.NewFromInt(440)) {
		t.Fatalf("unexpected totals %+v", got.Totals)
	}
	if len(got.Categories) != 1 || got.Categories[0].Color == "" {
		t.Fatalf("unexpected categories %+v", got.Categories)
	}
	if got.Budget == nil || got.Budget.Tier != "warning" || !got.Budget.Remaining.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected budget status %+v", got.Budget)
	}

	if w := env.do(t, http.MethodDelete, "/api/budget", "alice", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear budget: %d", w.Code)
	}
	if got := decode[summaryResponse](t, env.do(t, http.MethodGet, "/api/summary?year=2025&month=3", "alice", nil)); got.Budget != nil {
		t.Fatal("budget status must disappear once cleared")
	}
}

func TestInsightsAndYearly(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	if w := env.do(t, http.MethodGet, "/api/insights", "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("insights with no expenses: expected 404, got %d", w.Code)
	}

	env.do(t, http.MethodPost, "/api/transactions", "alice", expense("100", "Food", "2025-02-10"))
	env.do(t, http.MethodPost, "/api/transactions", "alice", expense("150", "Food", "2025-03-10"))
	env.do(t, http.MethodPost, "/api/transactions", "alice", expense("40", "Transport", "2025-03-11"))

	ins := decode[insightsResponse](t, env.do(t, http.MethodGet, "/api/insights", "alice", nil))
	if ins.State != "changed" || ins.TopIncrease == nil || ins.TopIncrease.Category != "Food" {
		t.Fatalf("unexpected insights %+v", ins)
	}
	if ins.Top == nil || len(ins.Top.Entries) != 2 || ins.Top.Entries[0].Category != "Food" {
		t.Fatalf("unexpected ranking %+v", ins.Top)
	}

	y := decode[yearlyResponse](t, env.do(t, http.MethodGet, "/api/yearly?year=2025", "alice", nil))
	if len(y.Months) != 12 || !y.Months[2].Totals.Expense.Equal(decimal.NewFromInt(190)) {
		t.Fatalf("unexpected months %+v", y.Months)
	}
	if !y.Totals.Expense.Equal(decimal.NewFromInt(290)) {
		t.Fatalf("unexpected yearly total %s", y.Totals.Expense)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	if w := env.do(t, http.MethodGet, "/api/backup/export", "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("empty export: expected 404, got %d", w.Code)
	}

	env.do(t, http.MethodPost, "/api/transactions", "alice", expense("10", "Food", "2025-03-01"))
	env.do(t, http.MethodPost, "/api/transactions", "alice", expense("20", "Bills", "2025-03-02"))

	w := env.do(t, http.MethodGet, "/api/backup/export", "alice", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment;") {
		t.Fatalf("export: %d %v", w.Code, w.Header())
	}
	data := w.Body.Bytes()

	tests := []struct {
		name     string
		path     string
		inserted int
		skipped  int
	}{
		{"new owner", "/api/backup/import", 2, 0},
		{"again is deduplicated", "/api/backup/import", 0, 2},
		{"duplicates allowed", "/api/backup/import?allow_duplicates=true", 2, 0},
	}
	for _, tt := range tests {
		w := env.do(t, http.MethodPost, tt.path, "bob", data)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", tt.name, w.Code, w.Body)
		}
		res := decode[services.ImportResult](t, w)
		if res.Inserted != tt.inserted || res.Skipped != tt.skipped || res.BatchID == "" {
			t.Fatalf("%s: unexpected result %+v", tt.name, res)
		}
	}

	bob, _ := env.store.AllForOwner(t.Context(), "bob")
	if len(bob) != 4 {
		t.Fatalf("expected bob to own 4 records, got %d", len(bob))
	}
}

func TestImportRejects(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	if w := env.do(t, http.MethodPost, "/api/backup/import", "alice", `{"transactions": 5}`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed: expected 400, got %d", w.Code)
	}
	record := func(note string) string {
		return `{"userId":"x","amount":5,"type":"expense","category":"Food","wallet":"Cash","dateTimestamp":1740000000000,"note":"` + note + `"}`
	}
	payload := `{"exportDate":1,"version":1,"transactionCount":2,"transactions":[` +
		record("ok") + "," + record(strings.Repeat("n", 501)) + `]}`
	if w := env.do(t, http.MethodPost, "/api/backup/import", "alice", payload); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid record: expected 400, got %d %s", w.Code, w.Body)
	}
	if rows, _ := env.store.AllForOwner(t.Context(), "alice"); len(rows) != 0 {
		t.Fatalf("a rejected import must write nothing, got %d rows", len(rows))
	}
	big := bytes.Repeat([]byte(" "), 65<<10)
	if w := env.do(t, http.MethodPost, "/api/backup/import", "alice", big); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized: expected 413, got %d", w.Code)
	}
}

func TestCloudEndpoints(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		if w := env.do(t, http.MethodPost, "/api/backup/cloud", "alice", nil); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", w.Code)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		env := newTestEnv(t, envOptions{cloud: true})
		if w := env.do(t, http.MethodPost, "/api/backup/cloud", "alice", nil); w.Code != http.StatusNotFound {
			t.Fatalf("empty ledger must not be uploaded, got %d", w.Code)
		}
		env.do(t, http.MethodPost, "/api/transactions", "alice", expense("10", "Food", "2025-03-01"))

		w := env.do(t, http.MethodPost, "/api/backup/cloud", "alice", nil)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"uploaded":1`) {
			t.Fatalf("upload: %d %s", w.Code, w.Body)
		}
		if st := decode[services.CloudStatus](t, env.do(t, http.MethodGet, "/api/backup/cloud", "alice", nil)); !st.Exists {
			t.Fatal("expected cloud backup to exist")
		}

		w = env.do(t, http.MethodPost, "/api/backup/cloud/restore", "alice", nil)
		if res := decode[services.ImportResult](t, w); w.Code != http.StatusOK || res.Skipped != 1 {
			t.Fatalf("restore onto the same ledger should skip, got %d %+v", w.Code, res)
		}

		if w := env.do(t, http.MethodDelete, "/api/backup/cloud", "alice", nil); w.Code != http.StatusNoContent {
			t.Fatalf("delete: %d", w.Code)
		}
		if st := decode[services.CloudStatus](t, env.do(t, http.MethodGet, "/api/backup/cloud", "alice", nil)); st.Exists {
			t.Fatal("expected cloud backup gone")
		}
	})
}

func TestWritesAreRateLimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1})
	env := newTestEnv(t, envOptions{limiter: limiter})
	defer env.srv.Shutdown(t.Context())

	if w := env.do(t, http.MethodPost, "/api/transactions", "alice", expense("1", "Food", "")); w.Code != http.StatusCreated {
		t.Fatalf("first write: %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/transactions", "alice", expense("1", "Food", "")); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: expected 429, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/transactions", "bob", expense("1", "Food", "")); w.Code != http.StatusCreated {
		t.Fatalf("other owners keep their own budget, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/transactions", "alice", nil); w.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", w.Code)
	}
}
