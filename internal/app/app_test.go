package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/handelsbanken-explorer/internal/config"
	"github.com/samvad-hq/handelsbanken-explorer/pkg/publishers"
)

const accountsBody = `{"accounts":[
	{"accountId":"acc1","ownerName":"Alice","currency":"SEK"},
	{"accountId":"acc2","ownerName":"Bob","currency":"SEK"}
]}`

// newSandbox serves accounts and transactions. acc2 answers 404 when failAcc2 is set.
func newSandbox(t *testing.T, failAcc2 bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/openbanking/psd2/v2/accounts", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, accountsBody)
	})
	mux.HandleFunc("/openbanking/psd2/v2/accounts/acc1/transactions", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"transactions":[
			{"status":"BOOKED","amount":{"currency":"SEK","content":"-12.50"},"ledgerDate":"2019-05-02","creditDebit":"DEBIT","remittanceInformation":"Coffee"},
			{"status":"PENDING","amount":{"currency":"SEK","content":"100.00"},"creditDebit":"CREDIT"}
		]}`)
	})
	mux.HandleFunc("/openbanking/psd2/v2/accounts/acc2/transactions", func(w http.ResponseWriter, _ *http.Request) {
		if failAcc2 {
			http.Error(w, `{"moreInformation":"account not found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"transactions":[{"status":"BOOKED","amount":{"currency":"SEK","content":"5.00"}}]}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AppName:                "handelsbanken-explorer",
		ClientID:               "abc123",
		Country:                "SE",
		BaseURL:                baseURL + "/openbanking",
		RedirectURI:            "https://example.com",
		HTTPTimeout:            5 * time.Second,
		SkipAuthorization:      true,
		OutputFile:             filepath.Join(dir, "out", "transactions.csv"),
		StorageType:            "bbolt",
		BBoltPath:              filepath.Join(dir, "exported.db"),
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestExplorerPrintsDocuments(t *testing.T) {
	server := newSandbox(t, false)
	explorer, err := NewExplorer(testConfig(t, server.URL), nil)
	if err != nil {
		t.Fatalf("NewExplorer: %v", err)
	}

	var out bytes.Buffer
	if err := explorer.Run(context.Background(), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dec := json.NewDecoder(&out)
	var accounts map[string]any
	if err := dec.Decode(&accounts); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if list, ok := accounts["accounts"].([]any); !ok || len(list) != 2 {
		t.Fatalf("unexpected accounts document %#v", accounts)
	}

	var ids []string
	for dec.More() {
		var block accountTransactions
		if err := dec.Decode(&block); err != nil {
			t.Fatalf("decode transactions block: %v", err)
		}
		body, ok := block.Transactions.Value.(map[string]any)
		if !ok {
			t.Fatalf("transactions document for %s is %T", block.AccountID, block.Transactions.Value)
		}
		if _, ok := body["transactions"]; !ok {
			t.Fatalf("transactions document missing for %s", block.AccountID)
		}
		ids = append(ids, block.AccountID)
	}
	if strings.Join(ids, ",") != "acc1,acc2" {
		t.Fatalf("account order = %v", ids)
	}
}

func TestExplorerJoinsAccountErrors(t *testing.T) {
	server := newSandbox(t, true)
	explorer, err := NewExplorer(testConfig(t, server.URL), nil)
	if err != nil {
		t.Fatalf("NewExplorer: %v", err)
	}

	var out bytes.Buffer
	err = explorer.Run(context.Background(), &out)
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if !strings.Contains(out.String(), `"account_id": "acc1"`) {
		t.Fatalf("acc1 transactions should still be printed:\n%s", out.String())
	}
}

func TestNewExplorerRequiresClientID(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.ClientID = ""
	if _, err := NewExplorer(cfg, nil); err == nil {
		t.Fatalf("expected missing client id error")
	}
}

func TestExporterAppendsOnlyNewRowsOnNextRun(t *testing.T) {
	server := newSandbox(t, false)
	cfg := testConfig(t, server.URL)

	exporter, err := NewExporter(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if err := exporter.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := readCSV(t, cfg.OutputFile)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Account ID" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "acc1" || rows[1][1] != "Alice" || rows[1][3] != "SEK -12.50" {
		t.Fatalf("unexpected first row %v", rows[1])
	}

	again, err := NewExporter(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewExporter (second): %v", err)
	}
	if err := again.Run(context.Background()); err != nil {
		t.Fatalf("Run (second): %v", err)
	}
	rows = readCSV(t, cfg.OutputFile)
	if len(rows) != 4 {
		t.Fatalf("second run must keep earlier rows without duplicating them, got %v", rows)
	}
	if rows[1][0] != "acc1" || rows[3][0] != "acc2" {
		t.Fatalf("unexpected rows after second run %v", rows)
	}
}

func TestExporterPublishesToHTTPSink(t *testing.T) {
	server := newSandbox(t, false)

	var received atomic.Int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt publishers.Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			t.Errorf("decode event: %v", err)
		}
		if evt.Country != "SE" || evt.TransactionKey == "" {
			t.Errorf("unexpected event %#v", evt)
		}
		received.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer sink.Close()

	cfg := testConfig(t, server.URL)
	cfg.StorageType = "none"
	cfg.PublishersFile = filepath.Join(t.TempDir(), "publishers.yaml")
	yaml := fmt.Sprintf("publishers:\n  - id: hook\n    type: http\n    http:\n      url: %s\n", sink.URL)
	if err := os.WriteFile(cfg.PublishersFile, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write publishers file: %v", err)
	}

	exporter, err := NewExporter(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if err := exporter.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if received.Load() != 3 {
		t.Fatalf("expected 3 events, got %d", received.Load())
	}
}

func TestExporterContinuesAfterAccountFailure(t *testing.T) {
	server := newSandbox(t, true)
	cfg := testConfig(t, server.URL)

	exporter, err := NewExporter(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if err := exporter.Run(context.Background()); err == nil {
		t.Fatalf("expected joined account error")
	}
	if rows := readCSV(t, cfg.OutputFile); len(rows) != 3 {
		t.Fatalf("expected header + acc1 rows, got %v", rows)
	}
}

func TestExporterSyncLoopStopsOnCancel(t *testing.T) {
	server := newSandbox(t, false)
	cfg := testConfig(t, server.URL)
	cfg.SyncInterval = 10 * time.Millisecond

	exporter, err := NewExporter(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := exporter.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rows := readCSV(t, cfg.OutputFile); len(rows) != 4 {
		t.Fatalf("later passes must not duplicate rows, got %d", len(rows))
	}
}

func TestNewExporterRejectsUnknownStorage(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.StorageType = "redis"
	if _, err := NewExporter(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected storage error")
	}
	if _, err := os.Stat(cfg.OutputFile); !os.IsNotExist(err) {
		t.Fatalf("output file should not be created, stat err = %v", err)
	}
}

func TestExporterSyncLoopWithMemoryLedger(t *testing.T) {
	server := newSandbox(t, false)
	cfg := testConfig(t, server.URL)
	cfg.StorageType = "memory"
	cfg.SyncInterval = 10 * time.Millisecond

	exporter, err := NewExporter(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := exporter.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rows := readCSV(t, cfg.OutputFile); len(rows) != 4 {
		t.Fatalf("expected header + 3 rows across ticks, got %d", len(rows))
	}
}

func TestNewExporterRejectsSyncWithoutLedger(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.StorageType = "none"
	cfg.SyncInterval = 10 * time.Millisecond

	if _, err := NewExporter(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for sync loop without ledger")
	}
	if _, err := os.Stat(cfg.OutputFile); !os.IsNotExist(err) {
		t.Fatalf("output file should not be created, stat err = %v", err)
	}
}
