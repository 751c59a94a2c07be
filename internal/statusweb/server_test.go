package statusweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/dnsmesh/internal/dnsrec"
	"github.com/danmuck/dnsmesh/internal/ledger"
	"github.com/danmuck/dnsmesh/internal/testutil/testlog"
)

func TestDashboardRendersLedgerContents(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	l, err := ledger.Open(filepath.Join(t.TempDir(), "status.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	if err := l.RecordController(ctx, "ctrl-a.example.com", "key"); err != nil {
		t.Fatalf("record controller: %v", err)
	}
	if err := l.RecordSite(ctx, "site-a", "ctrl-a.example.com", "Default"); err != nil {
		t.Fatalf("record site: %v", err)
	}
	id, err := l.UpsertRecord(ctx, dnsrec.KindAddress, "host.example.com", "10.0.0.1", []byte(`{}`), "site-a")
	if err != nil {
		t.Fatalf("upsert record: %v", err)
	}
	if err := l.LogSyncEvent(ctx, id, "site-a", ledger.StatusCreated); err != nil {
		t.Fatalf("log event: %v", err)
	}

	srv, err := NewServer(l, ":0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"ctrl-a.example.com", "host.example.com", "10.0.0.1", "site-a", "CREATED", "Default"} {
		if !strings.Contains(body, want) {
			t.Fatalf("rendered page missing %q", want)
		}
	}
}

func TestDashboardUnknownPathIs404(t *testing.T) {
	testlog.Start(t)

	l, err := ledger.Open(filepath.Join(t.TempDir(), "status.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	srv, err := NewServer(l, ":0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestNewServerRequiresAddr(t *testing.T) {
	testlog.Start(t)

	l, err := ledger.Open(filepath.Join(t.TempDir(), "status.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	if _, err := NewServer(l, "  "); err == nil {
		t.Fatalf("expected error for blank addr")
	}
}
