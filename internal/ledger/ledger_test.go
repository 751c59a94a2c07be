package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danmuck/dnsmesh/internal/dnsrec"
	"github.com/danmuck/dnsmesh/internal/testutil/testlog"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestUpsertRecordIdempotentPerOrigin(t *testing.T) {
	testlog.Start(t)
	l := openTestLedger(t)
	ctx := context.Background()

	idA, err := l.UpsertRecord(ctx, dnsrec.KindAddress, "host.example.com", "10.0.0.1", []byte(`{"v":1}`), "site-a")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	idB, err := l.UpsertRecord(ctx, dnsrec.KindAddress, "host.example.com", "10.0.0.1", []byte(`{"v":2}`), "site-a")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if idA != idB {
		t.Fatalf("canonical id changed across upserts: %s vs %s", idA, idB)
	}

	snapshot, err := l.AllRecordsWithOrigins(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("expected exactly one record row, got %d", len(snapshot))
	}
	rec := snapshot[0]
	if len(rec.Origins) != 1 || rec.Origins[0] != "site-a" {
		t.Fatalf("expected exactly one origin edge, got %v", rec.Origins)
	}
	if string(rec.Raw) != `{"v":2}` {
		t.Fatalf("payload not refreshed by second upsert: %s", rec.Raw)
	}
}

func TestOriginSetOnlyGrows(t *testing.T) {
	testlog.Start(t)
	l := openTestLedger(t)
	ctx := context.Background()

	id, err := l.UpsertRecord(ctx, dnsrec.KindAlias, "www.example.com", "host.example.com", []byte(`{}`), "site-a")
	if err != nil {
		t.Fatalf("upsert from site-a: %v", err)
	}
	if _, err := l.UpsertRecord(ctx, dnsrec.KindAlias, "www.example.com", "host.example.com", []byte(`{}`), "site-b"); err != nil {
		t.Fatalf("upsert from site-b: %v", err)
	}
	// Re-observation from the first site must not rewrite the edge set.
	if _, err := l.UpsertRecord(ctx, dnsrec.KindAlias, "www.example.com", "host.example.com", []byte(`{}`), "site-a"); err != nil {
		t.Fatalf("re-upsert from site-a: %v", err)
	}

	snapshot, err := l.AllRecordsWithOrigins(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("expected one record, got %d", len(snapshot))
	}
	rec := snapshot[0]
	if len(rec.Origins) != 2 {
		t.Fatalf("expected two origin edges, got %v", rec.Origins)
	}
	if !rec.HasOrigin("site-a") || !rec.HasOrigin("site-b") {
		t.Fatalf("missing origin edge: %v", rec.Origins)
	}
	if rec.ID != id {
		t.Fatalf("record id drifted: %s vs %s", rec.ID, id)
	}
}

func TestControllerAndSiteUpserts(t *testing.T) {
	testlog.Start(t)
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.RecordController(ctx, "ctrl-1.example.com", "key-1"); err != nil {
		t.Fatalf("record controller: %v", err)
	}
	if err := l.RecordController(ctx, "ctrl-1.example.com", "key-2"); err != nil {
		t.Fatalf("re-record controller: %v", err)
	}
	if err := l.RecordSite(ctx, "site-1", "ctrl-1.example.com", "Default"); err != nil {
		t.Fatalf("record site: %v", err)
	}
	if err := l.RecordSite(ctx, "site-1", "ctrl-1.example.com", "Renamed"); err != nil {
		t.Fatalf("re-record site: %v", err)
	}

	controllers, err := l.Controllers(ctx)
	if err != nil {
		t.Fatalf("controllers: %v", err)
	}
	if len(controllers) != 1 || controllers[0].Host != "ctrl-1.example.com" {
		t.Fatalf("unexpected controllers: %+v", controllers)
	}
	if controllers[0].LastContact == "" {
		t.Fatalf("last_contact not stamped")
	}

	sites, err := l.Sites(ctx)
	if err != nil {
		t.Fatalf("sites: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != "Renamed" {
		t.Fatalf("site upsert did not refresh name: %+v", sites)
	}
}

func TestSyncEventsAppendAndProject(t *testing.T) {
	testlog.Start(t)
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.RecordController(ctx, "ctrl-1", ""); err != nil {
		t.Fatalf("record controller: %v", err)
	}
	if err := l.RecordSite(ctx, "site-b", "ctrl-1", "Branch"); err != nil {
		t.Fatalf("record site: %v", err)
	}
	id, err := l.UpsertRecord(ctx, dnsrec.KindAddress, "host.example.com", "10.0.0.1", []byte(`{}`), "site-a")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := l.LogSyncEvent(ctx, id, "site-b", StatusCreated); err != nil {
		t.Fatalf("log created: %v", err)
	}
	if err := l.LogSyncEvent(ctx, id, "site-b", StatusFailed); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	events, err := l.RecentEvents(ctx, 50)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	// Newest first.
	if events[0].Status != StatusFailed || events[1].Status != StatusCreated {
		t.Fatalf("unexpected event order: %+v", events)
	}
	if events[0].Domain != "host.example.com" || events[0].SiteName != "Branch" {
		t.Fatalf("event join incomplete: %+v", events[0])
	}
}

func TestRecordRowsProjection(t *testing.T) {
	testlog.Start(t)
	l := openTestLedger(t)
	ctx := context.Background()

	if _, err := l.UpsertRecord(ctx, dnsrec.KindText, "example.com", "v=spf1 -all", []byte(`{}`), "site-a"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows, err := l.RecordRows(ctx)
	if err != nil {
		t.Fatalf("record rows: %v", err)
	}
	if len(rows) != 1 || rows[0].Kind != string(dnsrec.KindText) || rows[0].Domain != "example.com" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if len(rows[0].Origins) != 1 || rows[0].Origins[0] != "site-a" {
		t.Fatalf("unexpected origins: %+v", rows[0].Origins)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	testlog.Start(t)
	if _, err := Open("   "); err == nil {
		t.Fatalf("expected error for blank path")
	}
}
