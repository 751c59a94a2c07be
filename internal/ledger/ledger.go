package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danmuck/dnsmesh/internal/dnsrec"
)

// Sync event outcomes. The event log is append-only; these are the only
// two values ever written.
const (
	StatusCreated = "CREATED"
	StatusFailed  = "FAILED"
)

// Ledger is the durable store of controllers, sites, canonical records,
// their origin edges, and the replication event log. It is the sole
// source of truth consulted during replication.
type Ledger struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS controllers (
		host TEXT PRIMARY KEY,
		credential TEXT,
		last_contact TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sites (
		uuid TEXT PRIMARY KEY,
		controller_host TEXT,
		name TEXT,
		last_synced TEXT,
		FOREIGN KEY (controller_host) REFERENCES controllers(host)
	)`,
	`CREATE TABLE IF NOT EXISTS dns_records (
		id TEXT PRIMARY KEY,
		kind TEXT,
		domain TEXT,
		target TEXT,
		raw_payload BLOB
	)`,
	`CREATE TABLE IF NOT EXISTS record_origins (
		record_id TEXT,
		site_uuid TEXT,
		first_seen TEXT,
		PRIMARY KEY (record_id, site_uuid),
		FOREIGN KEY (record_id) REFERENCES dns_records(id),
		FOREIGN KEY (site_uuid) REFERENCES sites(uuid)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT,
		site_uuid TEXT,
		status TEXT,
		timestamp TEXT,
		FOREIGN KEY (record_id) REFERENCES dns_records(id),
		FOREIGN KEY (site_uuid) REFERENCES sites(uuid)
	)`,
}

// Open creates or opens the ledger database at path, creating parent
// directories and applying the schema idempotently.
func Open(path string) (*Ledger, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		return nil, errors.New("ledger: database path required")
	}
	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", resolved+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", resolved, err)
	}
	// Single writer; sqlite serializes anyway and this avoids SQLITE_BUSY
	// churn between discovery upserts and event appends.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ledger: apply schema: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle. Operations on a closed ledger
// return the driver's closed error rather than panicking, so a pass
// racing shutdown degrades to a pass-level failure.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// RecordController upserts one controller row and refreshes its
// last-contact timestamp.
func (l *Ledger) RecordController(ctx context.Context, host, credential string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO controllers (host, credential, last_contact) VALUES (?, ?, ?)
		 ON CONFLICT(host) DO UPDATE SET credential = excluded.credential, last_contact = excluded.last_contact`,
		host, credential, now())
	if err != nil {
		return fmt.Errorf("ledger: record controller %q: %w", host, err)
	}
	return nil
}

// RecordSite upserts one site row and refreshes its last-synced
// timestamp.
func (l *Ledger) RecordSite(ctx context.Context, siteID, host, name string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sites (uuid, controller_host, name, last_synced) VALUES (?, ?, ?, ?)
		 ON CONFLICT(uuid) DO UPDATE SET controller_host = excluded.controller_host, name = excluded.name, last_synced = excluded.last_synced`,
		siteID, host, name, now())
	if err != nil {
		return fmt.Errorf("ledger: record site %q: %w", siteID, err)
	}
	return nil
}

// UpsertRecord stores one canonical record observation from originSiteID
// and returns the canonical id. The record row's payload is refreshed on
// every call (last writer wins); the origin edge is inserted only if
// absent, so origins accumulate and are never rewritten. Both writes
// happen in one transaction.
func (l *Ledger) UpsertRecord(ctx context.Context, kind dnsrec.Kind, domain, target string, rawPayload []byte, originSiteID string) (string, error) {
	id := dnsrec.Identity(kind, domain, target)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ledger: upsert record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO dns_records (id, kind, domain, target, raw_payload) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET raw_payload = excluded.raw_payload`,
		id, string(kind), domain, target, rawPayload); err != nil {
		return "", fmt.Errorf("ledger: upsert record %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO record_origins (record_id, site_uuid, first_seen) VALUES (?, ?, ?)`,
		id, originSiteID, now()); err != nil {
		return "", fmt.Errorf("ledger: record origin %q/%q: %w", id, originSiteID, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("ledger: upsert record %q: %w", id, err)
	}
	return id, nil
}

// LogSyncEvent appends one immutable replication outcome row.
func (l *Ledger) LogSyncEvent(ctx context.Context, recordID, siteID, status string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sync_events (record_id, site_uuid, status, timestamp) VALUES (?, ?, ?, ?)`,
		recordID, siteID, status, now())
	if err != nil {
		return fmt.Errorf("ledger: log sync event %q/%q: %w", recordID, siteID, err)
	}
	return nil
}

// RecordWithOrigins is one canonical record plus every site observed to
// have independently produced it.
type RecordWithOrigins struct {
	ID      string
	Kind    dnsrec.Kind
	Domain  string
	Target  string
	Raw     json.RawMessage
	Origins []string
}

func (r RecordWithOrigins) HasOrigin(siteID string) bool {
	for _, s := range r.Origins {
		if s == siteID {
			return true
		}
	}
	return false
}

// AllRecordsWithOrigins returns a consistent point-in-time snapshot of
// every record and its origin set, the input to the replication phase.
func (l *Ledger) AllRecordsWithOrigins(ctx context.Context) ([]RecordWithOrigins, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT r.id, r.kind, r.domain, r.target, r.raw_payload, GROUP_CONCAT(o.site_uuid)
		 FROM dns_records r
		 JOIN record_origins o ON r.id = o.record_id
		 GROUP BY r.id
		 ORDER BY r.domain, r.kind, r.target`)
	if err != nil {
		return nil, fmt.Errorf("ledger: snapshot records: %w", err)
	}
	defer rows.Close()

	var out []RecordWithOrigins
	for rows.Next() {
		var rec RecordWithOrigins
		var kind, origins string
		if err := rows.Scan(&rec.ID, &kind, &rec.Domain, &rec.Target, &rec.Raw, &origins); err != nil {
			return nil, fmt.Errorf("ledger: snapshot records: %w", err)
		}
		rec.Kind = dnsrec.Kind(kind)
		rec.Origins = strings.Split(origins, ",")
		sort.Strings(rec.Origins)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: snapshot records: %w", err)
	}
	return out, nil
}
