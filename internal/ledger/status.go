package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Read-only projection queries backing the status dashboard. Nothing in
// here writes; the dashboard is a view over state the engine already
// committed.

type ControllerRow struct {
	Host        string
	LastContact string
}

type SiteRow struct {
	UUID           string
	ControllerHost string
	Name           string
	LastSynced     string
}

type RecordRow struct {
	Kind    string
	Domain  string
	Target  string
	Origins []string
}

type EventRow struct {
	Timestamp string
	Domain    string
	SiteName  string
	Status    string
}

func (l *Ledger) Controllers(ctx context.Context) ([]ControllerRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT host, last_contact FROM controllers ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list controllers: %w", err)
	}
	defer rows.Close()

	var out []ControllerRow
	for rows.Next() {
		var r ControllerRow
		if err := rows.Scan(&r.Host, &r.LastContact); err != nil {
			return nil, fmt.Errorf("ledger: list controllers: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *Ledger) Sites(ctx context.Context) ([]SiteRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT uuid, controller_host, name, last_synced FROM sites ORDER BY controller_host, name`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list sites: %w", err)
	}
	defer rows.Close()

	var out []SiteRow
	for rows.Next() {
		var r SiteRow
		if err := rows.Scan(&r.UUID, &r.ControllerHost, &r.Name, &r.LastSynced); err != nil {
			return nil, fmt.Errorf("ledger: list sites: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordRows returns the consolidated record view with origin site ids,
// shaped for display.
func (l *Ledger) RecordRows(ctx context.Context) ([]RecordRow, error) {
	snapshot, err := l.AllRecordsWithOrigins(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RecordRow, 0, len(snapshot))
	for _, rec := range snapshot {
		out = append(out, RecordRow{
			Kind:    string(rec.Kind),
			Domain:  rec.Domain,
			Target:  rec.Target,
			Origins: rec.Origins,
		})
	}
	return out, nil
}

// RecentEvents returns the newest replication outcomes joined with the
// record domain and the target site name, newest first.
func (l *Ledger) RecentEvents(ctx context.Context, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT e.timestamp, COALESCE(r.domain, e.record_id), COALESCE(s.name, e.site_uuid), e.status
		 FROM sync_events e
		 LEFT JOIN dns_records r ON e.record_id = r.id
		 LEFT JOIN sites s ON e.site_uuid = s.uuid
		 ORDER BY e.id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.Timestamp, &r.Domain, &r.SiteName, &r.Status); err != nil {
			return nil, fmt.Errorf("ledger: recent events: %w", err)
		}
		r.Status = strings.ToUpper(r.Status)
		out = append(out, r)
	}
	return out, rows.Err()
}
