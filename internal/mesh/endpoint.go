// Package mesh implements the two-phase discovery/replication engine
// that converges the DNS record sets of independent controllers into
// one loop-free mesh, using the origin ledger as the sole source of
// truth.
package mesh

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/danmuck/dnsmesh/internal/dnsrec"
	"github.com/danmuck/dnsmesh/internal/unifi"
)

// Site is one record partition on a controller.
type Site struct {
	ID   string
	Name string
}

// CreateResult classifies a creation the target accepted, directly or
// by already holding an equivalent record.
type CreateResult int

const (
	CreateAccepted CreateResult = iota
	CreateConverged
)

// Endpoint is the record source/sink capability of one controller. The
// engine makes every skip/continue decision off the returned values and
// errors; implementations never retry within a pass.
type Endpoint interface {
	ListSites(ctx context.Context) ([]Site, error)
	ListDNSRecords(ctx context.Context, siteID string) ([]json.RawMessage, error)
	ListClientRecords(ctx context.Context, siteID string) ([]json.RawMessage, error)
	CreateRecord(ctx context.Context, siteID string, payload json.RawMessage) (CreateResult, error)
}

// ControllerTarget is the per-controller configuration handed to the
// engine as plain values.
type ControllerTarget struct {
	Host             string
	Credential       string
	SiteSelector     string
	VerifySSL        bool
	DomainSuffix     string
	SyncClientLeases bool
}

// Peer pairs one controller's configuration with its capability.
type Peer struct {
	Target   ControllerTarget
	Endpoint Endpoint
}

// NewUnifiPeer builds a Peer backed by the UniFi integration API.
func NewUnifiPeer(target ControllerTarget) (Peer, error) {
	client, err := unifi.NewClient(unifi.Config{
		Host:      target.Host,
		APIKey:    target.Credential,
		VerifySSL: target.VerifySSL,
	})
	if err != nil {
		return Peer{}, err
	}
	return Peer{Target: target, Endpoint: &unifiEndpoint{client: client, target: target}}, nil
}

// unifiEndpoint adapts *unifi.Client to the engine capability,
// synthesizing client-lease records when enabled for the controller.
type unifiEndpoint struct {
	client *unifi.Client
	target ControllerTarget
}

func (e *unifiEndpoint) ListSites(ctx context.Context) ([]Site, error) {
	sites, err := e.client.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Site, 0, len(sites))
	for _, s := range sites {
		out = append(out, Site{ID: s.ID, Name: s.Name})
	}
	return out, nil
}

func (e *unifiEndpoint) ListDNSRecords(ctx context.Context, siteID string) ([]json.RawMessage, error) {
	return e.client.ListDNSRecords(ctx, siteID)
}

func (e *unifiEndpoint) ListClientRecords(ctx context.Context, siteID string) ([]json.RawMessage, error) {
	if !e.target.SyncClientLeases {
		return nil, nil
	}
	leases, err := e.client.ListClients(ctx, siteID)
	if err != nil {
		return nil, err
	}
	var docs []json.RawMessage
	for _, lease := range leases {
		rec, ok := dnsrec.SynthesizeClientRecord(lease.Name, lease.IPAddress, e.target.DomainSuffix)
		if !ok {
			continue
		}
		docs = append(docs, rec.Raw())
	}
	return docs, nil
}

func (e *unifiEndpoint) CreateRecord(ctx context.Context, siteID string, payload json.RawMessage) (CreateResult, error) {
	outcome, err := e.client.CreateRecord(ctx, siteID, payload)
	if err != nil {
		return CreateAccepted, err
	}
	if outcome == unifi.CreateOverlap {
		return CreateConverged, nil
	}
	return CreateAccepted, nil
}

// resolveSite matches the configured selector against the reported
// sites: case-insensitive name match or exact id match.
func resolveSite(sites []Site, selector string) (Site, bool) {
	want := strings.TrimSpace(selector)
	for _, s := range sites {
		if strings.EqualFold(s.Name, want) || s.ID == want {
			return s, true
		}
	}
	return Site{}, false
}
