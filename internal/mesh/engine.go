package mesh

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/dnsmesh/internal/dnsrec"
	"github.com/danmuck/dnsmesh/internal/ledger"
)

// Engine runs one reconciliation pass at a time: Discovery pulls every
// reachable site's records into the ledger, then Replication pushes
// ledger records each site is missing, never back to an origin site.
// Errors talking to a controller skip that controller for the phase;
// ledger errors end the pass.
type Engine struct {
	ledger *ledger.Ledger
	peers  []Peer
	kinds  dnsrec.KindSet
}

func NewEngine(l *ledger.Ledger, peers []Peer, kinds dnsrec.KindSet) *Engine {
	return &Engine{ledger: l, peers: peers, kinds: kinds}
}

// resolvedPeer carries the immutable (controller, site) pair for one
// pass. Site resolution happens exactly once per pass and the pair is
// threaded explicitly from there.
type resolvedPeer struct {
	peer Peer
	site Site
}

// RunPass executes Discovery then Replication across every configured
// controller. The returned error is a ledger failure; controller
// failures are logged and absorbed.
func (e *Engine) RunPass(ctx context.Context) error {
	passID := uuid.NewString()
	log.Info().Msgf("mesh.pass start id=%s controllers=%d", passID, len(e.peers))

	resolved, err := e.resolvePeers(ctx, passID)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		log.Warn().Msgf("mesh.pass id=%s no reachable controllers, nothing to sync", passID)
		return nil
	}

	if err := e.discover(ctx, passID, resolved); err != nil {
		return err
	}
	if err := e.replicate(ctx, passID, resolved); err != nil {
		return err
	}

	log.Info().Msgf("mesh.pass done id=%s", passID)
	return nil
}

func (e *Engine) resolvePeers(ctx context.Context, passID string) ([]resolvedPeer, error) {
	var resolved []resolvedPeer
	for _, peer := range e.peers {
		host := peer.Target.Host
		if err := e.ledger.RecordController(ctx, host, peer.Target.Credential); err != nil {
			return nil, err
		}

		sites, err := peer.Endpoint.ListSites(ctx)
		if err != nil {
			log.Warn().Msgf("mesh.resolve pass=%s host=%q list sites failed, skipping controller: %v", passID, host, err)
			continue
		}
		site, ok := resolveSite(sites, peer.Target.SiteSelector)
		if !ok {
			log.Warn().Msgf("mesh.resolve pass=%s host=%q site %q not found among %d sites, skipping controller", passID, host, peer.Target.SiteSelector, len(sites))
			continue
		}
		if err := e.ledger.RecordSite(ctx, site.ID, host, site.Name); err != nil {
			return nil, err
		}
		resolved = append(resolved, resolvedPeer{peer: peer, site: site})
	}
	return resolved, nil
}

// discover pulls native and synthesized client records from every
// resolved site into the ledger, tagging each with its origin site.
func (e *Engine) discover(ctx context.Context, passID string, resolved []resolvedPeer) error {
	for _, rp := range resolved {
		host := rp.peer.Target.Host

		native, err := rp.peer.Endpoint.ListDNSRecords(ctx, rp.site.ID)
		if err != nil {
			log.Warn().Msgf("mesh.discovery pass=%s host=%q site=%q fetch failed, skipping: %v", passID, host, rp.site.ID, err)
			continue
		}
		clients, err := rp.peer.Endpoint.ListClientRecords(ctx, rp.site.ID)
		if err != nil {
			log.Warn().Msgf("mesh.discovery pass=%s host=%q site=%q client fetch failed, skipping: %v", passID, host, rp.site.ID, err)
			continue
		}

		stored := 0
		for _, doc := range append(native, clients...) {
			rec, err := dnsrec.Decode(doc)
			if err != nil {
				log.Debug().Msgf("mesh.discovery pass=%s host=%q dropping record: %v", passID, host, err)
				continue
			}
			if !e.kinds.Allows(rec.Kind()) {
				continue
			}
			if _, err := e.ledger.UpsertRecord(ctx, rec.Kind(), rec.Domain(), rec.Target(), rec.Raw(), rp.site.ID); err != nil {
				return err
			}
			stored++
		}
		log.Info().Msgf("mesh.discovery pass=%s host=%q site=%q stored=%d", passID, host, rp.site.ID, stored)
	}
	return nil
}

// replicate pushes every ledger record a site is missing, unless the
// site is one of the record's origins. The live set is re-fetched here
// rather than reusing discovery output so re-running after a partial
// failure stays idempotent.
func (e *Engine) replicate(ctx context.Context, passID string, resolved []resolvedPeer) error {
	snapshot, err := e.ledger.AllRecordsWithOrigins(ctx)
	if err != nil {
		return err
	}
	log.Info().Msgf("mesh.replication pass=%s ledger records=%d", passID, len(snapshot))

	for _, rp := range resolved {
		host := rp.peer.Target.Host

		live, err := rp.peer.Endpoint.ListDNSRecords(ctx, rp.site.ID)
		if err != nil {
			log.Warn().Msgf("mesh.replication pass=%s host=%q site=%q live fetch failed, skipping: %v", passID, host, rp.site.ID, err)
			continue
		}
		liveKeys := make(map[dnsrec.Key]struct{}, len(live))
		for _, doc := range live {
			rec, err := dnsrec.Decode(doc)
			if err != nil {
				continue
			}
			liveKeys[dnsrec.KeyOf(rec)] = struct{}{}
		}

		created, failed := 0, 0
		for _, rec := range snapshot {
			key := dnsrec.Key{Kind: rec.Kind, Domain: rec.Domain, Target: rec.Target}
			if _, ok := liveKeys[key]; ok {
				continue
			}
			if rec.HasOrigin(rp.site.ID) {
				continue
			}

			payload, err := replayPayload(rec.Raw)
			if err != nil {
				log.Warn().Msgf("mesh.replication pass=%s host=%q record=%s payload unusable: %v", passID, host, rec.Domain, err)
				if err := e.ledger.LogSyncEvent(ctx, rec.ID, rp.site.ID, ledger.StatusFailed); err != nil {
					return err
				}
				failed++
				continue
			}

			result, err := rp.peer.Endpoint.CreateRecord(ctx, rp.site.ID, payload)
			status := ledger.StatusCreated
			switch {
			case err != nil:
				log.Warn().Msgf("mesh.replication pass=%s host=%q create %s %s failed: %v", passID, host, rec.Kind, rec.Domain, err)
				status = ledger.StatusFailed
				failed++
			case result == CreateConverged:
				log.Info().Msgf("mesh.replication pass=%s host=%q %s %s already present on target", passID, host, rec.Kind, rec.Domain)
				created++
			default:
				created++
			}
			if err := e.ledger.LogSyncEvent(ctx, rec.ID, rp.site.ID, status); err != nil {
				return err
			}
		}
		log.Info().Msgf("mesh.replication pass=%s host=%q site=%q created=%d failed=%d", passID, host, rp.site.ID, created, failed)
	}
	return nil
}

// replayPayload strips the controller-assigned id from a stored record
// document so it can be posted to a different controller.
func replayPayload(raw json.RawMessage) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("mesh: parse stored payload: %w", err)
	}
	delete(doc, "id")
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("mesh: rebuild payload: %w", err)
	}
	return out, nil
}
