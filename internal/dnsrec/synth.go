package dnsrec

import (
	"encoding/json"
	"strings"

	"github.com/miekg/dns"
)

// Synthesized client-lease records carry a fixed TTL and are created
// enabled, matching what the controller UI would produce by hand.
const clientRecordTTLSeconds = 3600

type clientRecordDoc struct {
	Type        Kind   `json:"type"`
	Domain      string `json:"domain"`
	IPv4Address string `json:"ipv4Address"`
	Enabled     bool   `json:"enabled"`
	TTLSeconds  int    `json:"ttlSeconds"`
}

// SynthesizeClientRecord turns one connected-client lease into an
// address record eligible for sync. The device label is sanitized to a
// DNS-safe alphabet; the configured suffix is appended only when the
// label is not already qualified with it. Unusable leases (blank name,
// blank address, nothing left after sanitizing) report ok=false.
func SynthesizeClientRecord(name, ip, suffix string) (Record, bool) {
	label := sanitizeLabel(name)
	if label == "" || strings.TrimSpace(ip) == "" {
		return nil, false
	}

	full := label
	if s := strings.ToLower(strings.TrimLeft(strings.TrimSpace(suffix), ".")); s != "" {
		if full != s && !strings.HasSuffix(full, "."+s) {
			full = full + "." + s
		}
	}
	full = NormalizeDomain(full)
	if full == "" {
		return nil, false
	}
	if _, ok := dns.IsDomainName(full); !ok {
		return nil, false
	}

	raw, err := json.Marshal(clientRecordDoc{
		Type:        KindAddress,
		Domain:      full,
		IPv4Address: strings.TrimSpace(ip),
		Enabled:     true,
		TTLSeconds:  clientRecordTTLSeconds,
	})
	if err != nil {
		return nil, false
	}
	return AddressRecord{RecordKind: KindAddress, Name: full, Address: strings.TrimSpace(ip), raw: raw}, true
}

// sanitizeLabel lowers the device label and replaces anything outside
// [a-z0-9.-] with a hyphen, collapsing runs and trimming separators
// from both ends. Dots survive so devices reporting a fully qualified
// name keep it.
func sanitizeLabel(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(lowered))
	lastSep := false
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('-')
			}
			lastSep = true
		}
	}
	return strings.Trim(b.String(), "-.")
}
