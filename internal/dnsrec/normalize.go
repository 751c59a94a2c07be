package dnsrec

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// NormalizeDomain maps a raw domain to its canonical form: lower-case,
// no trailing root dot, punycode where the name is representable. Two
// controllers reporting the same name with different casing or a
// trailing dot converge on one string. Empty input stays empty.
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimSuffix(dns.CanonicalName(s), ".")
	if ascii, err := idna.ToASCII(s); err == nil && ascii != "" {
		s = ascii
	}
	return s
}

// Identity derives the canonical record id: a hex SHA-256 over
// "kind:domain:target". It is a pure function of the normalized tuple,
// so independent observations of one logical record collapse to one id
// without coordination.
func Identity(kind Kind, domain, target string) string {
	sum := sha256.Sum256([]byte(string(kind) + ":" + domain + ":" + target))
	return hex.EncodeToString(sum[:])
}

// Key is the comparable normalized tuple used for delta matching.
type Key struct {
	Kind   Kind
	Domain string
	Target string
}

func KeyOf(r Record) Key {
	return Key{Kind: r.Kind(), Domain: r.Domain(), Target: r.Target()}
}

func (k Key) Identity() string {
	return Identity(k.Kind, k.Domain, k.Target)
}
