package dnsrec

import "strings"

// Kind is a controller record type tag as it appears on the wire.
type Kind string

const (
	KindAddress      Kind = "A_RECORD"
	KindAddressV6    Kind = "AAAA_RECORD"
	KindAlias        Kind = "CNAME_RECORD"
	KindMailExchange Kind = "MX_RECORD"
	KindText         Kind = "TXT_RECORD"
)

// Known reports whether the kind is one the sync engine understands.
func (k Kind) Known() bool {
	switch k {
	case KindAddress, KindAddressV6, KindAlias, KindMailExchange, KindText:
		return true
	}
	return false
}

// KindSet is the configured allow-list of record kinds eligible for sync.
type KindSet map[Kind]struct{}

// NewKindSet builds a KindSet from raw config strings. Unknown or empty
// entries are dropped rather than rejected.
func NewKindSet(kinds []string) KindSet {
	set := make(KindSet, len(kinds))
	for _, raw := range kinds {
		k := Kind(strings.ToUpper(strings.TrimSpace(raw)))
		if k.Known() {
			set[k] = struct{}{}
		}
	}
	return set
}

func (s KindSet) Allows(k Kind) bool {
	_, ok := s[k]
	return ok
}
