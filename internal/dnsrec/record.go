package dnsrec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownKind = errors.New("dnsrec: unknown record kind")
	ErrEmptyDomain = errors.New("dnsrec: empty domain")
)

// Record is one decoded controller record. Implementations are the
// closed set of per-kind variants below; the raw payload is carried
// verbatim for replay against another controller.
type Record interface {
	Kind() Kind
	Domain() string
	Target() string
	Raw() json.RawMessage
}

// AddressRecord covers A_RECORD and AAAA_RECORD entries.
type AddressRecord struct {
	RecordKind Kind
	Name       string
	Address    string
	raw        json.RawMessage
}

func (r AddressRecord) Kind() Kind           { return r.RecordKind }
func (r AddressRecord) Domain() string       { return r.Name }
func (r AddressRecord) Target() string       { return r.Address }
func (r AddressRecord) Raw() json.RawMessage { return r.raw }

// AliasRecord covers CNAME_RECORD entries.
type AliasRecord struct {
	Name  string
	Alias string
	raw   json.RawMessage
}

func (r AliasRecord) Kind() Kind           { return KindAlias }
func (r AliasRecord) Domain() string       { return r.Name }
func (r AliasRecord) Target() string       { return r.Alias }
func (r AliasRecord) Raw() json.RawMessage { return r.raw }

// MailExchangeRecord covers MX_RECORD entries. The target is the
// composite "host:priority" so two exchanges for one domain stay
// distinct records.
type MailExchangeRecord struct {
	Name     string
	Host     string
	Priority int
	raw      json.RawMessage
}

func (r MailExchangeRecord) Kind() Kind     { return KindMailExchange }
func (r MailExchangeRecord) Domain() string { return r.Name }
func (r MailExchangeRecord) Target() string {
	return r.Host + ":" + strconv.Itoa(r.Priority)
}
func (r MailExchangeRecord) Raw() json.RawMessage { return r.raw }

// TextRecord covers TXT_RECORD entries.
type TextRecord struct {
	Name  string
	Value string
	raw   json.RawMessage
}

func (r TextRecord) Kind() Kind           { return KindText }
func (r TextRecord) Domain() string       { return r.Name }
func (r TextRecord) Target() string       { return r.Value }
func (r TextRecord) Raw() json.RawMessage { return r.raw }

// Decode parses one raw controller record document into its kind
// variant. The domain is normalized here so everything downstream sees
// canonical names only. Unknown kinds return ErrUnknownKind and are
// excluded from sync; a record with no usable domain returns
// ErrEmptyDomain.
func Decode(raw json.RawMessage) (Record, error) {
	var doc struct {
		Type        Kind   `json:"type"`
		Domain      string `json:"domain"`
		IPv4Address string `json:"ipv4Address"`
		IPv6Address string `json:"ipv6Address"`
		Alias       string `json:"alias"`
		Host        string `json:"host"`
		Priority    int    `json:"priority"`
		Value       string `json:"value"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("dnsrec: decode record: %w", err)
	}

	domain := NormalizeDomain(doc.Domain)
	if domain == "" {
		return nil, ErrEmptyDomain
	}

	switch doc.Type {
	case KindAddress:
		return AddressRecord{RecordKind: KindAddress, Name: domain, Address: doc.IPv4Address, raw: raw}, nil
	case KindAddressV6:
		return AddressRecord{RecordKind: KindAddressV6, Name: domain, Address: doc.IPv6Address, raw: raw}, nil
	case KindAlias:
		return AliasRecord{Name: domain, Alias: doc.Alias, raw: raw}, nil
	case KindMailExchange:
		return MailExchangeRecord{Name: domain, Host: doc.Host, Priority: doc.Priority, raw: raw}, nil
	case KindText:
		return TextRecord{Name: domain, Value: doc.Value, raw: raw}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(doc.Type))
	}
}
