// Package unifi talks to the UniFi Network integration API v1 on one
// controller. It is the concrete record source and sink behind the
// reconciliation engine; nothing in here decides sync policy.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrHostRequired   = errors.New("unifi: host required")
	ErrAPIKeyRequired = errors.New("unifi: api key required")
)

// Controller error codes that mean the record is already effectively
// present on the target. A create rejected with one of these converges
// the same as a successful create.
var overlapCodes = map[string]struct{}{
	"api.dns.policy.validation.overlap-with-local-dns": {},
	"api.dns.policy.validation.cname-alias-overlap":    {},
}

// Config describes one controller endpoint.
type Config struct {
	Host      string
	APIKey    string
	VerifySSL bool
	Timeout   time.Duration

	// BaseURL overrides the derived integration API base, for tests.
	BaseURL string
}

const defaultTimeout = 10 * time.Second

// Client is a thin HTTP wrapper over one controller's integration API.
// It holds no mutable state beyond the underlying http.Client; site
// resolution is a pure lookup the caller threads explicitly.
type Client struct {
	host string
	key  string
	base string
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, ErrHostRequired
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		// Controllers ship self-signed certificates by default.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://" + host + "/proxy/network/integration/v1"
	}
	return &Client{
		host: host,
		key:  key,
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

// Host returns the configured controller host identifier.
func (c *Client) Host() string { return c.host }

// APIError is a non-2xx controller response with whatever code and
// message the controller attached. Transport failures are not APIErrors;
// they surface as wrapped errors from the http client.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("unifi: %s: status=%d code=%s message=%q", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("unifi: %s: status=%d", e.Op, e.Status)
}

// Auth reports whether the controller rejected our credential.
func (e *APIError) Auth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Site is one record partition reported by the controller.
type Site struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClientLease is one connected client as reported by the controller.
type ClientLease struct {
	Name      string `json:"name"`
	IPAddress string `json:"ipAddress"`
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("unifi: %s: %w", op, err)
	}
	req.Header.Set("X-API-KEY", c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unifi: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unifi: %s: read response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(op, resp.StatusCode, body)
	}

	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unifi: %s: decode response: %w", op, err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unifi: %s: decode data: %w", op, err)
	}
	return nil
}

func apiError(op string, status int, body []byte) *APIError {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	return &APIError{Op: op, Status: status, Code: env.Code, Message: env.Message}
}

// ListSites lists every site the credential can see.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var sites []Site
	if err := c.get(ctx, "list sites", "/sites", &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// ListDNSRecords returns the site's DNS policy documents verbatim.
func (c *Client) ListDNSRecords(ctx context.Context, siteID string) ([]json.RawMessage, error) {
	var docs []json.RawMessage
	if err := c.get(ctx, "list dns records", "/sites/"+siteID+"/dns/policies", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListClients returns the site's connected clients.
func (c *Client) ListClients(ctx context.Context, siteID string) ([]ClientLease, error) {
	var leases []ClientLease
	if err := c.get(ctx, "list clients", "/sites/"+siteID+"/clients", &leases); err != nil {
		return nil, err
	}
	return leases, nil
}

// CreateOutcome classifies a successful create call.
type CreateOutcome int

const (
	// CreateOK means the controller accepted the record.
	CreateOK CreateOutcome = iota
	// CreateOverlap means the controller rejected the record with a
	// recognized overlap code, so the remote state already converges.
	CreateOverlap
)

// CreateRecord posts one DNS policy document to the site. Overlap
// rejections are reported as CreateOverlap with a nil error; every
// other rejection is an *APIError.
func (c *Client) CreateRecord(ctx context.Context, siteID string, payload json.RawMessage) (CreateOutcome, error) {
	const op = "create record"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/sites/"+siteID+"/dns/policies", bytes.NewReader(payload))
	if err != nil {
		return CreateOK, fmt.Errorf("unifi: %s: %w", op, err)
	}
	req.Header.Set("X-API-KEY", c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return CreateOK, fmt.Errorf("unifi: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CreateOK, fmt.Errorf("unifi: %s: read response: %w", op, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return CreateOK, nil
	case http.StatusBadRequest:
		apiErr := apiError(op, resp.StatusCode, body)
		if _, ok := overlapCodes[apiErr.Code]; ok {
			return CreateOverlap, nil
		}
		return CreateOK, apiErr
	default:
		return CreateOK, apiError(op, resp.StatusCode, body)
	}
}

// DeleteRecord removes one DNS policy by controller-assigned id. The
// sync engine never deletes; this exists for operator tooling parity
// with the controller surface.
func (c *Client) DeleteRecord(ctx context.Context, siteID, recordID string) error {
	const op = "delete record"

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/sites/"+siteID+"/dns/policies/"+recordID, nil)
	if err != nil {
		return fmt.Errorf("unifi: %s: %w", op, err)
	}
	req.Header.Set("X-API-KEY", c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unifi: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unifi: %s: read response: %w", op, err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	default:
		return apiError(op, resp.StatusCode, body)
	}
}
