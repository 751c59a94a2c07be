package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/dnsmesh/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigOverlaysDefaults(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
interval_seconds = 600
web_listen_addr = ":5000"
allowed_record_types = ["A_RECORD", "CNAME_RECORD", "TXT_RECORD"]

[[controllers]]
host = "ctrl-a.example.com"
api_key = "key-a"
site = "Default"
domain_suffix = "lan.example.com"
sync_client_leases = true

[[controllers]]
host = "ctrl-b.example.com"
api_key = "key-b"
`)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interval != 10*time.Minute {
		t.Fatalf("interval: got %s", cfg.Interval)
	}
	if cfg.DBPath != "local/dnsmesh.db" {
		t.Fatalf("db default not applied: %q", cfg.DBPath)
	}
	if len(cfg.AllowedKinds) != 3 {
		t.Fatalf("allow-list: %v", cfg.AllowedKinds)
	}
	if len(cfg.Controllers) != 2 {
		t.Fatalf("controllers: %d", len(cfg.Controllers))
	}
	if cfg.Controllers[0].DomainSuffix != "lan.example.com" || !cfg.Controllers[0].SyncClientLeases {
		t.Fatalf("controller 0 options: %+v", cfg.Controllers[0])
	}
	// Site selector defaults to "default" when omitted.
	if cfg.Controllers[1].SiteSelector != "default" {
		t.Fatalf("controller 1 site selector: %q", cfg.Controllers[1].SiteSelector)
	}
}

func TestLoadServiceConfigValidation(t *testing.T) {
	testlog.Start(t)

	if _, err := loadServiceConfig(writeConfig(t, `interval_seconds = 60`)); err == nil {
		t.Fatalf("expected error without controllers")
	}
	if _, err := loadServiceConfig(writeConfig(t, "[[controllers]]\napi_key = \"k\"\n")); err == nil {
		t.Fatalf("expected error for missing host")
	}
	if _, err := loadServiceConfig(writeConfig(t, "[[controllers]]\nhost = \"h\"\n")); err == nil {
		t.Fatalf("expected error for missing api_key")
	}
	if _, err := loadServiceConfig(writeConfig(t, "interval_seconds = 0\n[[controllers]]\nhost = \"h\"\napi_key = \"k\"\n")); err == nil {
		t.Fatalf("expected error for non-positive interval")
	}
}
