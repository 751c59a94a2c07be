package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/dnsmesh/internal/mesh"
)

// dnsmeshctl config.toml key mapping to runtime settings.
type fileConfig struct {
	IntervalSeconds    int                `toml:"interval_seconds"`
	DBPath             string             `toml:"db_path"`
	WebListenAddr      string             `toml:"web_listen_addr"`
	AllowedRecordTypes []string           `toml:"allowed_record_types"`
	Controllers        []controllerConfig `toml:"controllers"`
}

type controllerConfig struct {
	Host             string `toml:"host"`
	APIKey           string `toml:"api_key"`
	Site             string `toml:"site"`
	VerifySSL        bool   `toml:"verify_ssl"`
	DomainSuffix     string `toml:"domain_suffix"`
	SyncClientLeases bool   `toml:"sync_client_leases"`
}

type serviceConfig struct {
	Interval      time.Duration
	DBPath        string
	WebListenAddr string
	AllowedKinds  []string
	Controllers   []mesh.ControllerTarget
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Interval:     mesh.DefaultInterval,
		DBPath:       "local/dnsmesh.db",
		AllowedKinds: []string{"A_RECORD", "CNAME_RECORD"},
	}
}

// dnsmeshctl loader for TOML config with default overlay.
func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load dnsmesh config: %w", err)
	}

	if meta.IsDefined("interval_seconds") {
		if raw.IntervalSeconds <= 0 {
			return serviceConfig{}, fmt.Errorf("load dnsmesh config: interval_seconds must be positive, got %d", raw.IntervalSeconds)
		}
		cfg.Interval = time.Duration(raw.IntervalSeconds) * time.Second
	}
	if meta.IsDefined("db_path") {
		cfg.DBPath = strings.TrimSpace(raw.DBPath)
	}
	if meta.IsDefined("web_listen_addr") {
		cfg.WebListenAddr = strings.TrimSpace(raw.WebListenAddr)
	}
	if meta.IsDefined("allowed_record_types") {
		cfg.AllowedKinds = raw.AllowedRecordTypes
	}

	if len(raw.Controllers) == 0 {
		return serviceConfig{}, fmt.Errorf("load dnsmesh config: at least one [[controllers]] block is required")
	}
	for i, c := range raw.Controllers {
		host := strings.TrimSpace(c.Host)
		if host == "" {
			return serviceConfig{}, fmt.Errorf("load dnsmesh config: controllers[%d]: host is required", i)
		}
		if strings.TrimSpace(c.APIKey) == "" {
			return serviceConfig{}, fmt.Errorf("load dnsmesh config: controllers[%d] (%s): api_key is required", i, host)
		}
		site := strings.TrimSpace(c.Site)
		if site == "" {
			site = "default"
		}
		cfg.Controllers = append(cfg.Controllers, mesh.ControllerTarget{
			Host:             host,
			Credential:       strings.TrimSpace(c.APIKey),
			SiteSelector:     site,
			VerifySSL:        c.VerifySSL,
			DomainSuffix:     strings.TrimSpace(c.DomainSuffix),
			SyncClientLeases: c.SyncClientLeases,
		})
	}

	if cfg.DBPath == "" {
		return serviceConfig{}, fmt.Errorf("load dnsmesh config: db_path must not be empty")
	}
	return cfg, nil
}
