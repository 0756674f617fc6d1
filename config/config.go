// Package config loads the service configuration from a YAML or JSON file
// with optional FD_-prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/infra/notify"
)

type Config struct {
	HTTP    HTTPConfig     `json:"http"`
	Store   StoreConfig    `json:"store"`
	History HistoryConfig  `json:"history"`
	Metrics metrics.Config `json:"metrics"`
	MQTT    notify.Config  `json:"mqtt"`
	Ingest  IngestConfig   `json:"ingest"`
}

// HTTPConfig defines the API listener settings.
type HTTPConfig struct {
	// Addr is the listen address of the API server.
	Addr string `json:"addr"`
	// APIToken protects the history endpoint when non-empty.
	APIToken string `json:"api_token"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
}

// StoreConfig selects the fleet store backend.
type StoreConfig struct {
	// Backend selects the store type: "memory", "sqlite" or "postgres".
	Backend string `json:"backend"`
	// Path is the database file for the sqlite backend.
	Path string `json:"path"`
	// DSN is the connection string for the postgres backend.
	DSN string `json:"dsn"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "fleet.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("store: path is required for sqlite")
		}
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("store: dsn is required for postgres")
		}
	default:
		return fmt.Errorf("store: unknown backend %s", c.Backend)
	}
	return nil
}

// HistoryConfig defines settings for simulation history storage and rotation.
type HistoryConfig struct {
	// Backend selects the history store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the history store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	// Rotation applies to the jsonl backend only; zero disables it.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *HistoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "simulation_runs.log"
	}
}

// Validate checks mandatory fields.
func (c HistoryConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("history: unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("history: path is required")
	}
	return nil
}

// IngestConfig controls CSV loading at startup.
type IngestConfig struct {
	// LoadOnStart loads the CSV exports from Dir before serving.
	LoadOnStart bool `json:"load_on_start"`
	// Dir is the directory holding drivers.csv, orders.csv and routes.csv.
	Dir string `json:"dir"`
}

// Validate checks mandatory fields.
func (c IngestConfig) Validate() error {
	if c.LoadOnStart && c.Dir == "" {
		return fmt.Errorf("ingest: dir is required when load_on_start is set")
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.HTTP.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.History.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.History.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ingest.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
