package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `http:
  addr: ":8080"
  api_token: "tok"
store:
  backend: "sqlite"
  path: "fleet.db"
history:
  backend: "jsonl"
  path: "runs.log"
  max_size_mb: 10
metrics:
  prometheus_enabled: true
  prometheus_port: ":9100"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "fd"
ingest:
  load_on_start: true
  dir: "./data"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"http.addr", cfg.HTTP.Addr, ":8080"},
		{"http.api_token", cfg.HTTP.APIToken, "tok"},
		{"store.backend", cfg.Store.Backend, "sqlite"},
		{"store.path", cfg.Store.Path, "fleet.db"},
		{"history.backend", cfg.History.Backend, "jsonl"},
		{"history.max_size_mb", cfg.History.MaxSizeMB, 10},
		{"metrics.prometheus", cfg.Metrics.PrometheusEnabled, true},
		{"metrics.port", cfg.Metrics.PrometheusPort, ":9100"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.client_id", cfg.MQTT.ClientID, "fd"},
		{"ingest.dir", cfg.Ingest.Dir, "./data"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.HTTP.Addr != ":8000" {
		t.Errorf("http addr default: got %s", cfg.HTTP.Addr)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("store backend default: got %s", cfg.Store.Backend)
	}
	if cfg.History.Backend != "jsonl" || cfg.History.Path != "simulation_runs.log" {
		t.Errorf("history defaults: got %+v", cfg.History)
	}
	if cfg.Metrics.PrometheusPort != ":9090" {
		t.Errorf("metrics port default: got %s", cfg.Metrics.PrometheusPort)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  addr: \":8000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FD_HTTP__ADDR", ":9999")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("env override not applied: got %s", cfg.HTTP.Addr)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  backend: \"cassandra\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
