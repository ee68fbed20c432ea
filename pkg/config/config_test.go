package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "INFO"

content:
  type: "memory"

spool:
  queues:
    - name: "office"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Adapters.LPD.Enabled {
		t.Error("Expected LPD adapter to be enabled by default")
	}
	if cfg.Adapters.LPD.Port != 515 {
		t.Errorf("Expected default LPD port 515, got %d", cfg.Adapters.LPD.Port)
	}
	if cfg.Jobs.Type != "badger" {
		t.Errorf("Expected default job store 'badger', got %q", cfg.Jobs.Type)
	}
	if len(cfg.Spool.Queues) != 1 || cfg.Spool.Queues[0].Name != "office" {
		t.Errorf("Expected the configured queue only, got %+v", cfg.Spool.Queues)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A path that does not exist, so ~/.config/dittolpd is never read
	configPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected defaults without a config file, got error: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content store 'filesystem', got %q", cfg.Content.Type)
	}
	if len(cfg.Spool.Queues) != 1 || cfg.Spool.Queues[0].Name != "lp" {
		t.Errorf("Expected the default 'lp' queue, got %+v", cfg.Spool.Queues)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "logging:\n  level: [unterminated\n")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  format: "xml"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for unknown log format")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "INFO"
`)
	t.Setenv("DITTOLPD_LOGGING_LEVEL", "debug")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level from environment normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "warn"
  format: "json"
  output: "stderr"

server:
  shutdown_timeout: 10s
  metrics:
    enabled: true
    port: 9100

content:
  type: "filesystem"
  filesystem:
    path: "/var/spool/dittolpd"

jobs:
  type: "sqlite"
  sqlite:
    path: "/var/lib/dittolpd/jobs.db"

spool:
  max_job_size: 1048576
  queues:
    - name: "lp"
    - name: "plotter"
      description: "A0 plotter"
      locked: true
      max_job_size: 2048

notify:
  type: "redis"
  redis:
    url: "redis://localhost:6379/0"
    channel: "print-events"

adapters:
  lpd:
    enabled: true
    port: 1515
    max_workers: 4
    read_timeout: 1m

api:
  enabled: true
  port: 8080
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "WARN" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown_timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Server.Metrics.Enabled || cfg.Server.Metrics.Port != 9100 {
		t.Errorf("Unexpected metrics config: %+v", cfg.Server.Metrics)
	}
	if cfg.Content.Filesystem["path"] != "/var/spool/dittolpd" {
		t.Errorf("Expected content path to be kept, got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Jobs.Type != "sqlite" || cfg.Jobs.SQLite["path"] != "/var/lib/dittolpd/jobs.db" {
		t.Errorf("Unexpected jobs config: %+v", cfg.Jobs)
	}
	if cfg.Spool.MaxJobSize != 1048576 {
		t.Errorf("Expected max_job_size 1048576, got %d", cfg.Spool.MaxJobSize)
	}
	if len(cfg.Spool.Queues) != 2 {
		t.Fatalf("Expected 2 queues, got %d", len(cfg.Spool.Queues))
	}
	plotter := cfg.Spool.Queues[1]
	if plotter.Name != "plotter" || !plotter.Locked || plotter.MaxJobSize != 2048 || plotter.Description != "A0 plotter" {
		t.Errorf("Unexpected plotter queue: %+v", plotter)
	}
	if cfg.Notify.Redis.Channel != "print-events" || cfg.Notify.Redis.Retries != 3 {
		t.Errorf("Unexpected redis config: %+v", cfg.Notify.Redis)
	}
	if cfg.Adapters.LPD.Port != 1515 || cfg.Adapters.LPD.MaxWorkers != 4 || cfg.Adapters.LPD.ReadTimeout != time.Minute {
		t.Errorf("Unexpected LPD config: %+v", cfg.Adapters.LPD)
	}
	if !cfg.API.Enabled || cfg.API.Port != 8080 {
		t.Errorf("Unexpected API config: %+v", cfg.API)
	}
}

func TestGetDefaultConfigPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	want := filepath.Join(dir, "dittolpd", "config.yaml")
	if got := GetDefaultConfigPath(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if ConfigExists() {
		t.Error("Expected no config file in an empty directory")
	}
}
