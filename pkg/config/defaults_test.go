package config

import (
	"path/filepath"
	"testing"
	"time"

	lpdadapter "github.com/marmos91/dittolpd/pkg/adapter/lpd"
	"github.com/marmos91/dittolpd/pkg/api"
	"github.com/marmos91/dittolpd/pkg/notify/redis"
	"github.com/marmos91/dittolpd/pkg/spool"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Server.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected metrics port %d, got %d", DefaultMetricsPort, cfg.Server.Metrics.Port)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics to stay disabled")
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected content type 'filesystem', got %q", cfg.Content.Type)
	}
	if got := cfg.Content.Filesystem["path"]; got != filepath.Join(DefaultDataDir, "content") {
		t.Errorf("Unexpected default content path: %v", got)
	}
	if got := cfg.Jobs.Badger["db_path"]; got != filepath.Join(DefaultDataDir, "jobs") {
		t.Errorf("Unexpected default badger path: %v", got)
	}
	if got := cfg.Jobs.SQLite["path"]; got != filepath.Join(DefaultDataDir, "jobs.db") {
		t.Errorf("Unexpected default sqlite path: %v", got)
	}
	if cfg.Spool.NotifyTimeout != spool.DefaultNotifyTimeout {
		t.Errorf("Expected notify timeout %v, got %v", spool.DefaultNotifyTimeout, cfg.Spool.NotifyTimeout)
	}
	if len(cfg.Spool.Queues) != 1 || cfg.Spool.Queues[0].Name != "lp" {
		t.Errorf("Expected default queue 'lp', got %+v", cfg.Spool.Queues)
	}
	if cfg.Notify.Type != "none" {
		t.Errorf("Expected notifier 'none', got %q", cfg.Notify.Type)
	}
	if cfg.Notify.Redis.Channel != redis.DefaultChannel || cfg.Notify.Redis.Retries != redis.DefaultRetries {
		t.Errorf("Unexpected redis defaults: %+v", cfg.Notify.Redis)
	}
	if cfg.API.Enabled {
		t.Error("Expected API to stay disabled")
	}
	if cfg.API.Port != api.DefaultPort || cfg.API.Auth.TokenTTL != api.DefaultTokenTTL {
		t.Errorf("Unexpected API defaults: %+v", cfg.API)
	}
}

func TestApplyDefaults_LPD(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	lpd := cfg.Adapters.LPD
	if !lpd.Enabled {
		t.Error("Expected LPD to be enabled")
	}
	if lpd.Port != 515 {
		t.Errorf("Expected port 515, got %d", lpd.Port)
	}
	if lpd.MaxWorkers != 10 {
		t.Errorf("Expected 10 workers, got %d", lpd.MaxWorkers)
	}
	if lpd.MaxPending != 0 {
		t.Errorf("Expected unbounded pending queue, got %d", lpd.MaxPending)
	}
	if lpd.ReadTimeout != 5*time.Minute || lpd.WriteTimeout != 30*time.Second {
		t.Errorf("Unexpected timeouts read=%v write=%v", lpd.ReadTimeout, lpd.WriteTimeout)
	}
	if lpd.MetricsLogInterval != 5*time.Minute {
		t.Errorf("Expected metrics log interval 5m, got %v", lpd.MetricsLogInterval)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "warn", Format: "json", Output: "stderr"},
		Content: ContentConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": "/srv/spool"},
		},
		Jobs: JobsConfig{Type: "memory"},
		Spool: SpoolConfig{
			AcceptUnknownQueues: true,
		},
		Adapters: AdaptersConfig{
			LPD: lpdadapter.LPDConfig{Enabled: false, Port: 1515, MaxWorkers: 2},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level normalized to 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Expected explicit logging values kept, got %+v", cfg.Logging)
	}
	if cfg.Content.Filesystem["path"] != "/srv/spool" {
		t.Errorf("Expected explicit content path kept, got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Jobs.Type != "memory" {
		t.Errorf("Expected job store 'memory', got %q", cfg.Jobs.Type)
	}
	if len(cfg.Spool.Queues) != 0 {
		t.Errorf("Expected no default queue with accept_unknown_queues, got %+v", cfg.Spool.Queues)
	}
	if cfg.Adapters.LPD.Enabled {
		t.Error("Expected explicitly disabled LPD adapter to stay disabled")
	}
	if cfg.Adapters.LPD.Port != 1515 || cfg.Adapters.LPD.MaxWorkers != 2 {
		t.Errorf("Expected explicit LPD values kept, got %+v", cfg.Adapters.LPD)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if !cfg.Adapters.LPD.Enabled {
		t.Error("Expected LPD enabled in default config")
	}
	if len(cfg.Spool.Queues) != 1 || cfg.Spool.Queues[0].Description == "" {
		t.Errorf("Expected a described default queue, got %+v", cfg.Spool.Queues)
	}
}
