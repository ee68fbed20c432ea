package config

import (
	"path/filepath"
	"strings"
	"time"

	lpdadapter "github.com/marmos91/dittolpd/pkg/adapter/lpd"
	"github.com/marmos91/dittolpd/pkg/api"
	"github.com/marmos91/dittolpd/pkg/lpd"
	"github.com/marmos91/dittolpd/pkg/notify/redis"
	"github.com/marmos91/dittolpd/pkg/spool"
)

// DefaultDataDir holds the filesystem content store and the job database
// of a configuration without explicit paths.
var DefaultDataDir = filepath.Join("/tmp", "dittolpd")

// DefaultMetricsPort is the Prometheus endpoint port.
const DefaultMetricsPort = 9515

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are filled into the selected store's options
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyContentDefaults(&cfg.Content)
	applyJobsDefaults(&cfg.Jobs)
	applySpoolDefaults(&cfg.Spool)
	applyNotifyDefaults(&cfg.Notify)
	applyAdaptersDefaults(&cfg.Adapters)
	applyAPIDefaults(&cfg.API)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = filepath.Join(DefaultDataDir, "content")
	}
}

func applyJobsDefaults(cfg *JobsConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.SQLite == nil {
		cfg.SQLite = make(map[string]any)
	}

	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = filepath.Join(DefaultDataDir, "jobs")
	}
	if _, ok := cfg.SQLite["path"]; !ok {
		cfg.SQLite["path"] = filepath.Join(DefaultDataDir, "jobs.db")
	}
}

func applySpoolDefaults(cfg *SpoolConfig) {
	if cfg.NotifyTimeout == 0 {
		cfg.NotifyTimeout = spool.DefaultNotifyTimeout
	}

	// Without queues every job would be refused.
	if len(cfg.Queues) == 0 && !cfg.AcceptUnknownQueues {
		cfg.Queues = []QueueConfig{{Name: "lp", Description: "Default queue"}}
	}
}

func applyNotifyDefaults(cfg *NotifyConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = redis.DefaultChannel
	}
	if cfg.Redis.Timeout == 0 {
		cfg.Redis.Timeout = redis.DefaultTimeout
	}
	if cfg.Redis.Retries == 0 {
		cfg.Redis.Retries = redis.DefaultRetries
	}
	if cfg.Redis.Backoff == 0 {
		cfg.Redis.Backoff = redis.DefaultBackoff
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable the LPD adapter when it looks unconfigured (port 0) so a
	// freshly loaded config without a file still serves LPD. An explicit
	// "enabled: false" next to a port survives.
	if !cfg.LPD.Enabled && cfg.LPD.Port == 0 {
		cfg.LPD.Enabled = true
	}

	applyLPDDefaults(&cfg.LPD)
}

// applyLPDDefaults sets LPD adapter defaults.
func applyLPDDefaults(cfg *lpdadapter.LPDConfig) {
	if cfg.Port == 0 {
		cfg.Port = lpd.DefaultPort
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 10
	}
	// MaxPending defaults to 0 (unbounded)
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = api.DefaultPort
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = api.DefaultTokenTTL
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Spool: SpoolConfig{
			Queues: []QueueConfig{
				{Name: "lp", Description: "Default queue"},
			},
		},
		Adapters: AdaptersConfig{
			LPD: lpdadapter.LPDConfig{Enabled: true},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
