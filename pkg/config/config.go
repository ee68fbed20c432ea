package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	lpdadapter "github.com/marmos91/dittolpd/pkg/adapter/lpd"
)

// Config represents the complete dittolpd configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics)
//   - Content store selection (where job files live)
//   - Job store selection (where job records live)
//   - Spool queues and limits
//   - Job event notifications
//   - The LPD listener and the admin API
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOLPD_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own options. The Config struct
// contains type-specific sections (e.g., content.filesystem, content.s3)
// and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Content specifies where job files are stored
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Jobs specifies where job records are stored
	Jobs JobsConfig `mapstructure:"jobs" yaml:"jobs"`

	// Spool defines print queues and job limits
	Spool SpoolConfig `mapstructure:"spool" yaml:"spool"`

	// Notify configures job event publication
	Notify NotifyConfig `mapstructure:"notify" yaml:"notify"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`

	// API configures the admin REST API
	API APIConfig `mapstructure:"api" yaml:"api"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// ContentConfig specifies content store configuration.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific options (path)
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty"`

	// S3 contains S3-specific options (bucket, region, endpoint, ...)
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// JobsConfig specifies job store configuration.
type JobsConfig struct {
	// Type specifies which job store implementation to use
	// Valid values: memory, badger, sqlite
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger sqlite"`

	// Badger contains BadgerDB-specific options (db_path)
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// SQLite contains SQLite-specific options (path)
	SQLite map[string]any `mapstructure:"sqlite" yaml:"sqlite,omitempty"`
}

// SpoolConfig defines the print queues.
type SpoolConfig struct {
	// AcceptUnknownQueues creates queues on first use instead of refusing
	// jobs for them
	AcceptUnknownQueues bool `mapstructure:"accept_unknown_queues" yaml:"accept_unknown_queues"`

	// MaxJobSize caps the data bytes of one job (0 = unlimited)
	MaxJobSize int64 `mapstructure:"max_job_size" yaml:"max_job_size" validate:"min=0"`

	// NotifyTimeout bounds the publication of one job event
	NotifyTimeout time.Duration `mapstructure:"notify_timeout" yaml:"notify_timeout" validate:"min=0"`

	// Queues lists the configured print queues
	Queues []QueueConfig `mapstructure:"queues" yaml:"queues" validate:"dive"`
}

// QueueConfig defines a single print queue.
type QueueConfig struct {
	// Name is the queue name clients send with every command
	Name string `mapstructure:"name" yaml:"name" validate:"required,queuename"`

	Description string `mapstructure:"description" yaml:"description,omitempty"`

	// Locked queues refuse new jobs until unlocked
	Locked bool `mapstructure:"locked" yaml:"locked"`

	// MaxJobSize overrides spool.max_job_size for this queue
	MaxJobSize int64 `mapstructure:"max_job_size" yaml:"max_job_size,omitempty" validate:"min=0"`
}

// NotifyConfig configures job event notifications.
type NotifyConfig struct {
	// Type selects the notifier
	// Valid values: none, redis
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=none redis"`

	// Redis configures Redis pub/sub publication
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig configures the Redis notifier.
type RedisConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Channel string        `mapstructure:"channel" yaml:"channel"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
	Retries int           `mapstructure:"retries" yaml:"retries" validate:"min=0"`
	Backoff time.Duration `mapstructure:"backoff" yaml:"backoff" validate:"min=0"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// LPD contains LPD protocol configuration.
	// Uses the lpd.LPDConfig type directly to avoid duplication.
	LPD lpdadapter.LPDConfig `mapstructure:"lpd" yaml:"lpd"`
}

// APIConfig configures the admin REST API.
type APIConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// AllowedOrigins enables CORS for browser clients ("*" allows any)
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	Auth APIAuthConfig `mapstructure:"auth" yaml:"auth"`
}

// APIAuthConfig configures bearer token authentication of the API.
type APIAuthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PasswordHash is a bcrypt hash (see "dittolpd hash-password")
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`

	// Secret signs issued tokens
	Secret string `mapstructure:"secret" yaml:"secret"`

	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl" validate:"min=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOLPD_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTOLPD_ prefix and underscores
	// Example: DITTOLPD_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOLPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittolpd/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittolpd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittolpd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
