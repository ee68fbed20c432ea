//go:build e2e

package e2e

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/marmos91/dittolpd/pkg/config"
)

// JobStoreType represents the type of job store
type JobStoreType string

const (
	JobsMemory JobStoreType = "memory"
	JobsBadger JobStoreType = "badger"
	JobsSQLite JobStoreType = "sqlite"
)

// ContentStoreType represents the type of content store
type ContentStoreType string

const (
	ContentMemory     ContentStoreType = "memory"
	ContentFilesystem ContentStoreType = "filesystem"
	ContentS3         ContentStoreType = "s3"
)

// Queues every test server serves. "held" starts locked.
const (
	QueueDefault = "lp"
	QueueRaw     = "raw"
	QueueHeld    = "held"
)

// TestContextProvider is an interface for providing test context dependencies
type TestContextProvider interface {
	CreateTempDir(prefix string) string
	GetConfig() *TestConfig
}

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name         string
	JobStore     JobStoreType
	ContentStore ContentStoreType

	// S3-specific fields (set by localstack setup)
	s3Endpoint string
	s3Bucket   string
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s", tc.JobStore, tc.ContentStore)
}

// ServerConfig builds the daemon configuration for this test run. Both
// listeners bind ephemeral ports.
func (tc *TestConfig) ServerConfig(testCtx TestContextProvider) (*config.Config, error) {
	cfg := config.GetDefaultConfig()

	cfg.Logging.Level = "ERROR"
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Adapters.LPD.Enabled = true
	cfg.Adapters.LPD.BindAddress = "127.0.0.1"
	cfg.Adapters.LPD.Port = -1
	cfg.Adapters.LPD.ReadTimeout = 30 * time.Second
	cfg.Adapters.LPD.ShutdownTimeout = 5 * time.Second
	cfg.Adapters.LPD.MetricsLogInterval = 0

	cfg.API.Enabled = true
	cfg.API.BindAddress = "127.0.0.1"
	cfg.API.Port = -1

	cfg.Spool.Queues = []config.QueueConfig{
		{Name: QueueDefault, Description: "Default queue"},
		{Name: QueueRaw, Description: "Raw passthrough"},
		{Name: QueueHeld, Description: "Held for review", Locked: true},
	}

	switch tc.ContentStore {
	case ContentMemory:
		cfg.Content.Type = "memory"
	case ContentFilesystem:
		cfg.Content.Type = "filesystem"
		cfg.Content.Filesystem = map[string]any{
			"path": testCtx.CreateTempDir("dittolpd-content-*"),
		}
	case ContentS3:
		if tc.s3Bucket == "" {
			return nil, fmt.Errorf("S3 bucket not initialized (localstack not running?)")
		}
		cfg.Content.Type = "s3"
		cfg.Content.S3 = map[string]any{
			"endpoint":          tc.s3Endpoint,
			"region":            "us-east-1",
			"bucket":            tc.s3Bucket,
			"access_key_id":     "test",
			"secret_access_key": "test",
			"key_prefix":        "e2e/",
			"part_size":         5 * 1024 * 1024,
		}
	default:
		return nil, fmt.Errorf("unknown content store type: %s", tc.ContentStore)
	}

	switch tc.JobStore {
	case JobsMemory:
		cfg.Jobs.Type = "memory"
	case JobsBadger:
		cfg.Jobs.Type = "badger"
		cfg.Jobs.Badger = map[string]any{
			"db_path": filepath.Join(testCtx.CreateTempDir("dittolpd-badger-*"), "jobs"),
		}
	case JobsSQLite:
		cfg.Jobs.Type = "sqlite"
		cfg.Jobs.SQLite = map[string]any{
			"path": filepath.Join(testCtx.CreateTempDir("dittolpd-sqlite-*"), "jobs.db"),
		}
	default:
		return nil, fmt.Errorf("unknown job store type: %s", tc.JobStore)
	}

	return cfg, nil
}

// AllConfigurations returns all test configurations to run
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory-memory", JobStore: JobsMemory, ContentStore: ContentMemory},
		{Name: "memory-filesystem", JobStore: JobsMemory, ContentStore: ContentFilesystem},
		{Name: "badger-filesystem", JobStore: JobsBadger, ContentStore: ContentFilesystem},
		{Name: "sqlite-filesystem", JobStore: JobsSQLite, ContentStore: ContentFilesystem},
	}
}

// S3Configurations returns configurations that use S3 (requires localstack)
func S3Configurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory-s3", JobStore: JobsMemory, ContentStore: ContentS3},
		{Name: "badger-s3", JobStore: JobsBadger, ContentStore: ContentS3},
	}
}

// GetConfiguration returns a specific configuration by name
func GetConfiguration(name string) *TestConfig {
	for _, cfg := range AllConfigurations() {
		if cfg.Name == name {
			return cfg
		}
	}
	for _, cfg := range S3Configurations() {
		if cfg.Name == name {
			return cfg
		}
	}
	return nil
}
