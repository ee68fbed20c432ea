package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// filesystemOptions are the options of the filesystem content store.
type filesystemOptions struct {
	Path string `mapstructure:"path"`
}

// s3Options are the options of the S3 content store.
type s3Options struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PartSize        int64  `mapstructure:"part_size"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// badgerOptions are the options of the BadgerDB job store.
type badgerOptions struct {
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the database in RAM; DBPath is then ignored.
	InMemory bool `mapstructure:"in_memory"`
}

// sqliteOptions are the options of the SQLite job store.
type sqliteOptions struct {
	Path string `mapstructure:"path"`
}

// decodeOptions decodes a store option map into out. Values set through
// environment variables arrive as strings, so input is weakly typed.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}
