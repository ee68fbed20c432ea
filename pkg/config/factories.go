package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/metrics"
	"github.com/marmos91/dittolpd/pkg/notify"
	notifyredis "github.com/marmos91/dittolpd/pkg/notify/redis"
	"github.com/marmos91/dittolpd/pkg/spool"
	"github.com/marmos91/dittolpd/pkg/store/content"
	contentfs "github.com/marmos91/dittolpd/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittolpd/pkg/store/content/memory"
	contents3 "github.com/marmos91/dittolpd/pkg/store/content/s3"
	"github.com/marmos91/dittolpd/pkg/store/jobs"
	jobsbadger "github.com/marmos91/dittolpd/pkg/store/jobs/badger"
	jobsmemory "github.com/marmos91/dittolpd/pkg/store/jobs/memory"
	jobssqlite "github.com/marmos91/dittolpd/pkg/store/jobs/sqlite"
)

// CreateContentStore creates the content store selected by cfg.Type.
//
// Supported types:
//   - "filesystem": pkg/store/content/fs (one file per key)
//   - "memory": pkg/store/content/memory (ephemeral)
//   - "s3": pkg/store/content/s3 (Amazon S3 or compatible storage)
//
// s3Metrics is optional and only used by the S3 store.
func CreateContentStore(ctx context.Context, cfg *ContentConfig, s3Metrics contents3.S3Metrics) (content.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		return contentmemory.NewMemoryContentStore(), nil
	case "s3":
		return createS3ContentStore(ctx, cfg.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-based content store.
func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	var opts filesystemOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}

	if opts.Path == "" {
		return nil, errors.New("filesystem content store: path is required")
	}

	store, err := contentfs.NewFSContentStore(ctx, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}

	logger.Info("Filesystem content store initialized: path=%s", opts.Path)
	return store, nil
}

// createS3ContentStore creates an S3-based content store.
func createS3ContentStore(ctx context.Context, options map[string]any, s3Metrics contents3.S3Metrics) (content.Store, error) {
	var opts s3Options
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, errors.New("S3 content store: bucket is required")
	}
	if opts.Region == "" {
		return nil, errors.New("S3 content store: region is required")
	}

	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}

	store, err := contents3.NewS3ContentStore(ctx, contents3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
		PartSize:  opts.PartSize,
		Metrics:   s3Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return store, nil
}

// newS3Client builds an S3 client from the store options.
func newS3Client(ctx context.Context, opts s3Options) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	// Static credentials when provided, otherwise the default credential chain
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	// Retry transient failures (502, 503, timeouts) more than the SDK default
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and Localstack need a custom endpoint and path-style addressing
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// CreateJobStore creates the job store selected by cfg.Type.
//
// Supported types:
//   - "memory": pkg/store/jobs/memory (ephemeral)
//   - "badger": pkg/store/jobs/badger (BadgerDB, persistent)
//   - "sqlite": pkg/store/jobs/sqlite (SQLite, persistent)
func CreateJobStore(ctx context.Context, cfg *JobsConfig) (jobs.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return jobsmemory.NewMemoryJobStore(), nil
	case "badger":
		return createBadgerJobStore(ctx, cfg.Badger)
	case "sqlite":
		return createSQLiteJobStore(ctx, cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown job store type: %q (supported: memory, badger, sqlite)", cfg.Type)
	}
}

func createBadgerJobStore(ctx context.Context, options map[string]any) (jobs.Store, error) {
	var opts badgerOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode badger job store options: %w", err)
	}
	if opts.DBPath == "" && !opts.InMemory {
		return nil, errors.New("badger job store: db_path is required")
	}

	store, err := jobsbadger.NewBadgerJobStore(ctx, jobsbadger.BadgerJobStoreConfig{
		DBPath:   opts.DBPath,
		InMemory: opts.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger job store: %w", err)
	}

	logger.Info("Badger job store initialized: path=%s", opts.DBPath)
	return store, nil
}

func createSQLiteJobStore(ctx context.Context, options map[string]any) (jobs.Store, error) {
	var opts sqliteOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode sqlite job store options: %w", err)
	}
	if opts.Path == "" {
		return nil, errors.New("sqlite job store: path is required")
	}

	store, err := jobssqlite.NewSQLiteJobStore(ctx, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite job store: %w", err)
	}

	logger.Info("SQLite job store initialized: path=%s", opts.Path)
	return store, nil
}

// CreateNotifier creates the job event notifier selected by cfg.Type.
func CreateNotifier(cfg *NotifyConfig) (notify.Notifier, error) {
	switch cfg.Type {
	case "", "none":
		return notify.Noop{}, nil
	case "redis":
		n, err := notifyredis.New(notifyredis.Config{
			URL:     cfg.Redis.URL,
			Channel: cfg.Redis.Channel,
			Timeout: cfg.Redis.Timeout,
			Retries: cfg.Redis.Retries,
			Backoff: cfg.Redis.Backoff,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis notifier: %w", err)
		}
		logger.Info("Redis notifier initialized: channel=%s", n.Channel())
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %q (supported: none, redis)", cfg.Type)
	}
}

// CreateSpool creates the spool over the given stores.
func CreateSpool(cfg *SpoolConfig, contentStore content.Store, jobStore jobs.Store, notifier notify.Notifier, spoolMetrics metrics.SpoolMetrics) (*spool.Spool, error) {
	queues := make([]spool.QueueConfig, len(cfg.Queues))
	for i, q := range cfg.Queues {
		queues[i] = spool.QueueConfig{
			Name:        q.Name,
			Description: q.Description,
			Locked:      q.Locked,
			MaxJobSize:  q.MaxJobSize,
		}
	}

	return spool.New(spool.Config{
		Queues:              queues,
		AcceptUnknownQueues: cfg.AcceptUnknownQueues,
		MaxJobSize:          cfg.MaxJobSize,
		NotifyTimeout:       cfg.NotifyTimeout,
		Metrics:             spoolMetrics,
	}, contentStore, jobStore, notifier)
}
