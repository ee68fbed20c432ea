// Package s3 implements S3-based content storage for job files.
//
// Every content key becomes one object (with an optional key prefix), so
// the bucket mirrors the spool layout: "jobs/<job-id>/<file-name>".
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittolpd/pkg/store/content"
)

const (
	// MinPartSize is the smallest part S3 accepts (except for the last one).
	MinPartSize = 5 * 1024 * 1024

	// MaxPartSize is the largest part S3 accepts.
	MaxPartSize = 5 * 1024 * 1024 * 1024

	// DefaultPartSize is used when no part size is configured.
	DefaultPartSize = 10 * 1024 * 1024
)

// Client is the subset of the S3 API the store uses. *s3.Client implements it.
type Client interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3ContentStore implements content.Store using Amazon S3 or S3-compatible
// storage.
//
// S3 Characteristics:
//   - Object storage: data files are uploaded whole, never patched
//   - Files up to PartSize go through a single PutObject
//   - Larger or unsized streams use a multipart upload, one part in memory
//     at a time
//   - Supports custom endpoints (MinIO, Localstack, ...)
//
// Thread Safety:
// Safe for concurrent use by multiple goroutines.
type S3ContentStore struct {
	client    Client
	bucket    string
	keyPrefix string
	partSize  int64
	metrics   S3Metrics
}

// S3ContentStoreConfig contains configuration for S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "dittolpd/" results in keys like "dittolpd/jobs/<id>/cfA001host"
	KeyPrefix string

	// PartSize is the size of each part for multipart uploads (default: 10MB)
	// Must be between 5MB and 5GB
	PartSize int64

	// Metrics is optional; nil disables metrics collection
	Metrics S3Metrics
}

// NewS3ContentStore creates a new S3-based content store.
//
// The bucket must already exist; access is verified with HeadBucket.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3ContentStore: Initialized S3 content store
//   - error: Returns error if bucket access fails or context is cancelled
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	// ========================================================================
	// Step 1: Validate configuration
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, errors.New("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	if partSize < MinPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > MaxPartSize {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	var m S3Metrics = noopMetrics{}
	if cfg.Metrics != nil {
		m = cfg.Metrics
	}

	// ========================================================================
	// Step 2: Verify bucket access
	// ========================================================================

	start := time.Now()
	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	m.ObserveOperation("HeadBucket", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
		metrics:   m,
	}, nil
}

// getObjectKey returns the full S3 object key for a content key.
func (s *S3ContentStore) getObjectKey(key string) (string, error) {
	if err := content.ValidateKey(key); err != nil {
		return "", err
	}
	return s.keyPrefix + key, nil
}

// Put uploads r under key.
//
// The first part is read into memory. If the stream ends within it, a
// single PutObject stores the object; otherwise a multipart upload carries
// the rest part by part and is aborted on any failure, including a stream
// shorter than size.
func (s *S3ContentStore) Put(ctx context.Context, key string, r io.Reader, size int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	objectKey, err := s.getObjectKey(key)
	if err != nil {
		return 0, err
	}

	src := r
	if size >= 0 {
		src = io.LimitReader(r, size)
	}

	limit := s.partSize
	if size >= 0 && size < limit {
		limit = size
	}
	first, err := readPart(src, limit)
	if err != nil {
		return int64(len(first)), fmt.Errorf("put %s: %w", key, err)
	}

	if int64(len(first)) < s.partSize || int64(len(first)) == size {
		n := int64(len(first))
		if size >= 0 && n != size {
			return n, fmt.Errorf("put %s: %w: got %d of %d bytes", key, content.ErrSizeMismatch, n, size)
		}
		if err := s.putObject(ctx, objectKey, first); err != nil {
			return 0, fmt.Errorf("put %s: %w", key, err)
		}
		return n, nil
	}

	n, err := s.putMultipart(ctx, objectKey, first, src, size)
	if err != nil {
		return n, fmt.Errorf("put %s: %w", key, err)
	}
	return n, nil
}

func (s *S3ContentStore) putObject(ctx context.Context, objectKey string, data []byte) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.metrics.ObserveOperation("PutObject", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	s.metrics.RecordBytes("write", int64(len(data)))
	return nil
}

// readPart reads up to n bytes. A short read at EOF is not an error.
func readPart(r io.Reader, n int64) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return buf[:read], err
}

// Get downloads the object for key. The caller must close the reader.
func (s *S3ContentStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objectKey, err := s.getObjectKey(key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	s.metrics.ObserveOperation("GetObject", time.Since(start), err)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &metricsReadCloser{
		ReadCloser: result.Body,
		metrics:    s.metrics,
		operation:  "read",
	}, nil
}

// Size issues a HEAD request for key.
func (s *S3ContentStore) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	objectKey, err := s.getObjectKey(key)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	s.metrics.ObserveOperation("HeadObject", time.Since(start), err)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%s: %w", key, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", key)
	}
	return *result.ContentLength, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *S3ContentStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectKey, err := s.getObjectKey(key)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	s.metrics.ObserveOperation("DeleteObject", time.Since(start), err)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Bucket returns the bucket name.
func (s *S3ContentStore) Bucket() string {
	return s.bucket
}

func (s *S3ContentStore) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
