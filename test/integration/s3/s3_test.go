//go:build integration

package s3_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/dittolpd/pkg/config"
	"github.com/marmos91/dittolpd/pkg/store/content"
	s3store "github.com/marmos91/dittolpd/pkg/store/content/s3"
	contenttesting "github.com/marmos91/dittolpd/pkg/store/content/testing"
)

func localstackEndpoint() string {
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return "http://localhost:4566"
}

// setupTestS3 creates an S3 client and a test bucket on Localstack. The
// bucket and its objects are removed when the test ends.
func setupTestS3(t *testing.T, bucketName string) *s3.Client {
	t.Helper()
	ctx := context.Background()

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(localstackEndpoint())
		o.UsePathStyle = true
	})

	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		t.Fatalf("Failed to create test bucket: %v", err)
	}

	t.Cleanup(func() {
		paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{Bucket: aws.String(bucketName)})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				break
			}
			for _, obj := range page.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucketName), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)})
	})

	return client
}

// TestS3ContentStore_Integration runs the content store suite with a fresh
// key prefix per store.
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or LOCALSTACK_ENDPOINT)
//   - Run with: go test -tags=integration ./test/integration/s3/...
func TestS3ContentStore_Integration(t *testing.T) {
	ctx := context.Background()
	bucket := "dittolpd-integration"
	client := setupTestS3(t, bucket)

	n := 0
	suite := &contenttesting.StoreTestSuite{
		NewStore: func() content.Store {
			n++
			store, err := s3store.NewS3ContentStore(ctx, s3store.S3ContentStoreConfig{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: fmt.Sprintf("suite-%d/", n),
				PartSize:  s3store.MinPartSize,
			})
			if err != nil {
				t.Fatalf("Failed to create S3 content store: %v", err)
			}
			return store
		},
		LargeSize: 2*s3store.MinPartSize + 1,
	}
	suite.Run(t)
}

// TestS3ContentStore_StreamUnknownSize uploads a spool file whose length is
// only known at EOF, which takes the multipart path.
func TestS3ContentStore_StreamUnknownSize(t *testing.T) {
	ctx := context.Background()
	bucket := "dittolpd-stream"
	client := setupTestS3(t, bucket)

	store, err := s3store.NewS3ContentStore(ctx, s3store.S3ContentStoreConfig{
		Client:   client,
		Bucket:   bucket,
		PartSize: s3store.MinPartSize,
	})
	if err != nil {
		t.Fatalf("Failed to create S3 content store: %v", err)
	}
	defer func() { _ = store.Close() }()

	payload := make([]byte, 12*1024*1024)
	if _, err := rand.Read(payload); err != nil {
		t.Fatalf("Failed to generate payload: %v", err)
	}

	n, err := store.Put(ctx, "jobs/stream/dfA001host", bytes.NewReader(payload), -1)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("Expected %d bytes written, got %d", len(payload), n)
	}

	size, err := store.Size(ctx, "jobs/stream/dfA001host")
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != int64(len(payload)) {
		t.Errorf("Expected size %d, got %d", len(payload), size)
	}

	rc, err := store.Get(ctx, "jobs/stream/dfA001host")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer func() { _ = rc.Close() }()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Stored content differs (got %d bytes, want %d)", len(got), len(payload))
	}
}

// TestS3ContentStore_ShortStream checks that a truncated multipart upload
// leaves nothing behind.
func TestS3ContentStore_ShortStream(t *testing.T) {
	ctx := context.Background()
	bucket := "dittolpd-short"
	client := setupTestS3(t, bucket)

	store, err := s3store.NewS3ContentStore(ctx, s3store.S3ContentStoreConfig{
		Client:   client,
		Bucket:   bucket,
		PartSize: s3store.MinPartSize,
	})
	if err != nil {
		t.Fatalf("Failed to create S3 content store: %v", err)
	}
	defer func() { _ = store.Close() }()

	payload := bytes.Repeat([]byte("x"), 6*1024*1024)
	_, err = store.Put(ctx, "jobs/short/dfA001host", bytes.NewReader(payload), int64(len(payload))+1024)
	if !errors.Is(err, content.ErrSizeMismatch) {
		t.Fatalf("Expected ErrSizeMismatch, got %v", err)
	}

	if _, err := store.Size(ctx, "jobs/short/dfA001host"); !errors.Is(err, content.ErrContentNotFound) {
		t.Errorf("Expected ErrContentNotFound after short stream, got %v", err)
	}
}

// TestCreateContentStore_S3 builds the store from configuration options the
// way the daemon does.
func TestCreateContentStore_S3(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bucket := "dittolpd-config"
	setupTestS3(t, bucket)

	store, err := config.CreateContentStore(ctx, &config.ContentConfig{
		Type: "s3",
		S3: map[string]any{
			"endpoint":          localstackEndpoint(),
			"region":            "us-east-1",
			"bucket":            bucket,
			"access_key_id":     "test",
			"secret_access_key": "test",
			"key_prefix":        "spool/",
			"max_retries":       2,
		},
	}, nil)
	if err != nil {
		t.Fatalf("CreateContentStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	data := []byte("H mvs1\nP ibmuser\nldfA001mvs1\n")
	if _, err := store.Put(ctx, "jobs/cfg/cfA001mvs1", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := store.Get(ctx, "jobs/cfg/cfA001mvs1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer func() { _ = rc.Close() }()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Expected %q, got %q", data, got)
	}
}
