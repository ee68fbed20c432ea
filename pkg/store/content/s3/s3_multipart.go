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

// maxParts is the S3 limit on parts per upload.
const maxParts = 10000

// putMultipart streams first and then the rest of r as a multipart upload.
//
// Parts are uploaded sequentially so at most one part is held in memory.
// When size >= 0 and the stream ends early the upload is aborted and
// ErrSizeMismatch returned; no object is created.
func (s *S3ContentStore) putMultipart(ctx context.Context, objectKey string, first []byte, r io.Reader, size int64) (int64, error) {
	uploadID, err := s.beginMultipartUpload(ctx, objectKey)
	if err != nil {
		return 0, err
	}

	var (
		parts []types.CompletedPart
		total int64
		part  = first
	)
	abort := func(cause error) (int64, error) {
		if err := s.abortMultipartUpload(context.WithoutCancel(ctx), objectKey, uploadID); err != nil {
			return total, errors.Join(cause, err)
		}
		return total, cause
	}

	for len(part) > 0 {
		if len(parts) == maxParts {
			return abort(fmt.Errorf("object exceeds %d parts of %d bytes", maxParts, s.partSize))
		}
		completed, err := s.uploadPart(ctx, objectKey, uploadID, int32(len(parts)+1), part)
		if err != nil {
			return abort(err)
		}
		parts = append(parts, completed)
		total += int64(len(part))

		part, err = readPart(r, s.partSize)
		if err != nil {
			return abort(err)
		}
	}

	if size >= 0 && total != size {
		return abort(fmt.Errorf("%w: got %d of %d bytes", content.ErrSizeMismatch, total, size))
	}

	if err := s.completeMultipartUpload(ctx, objectKey, uploadID, parts); err != nil {
		return abort(err)
	}
	return total, nil
}

// beginMultipartUpload initiates a multipart upload session.
func (s *S3ContentStore) beginMultipartUpload(ctx context.Context, objectKey string) (string, error) {
	start := time.Now()
	result, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	s.metrics.ObserveOperation("CreateMultipartUpload", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart upload: %w", err)
	}
	if result.UploadId == nil {
		return "", errors.New("failed to create multipart upload: no upload id")
	}
	s.metrics.RecordMultipartUpload("initiated")
	return *result.UploadId, nil
}

// uploadPart uploads one part. Part numbers start at 1.
func (s *S3ContentStore) uploadPart(ctx context.Context, objectKey, uploadID string, partNumber int32, data []byte) (types.CompletedPart, error) {
	start := time.Now()
	result, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.metrics.ObserveOperation("UploadPart", time.Since(start), err)
	if err != nil {
		return types.CompletedPart{}, fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}
	s.metrics.RecordBytes("write", int64(len(data)))

	return types.CompletedPart{
		ETag:       result.ETag,
		PartNumber: aws.Int32(partNumber),
	}, nil
}

// completeMultipartUpload assembles the uploaded parts, already in order.
func (s *S3ContentStore) completeMultipartUpload(ctx context.Context, objectKey, uploadID string, parts []types.CompletedPart) error {
	start := time.Now()
	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectKey),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	s.metrics.ObserveOperation("CompleteMultipartUpload", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	s.metrics.RecordMultipartUpload("completed")
	return nil
}

// abortMultipartUpload cancels an in-progress multipart upload.
//
// This operation is idempotent.
func (s *S3ContentStore) abortMultipartUpload(ctx context.Context, objectKey, uploadID string) error {
	start := time.Now()
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectKey),
		UploadId: aws.String(uploadID),
	})
	s.metrics.ObserveOperation("AbortMultipartUpload", time.Since(start), err)
	if err != nil {
		// Ignore NoSuchUpload error (idempotent behavior)
		var noSuchUpload *types.NoSuchUpload
		if !errors.As(err, &noSuchUpload) {
			return fmt.Errorf("failed to abort multipart upload: %w", err)
		}
	}
	s.metrics.RecordMultipartUpload("aborted")
	return nil
}
