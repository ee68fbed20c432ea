// Package content defines the storage contract for the raw bytes of print
// jobs: control files and data files.
//
// Job metadata lives in pkg/store/jobs; a content store only maps keys to
// byte streams. Keys are slash-separated relative paths such as
// "jobs/<job-id>/dfA001host".
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	// ErrContentNotFound indicates the requested key does not exist.
	//
	// Returned by Get and Size. Delete never returns it.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidKey indicates a key that is empty, absolute, or escapes the
	// store root ("..").
	ErrInvalidKey = errors.New("invalid content key")

	// ErrSizeMismatch indicates Put received fewer bytes than announced.
	// Nothing is stored in that case.
	ErrSizeMismatch = errors.New("content size mismatch")
)

// Store persists job content.
//
// Implementations:
//   - memory: map-backed, for tests and ephemeral servers
//   - fs: one file per key below a base directory
//   - s3: one object per key, multipart uploads for large data files
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent Puts to the
// same key are last-writer-wins.
type Store interface {
	// Put stores the content read from r under key, replacing any previous
	// content. When size >= 0 exactly size bytes are consumed from r and a
	// short stream fails with ErrSizeMismatch. A negative size stores r up
	// to EOF. Put returns the number of bytes stored.
	Put(ctx context.Context, key string, r io.Reader, size int64) (int64, error)

	// Get opens the content of key. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Size returns the stored length of key.
	Size(ctx context.Context, key string) (int64, error)

	// Delete removes key. Removing a missing key succeeds.
	Delete(ctx context.Context, key string) error

	// Close releases the store's resources.
	Close() error
}

// ValidateKey checks that key is a clean relative slash path.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %q is not clean", ErrInvalidKey, key)
	}
	if key == ".." || strings.HasPrefix(key, "../") {
		return fmt.Errorf("%w: %q escapes the store", ErrInvalidKey, key)
	}
	return nil
}

// JobKey returns the key of file name belonging to job id.
func JobKey(jobID, name string) string {
	return path.Join("jobs", jobID, name)
}

// ReadAll reads the whole content of key.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// Exists reports whether key is present.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Size(ctx, key)
	if errors.Is(err, ErrContentNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CopyExact copies exactly size bytes from r to w, or everything up to EOF
// when size is negative. It fails with ErrSizeMismatch on a short stream.
// Bytes after the first size are left unread in r.
func CopyExact(w io.Writer, r io.Reader, size int64) (int64, error) {
	if size < 0 {
		return io.Copy(w, r)
	}
	n, err := io.Copy(w, io.LimitReader(r, size))
	if err != nil {
		return n, err
	}
	if n != size {
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrSizeMismatch, n, size)
	}
	return n, nil
}
