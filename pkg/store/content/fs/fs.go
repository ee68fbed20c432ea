// Package fs implements filesystem-based content storage.
//
// Every key maps to one file below the base directory. Writes go to a
// temporary file in the target directory which is renamed into place, so
// readers never observe a partially written data file.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/marmos91/dittolpd/pkg/store/content"
)

// FSContentStore implements content.Store on the local filesystem.
//
// Thread Safety:
// Safe for concurrent use. Concurrent Puts to the same key are
// last-rename-wins; a reader opened before a rename keeps reading the old
// file.
type FSContentStore struct {
	basePath string
}

// NewFSContentStore creates a filesystem content store rooted at basePath.
//
// The base directory is created with permissions 0755 if it doesn't exist.
//
// Parameters:
//   - ctx: Context for cancellation
//   - basePath: Root directory for stored job files
//
// Returns:
//   - *FSContentStore: Initialized store
//   - error: If the directory cannot be created or ctx is cancelled
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if basePath == "" {
		return nil, errors.New("filesystem content store: path is required")
	}
	basePath = filepath.Clean(basePath)

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{basePath: basePath}, nil
}

// getFilePath maps a key to its file, rejecting keys that leave basePath.
func (s *FSContentStore) getFilePath(key string) (string, error) {
	if err := content.ValidateKey(key); err != nil {
		return "", err
	}
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", content.ErrInvalidKey, key)
	}
	return filepath.Join(s.basePath, rel), nil
}

// Put writes r to a temporary file next to the target and renames it into
// place once exactly size bytes have been copied.
func (s *FSContentStore) Put(ctx context.Context, key string, r io.Reader, size int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := s.getFilePath(key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := content.CopyExact(tmp, &ctxReader{ctx: ctx, r: r}, size)
	if err != nil {
		return n, fmt.Errorf("put %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("put %s: sync: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("put %s: close: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return n, fmt.Errorf("put %s: rename: %w", key, err)
	}
	committed = true
	return n, nil
}

func (s *FSContentStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.getFilePath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return f, nil
}

func (s *FSContentStore) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := s.getFilePath(key)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", key, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s: %w", key, content.ErrContentNotFound)
	}
	return info.Size(), nil
}

// Delete removes the file and prunes the job directory once it is empty.
func (s *FSContentStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.getFilePath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	// Removing a non-empty directory fails, which is what we want.
	for dir := filepath.Dir(path); dir != s.basePath && len(dir) > len(s.basePath); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// BasePath returns the root directory.
func (s *FSContentStore) BasePath() string {
	return s.basePath
}

func (s *FSContentStore) Close() error {
	return nil
}

// ctxReader stops a long copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
