// Package memory implements an in-memory content store.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/dittolpd/pkg/store/content"
)

// MemoryContentStore implements content.Store using a map.
//
// Characteristics:
//   - Fast: all operations are memory-speed
//   - Volatile: data lost on restart
//   - Memory-bound: every data file is held in RAM
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Stored slices are never
// handed out; Get returns a reader over an immutable slice, so later Puts do
// not affect open readers.
type MemoryContentStore struct {
	// data stores file content keyed by content key
	data map[string][]byte

	// mu protects concurrent access to data
	mu sync.RWMutex
}

// NewMemoryContentStore creates an empty in-memory content store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{
		data: make(map[string][]byte),
	}
}

// Put buffers the stream first so a short stream leaves the previous
// content of key untouched.
func (s *MemoryContentStore) Put(ctx context.Context, key string, r io.Reader, size int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := content.ValidateKey(key); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	n, err := content.CopyExact(&buf, r, size)
	if err != nil {
		return n, fmt.Errorf("put %s: %w", key, err)
	}

	s.mu.Lock()
	s.data[key] = buf.Bytes()
	s.mu.Unlock()

	return n, nil
}

func (s *MemoryContentStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := content.ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", key, content.ErrContentNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryContentStore) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := content.ValidateKey(key); err != nil {
		return 0, err
	}

	s.mu.RLock()
	data, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%s: %w", key, content.ErrContentNotFound)
	}
	return int64(len(data)), nil
}

func (s *MemoryContentStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close drops all content.
func (s *MemoryContentStore) Close() error {
	s.mu.Lock()
	s.data = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}
