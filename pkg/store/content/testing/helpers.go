package testing

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/store/content"
)

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

// mustPut stores data and fails the test if it errors.
func mustPut(t *testing.T, store content.Store, key string, data []byte) {
	t.Helper()
	n, err := store.Put(testContext(), key, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err, "Put should succeed")
	require.Equal(t, int64(len(data)), n, "Put should report every byte")
}

// mustRead reads content and fails the test if it errors.
func mustRead(t *testing.T, store content.Store, key string) []byte {
	t.Helper()
	data, err := content.ReadAll(testContext(), store, key)
	require.NoError(t, err, "Get should succeed")
	return data
}

// mustGetSize gets content size and fails the test if it errors.
func mustGetSize(t *testing.T, store content.Store, key string) int64 {
	t.Helper()
	size, err := store.Size(testContext(), key)
	require.NoError(t, err, "Size should succeed")
	return size
}

// assertExists checks if content exists.
func assertExists(t *testing.T, store content.Store, key string, expected bool) {
	t.Helper()
	exists, err := content.Exists(testContext(), store, key)
	require.NoError(t, err, "Exists should not error")
	assert.Equal(t, expected, exists, "Content existence mismatch")
}

// assertContentEquals checks if content matches expected data.
func assertContentEquals(t *testing.T, store content.Store, key string, expected []byte) {
	t.Helper()
	actual := mustRead(t, store, key)
	assert.Equal(t, expected, actual, "Content data mismatch")
	assert.Equal(t, int64(len(expected)), mustGetSize(t, store, key), "Content size mismatch")
}

// generateTestData creates test data of specified size.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = byte(i % 256)
	}
	return data
}

// generateTestKey generates a job-shaped test key.
func generateTestKey(name string) string {
	return content.JobKey("test-job", name)
}
