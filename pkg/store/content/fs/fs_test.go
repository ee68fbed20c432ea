package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/store/content"
	contenttesting "github.com/marmos91/dittolpd/pkg/store/content/testing"
)

func TestFSContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func() content.Store {
			store, err := NewFSContentStore(context.Background(), t.TempDir())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestFSContentStoreLayout(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store, err := NewFSContentStore(ctx, base)
	require.NoError(t, err)

	key := content.JobKey("0b1c", "dfA001host")
	_, err = store.Put(ctx, key, strings.NewReader("payload"), 7)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(base, "jobs", "0b1c", "dfA001host"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(raw))

	entries, err := os.ReadDir(filepath.Join(base, "jobs", "0b1c"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file may survive a Put")

	require.NoError(t, store.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(base, "jobs", "0b1c"))
	assert.True(t, os.IsNotExist(err), "empty job directory should be pruned")
	_, err = os.Stat(base)
	assert.NoError(t, err, "base directory must survive")
}

func TestFSContentStoreFailedPutLeavesNoFile(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store, err := NewFSContentStore(ctx, base)
	require.NoError(t, err)

	_, err = store.Put(ctx, "jobs/x/dfA001host", strings.NewReader("abc"), 10)
	require.ErrorIs(t, err, content.ErrSizeMismatch)

	entries, err := os.ReadDir(filepath.Join(base, "jobs", "x"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFSContentStoreCancelledContext(t *testing.T) {
	store, err := NewFSContentStore(context.Background(), t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "jobs/x/cf", strings.NewReader("a"), 1)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewFSContentStore(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFSContentStoreRequiresPath(t *testing.T) {
	_, err := NewFSContentStore(context.Background(), "")
	assert.Error(t, err)
}
