package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
	jobstesting "github.com/marmos91/dittolpd/pkg/store/jobs/testing"
)

func TestBadgerJobStore(t *testing.T) {
	suite := &jobstesting.StoreTestSuite{
		NewStore: func(t *testing.T) jobs.Store {
			store, err := NewBadgerJobStore(context.Background(), BadgerJobStoreConfig{InMemory: true})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerJobStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerJobStore(ctx, BadgerJobStoreConfig{DBPath: dir})
	require.NoError(t, err)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Put(ctx, &jobs.Job{
		ID:        "job-1",
		Number:    12,
		Queue:     "lp",
		Owner:     "alice",
		DataFiles: []jobs.File{{Name: "dfA012host", Key: "jobs/job-1/dfA012host", Size: 3, Format: 'l'}},
		Status:    jobs.StatusQueued,
		CreatedAt: created,
	}))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerJobStore(ctx, BadgerJobStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	list, err := reopened.List(ctx, "lp")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 12, list[0].Number)
	assert.Equal(t, "alice", list[0].Owner)
	assert.True(t, created.Equal(list[0].CreatedAt))
	assert.Equal(t, int64(3), list[0].Size())
}

func TestBadgerJobStoreRequiresPath(t *testing.T) {
	_, err := NewBadgerJobStore(context.Background(), BadgerJobStoreConfig{})
	require.Error(t, err)
}

func TestQueueIndexKeys(t *testing.T) {
	key := keyQueueEntry("lp", "abc")
	assert.Equal(t, "q:lp\x00abc", string(key))
	assert.Equal(t, "abc", idFromQueueEntry(key, "lp"))
	assert.Equal(t, "job:abc", string(keyJob("abc")))
}
