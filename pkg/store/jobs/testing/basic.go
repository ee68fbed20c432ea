package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// RunBasicTests covers Put, Get and Delete.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("PutGet", suite.testPutGet)
	t.Run("GetNotFound", suite.testGetNotFound)
	t.Run("PutReplaces", suite.testPutReplaces)
	t.Run("PutRejectsInvalid", suite.testPutRejectsInvalid)
	t.Run("MultipleDataFiles", suite.testMultipleDataFiles)
	t.Run("ReturnedJobIsACopy", suite.testReturnedJobIsACopy)
	t.Run("Delete", suite.testDelete)
	t.Run("DeleteNotFound", suite.testDeleteNotFound)
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	store := suite.newStore(t)
	want := newJob("job-1", "lp", 1, baseTime)
	mustPut(t, store, want)

	got, err := store.Get(testContext(), "job-1")
	require.NoError(t, err)
	assertJobEqual(t, want, got)
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.Get(testContext(), "missing")
	require.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func (suite *StoreTestSuite) testPutReplaces(t *testing.T) {
	store := suite.newStore(t)
	j := newJob("job-1", "lp", 1, baseTime)
	mustPut(t, store, j)

	updated := j.Clone()
	updated.Status = jobs.StatusHeld
	updated.Queue = "raw"
	updated.UpdatedAt = baseTime.Add(time.Minute)
	mustPut(t, store, updated)

	got, err := store.Get(testContext(), "job-1")
	require.NoError(t, err)
	assertJobEqual(t, updated, got)

	lp, err := store.List(testContext(), "lp")
	require.NoError(t, err)
	assert.Empty(t, lp, "job moved out of its old queue")

	raw, err := store.List(testContext(), "raw")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, ids(raw))
}

func (suite *StoreTestSuite) testPutRejectsInvalid(t *testing.T) {
	store := suite.newStore(t)

	noID := newJob("", "lp", 1, baseTime)
	require.ErrorIs(t, store.Put(testContext(), noID), jobs.ErrInvalidJob)

	noQueue := newJob("job-1", "", 1, baseTime)
	require.ErrorIs(t, store.Put(testContext(), noQueue), jobs.ErrInvalidJob)
}

func (suite *StoreTestSuite) testMultipleDataFiles(t *testing.T) {
	store := suite.newStore(t)
	j := newJob("job-1", "lp", 7, baseTime)
	j.DataFiles = append(j.DataFiles,
		jobs.File{Name: "dfB007mvs1", Key: "jobs/job-1/dfB007mvs1", Size: 0, Format: 'f'},
		jobs.File{Name: "dfC007mvs1", Key: "jobs/job-1/dfC007mvs1", Size: 1 << 20, Format: 'o'},
	)
	mustPut(t, store, j)

	got, err := store.Get(testContext(), "job-1")
	require.NoError(t, err)
	require.Len(t, got.DataFiles, 3)
	assert.Equal(t, int64(4096+1<<20), got.Size())
	assert.Equal(t, byte('o'), got.DataFiles[2].Format)
}

func (suite *StoreTestSuite) testReturnedJobIsACopy(t *testing.T) {
	store := suite.newStore(t)
	j := newJob("job-1", "lp", 1, baseTime)
	mustPut(t, store, j)

	j.Owner = "mallory"
	j.DataFiles[0].Size = 1

	got, err := store.Get(testContext(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "ibmuser", got.Owner)
	assert.Equal(t, int64(4096), got.DataFiles[0].Size)

	got.DataFiles[0].Name = "changed"
	again, err := store.Get(testContext(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "dfA001mvs1", again.DataFiles[0].Name)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, newJob("job-1", "lp", 1, baseTime))
	mustPut(t, store, newJob("job-2", "lp", 2, baseTime))

	require.NoError(t, store.Delete(testContext(), "job-1"))

	_, err := store.Get(testContext(), "job-1")
	require.ErrorIs(t, err, jobs.ErrJobNotFound)

	list, err := store.List(testContext(), "lp")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-2"}, ids(list))
}

func (suite *StoreTestSuite) testDeleteNotFound(t *testing.T) {
	store := suite.newStore(t)

	err := store.Delete(testContext(), "missing")
	require.ErrorIs(t, err, jobs.ErrJobNotFound)
}
