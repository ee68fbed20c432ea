package testing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/store/content"
)

// RunWriteTests executes Put and Delete tests.
func (suite *StoreTestSuite) RunWriteTests(t *testing.T) {
	t.Run("Put_Overwrite", suite.testPutOverwrite)
	t.Run("Put_UnknownSize", suite.testPutUnknownSize)
	t.Run("Put_ShortStream", suite.testPutShortStream)
	t.Run("Put_LeavesExtraBytes", suite.testPutLeavesExtraBytes)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("Delete_KeepsSiblings", suite.testDeleteKeepsSiblings)
}

func (suite *StoreTestSuite) testPutOverwrite(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("overwrite")
	mustPut(t, store, key, []byte("Old data"))
	mustPut(t, store, key, []byte("New data that is longer"))

	assertContentEquals(t, store, key, []byte("New data that is longer"))
}

func (suite *StoreTestSuite) testPutUnknownSize(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("unknown-size")
	n, err := store.Put(testContext(), key, strings.NewReader("streamed"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	assertContentEquals(t, store, key, []byte("streamed"))
}

func (suite *StoreTestSuite) testPutShortStream(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("short")
	_, err := store.Put(testContext(), key, strings.NewReader("only ten b"), 100)
	AssertErrorIs(t, content.ErrSizeMismatch, err)

	assertExists(t, store, key, false)
}

func (suite *StoreTestSuite) testPutLeavesExtraBytes(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("exact")
	r := bytes.NewReader([]byte("abcdef\x00"))
	n, err := store.Put(testContext(), key, r, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, 1, r.Len(), "the terminator must stay in the stream")

	assertContentEquals(t, store, key, []byte("abcdef"))
}

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("delete")
	mustPut(t, store, key, []byte("to be removed"))
	require.NoError(t, store.Delete(testContext(), key))

	assertExists(t, store, key, false)
	_, err := store.Get(testContext(), key)
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("never-written")
	assert.NoError(t, store.Delete(testContext(), key))
	assert.NoError(t, store.Delete(testContext(), key))
}

func (suite *StoreTestSuite) testDeleteKeepsSiblings(t *testing.T) {
	store := suite.NewStore()

	cf := content.JobKey("job-1", "cfA001host")
	df := content.JobKey("job-1", "dfA001host")
	mustPut(t, store, cf, []byte("control"))
	mustPut(t, store, df, []byte("data"))

	require.NoError(t, store.Delete(testContext(), cf))
	assertExists(t, store, cf, false)
	assertContentEquals(t, store, df, []byte("data"))
}
