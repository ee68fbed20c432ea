package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListTests covers List filtering and ordering.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	t.Run("Empty", suite.testListEmpty)
	t.Run("OrderedByCreation", suite.testListOrderedByCreation)
	t.Run("TiesOrderedByNumber", suite.testListTiesOrderedByNumber)
	t.Run("FilterByQueue", suite.testListFilterByQueue)
	t.Run("AllQueues", suite.testListAllQueues)
}

func (suite *StoreTestSuite) testListEmpty(t *testing.T) {
	store := suite.newStore(t)

	list, err := store.List(testContext(), "lp")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func (suite *StoreTestSuite) testListOrderedByCreation(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, newJob("c", "lp", 1, baseTime.Add(2*time.Second)))
	mustPut(t, store, newJob("a", "lp", 3, baseTime))
	mustPut(t, store, newJob("b", "lp", 2, baseTime.Add(time.Second)))

	list, err := store.List(testContext(), "lp")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(list))
}

func (suite *StoreTestSuite) testListTiesOrderedByNumber(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, newJob("x", "lp", 9, baseTime))
	mustPut(t, store, newJob("y", "lp", 4, baseTime))
	mustPut(t, store, newJob("z", "lp", 6, baseTime))

	list, err := store.List(testContext(), "lp")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z", "x"}, ids(list))
}

func (suite *StoreTestSuite) testListFilterByQueue(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, newJob("a", "lp", 1, baseTime))
	mustPut(t, store, newJob("b", "raw", 2, baseTime.Add(time.Second)))
	mustPut(t, store, newJob("c", "lp", 3, baseTime.Add(2*time.Second)))
	mustPut(t, store, newJob("d", "lp2", 4, baseTime.Add(3*time.Second)))

	lp, err := store.List(testContext(), "lp")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(lp))

	raw, err := store.List(testContext(), "raw")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(raw))

	none, err := store.List(testContext(), "l")
	require.NoError(t, err)
	assert.Empty(t, none, "queue names match exactly, not by prefix")
}

func (suite *StoreTestSuite) testListAllQueues(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, newJob("b", "raw", 2, baseTime.Add(time.Second)))
	mustPut(t, store, newJob("a", "lp", 1, baseTime))

	all, err := store.List(testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(all))
}
