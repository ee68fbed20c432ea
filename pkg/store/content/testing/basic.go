package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/dittolpd/pkg/store/content"
)

// RunBasicTests executes the read-side tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("Get_Success", suite.testGetSuccess)
	t.Run("Size_NotFound", suite.testSizeNotFound)
	t.Run("Exists", suite.testExists)
	t.Run("Get_EmptyContent", suite.testGetEmpty)
	t.Run("Get_BinaryContent", suite.testGetBinary)
	t.Run("Get_LargeContent", suite.testGetLarge)
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Get(testContext(), generateTestKey("nonexistent"))
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testGetSuccess(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("cfA001host")
	data := []byte("Hhost\nPuser\nldfA001host\n")
	mustPut(t, store, key, data)

	assertContentEquals(t, store, key, data)
}

func (suite *StoreTestSuite) testSizeNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Size(testContext(), generateTestKey("nonexistent-size"))
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore()
	key := generateTestKey("exists")

	assertExists(t, store, key, false)
	mustPut(t, store, key, []byte("x"))
	assertExists(t, store, key, true)
}

func (suite *StoreTestSuite) testGetEmpty(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("dfA002empty")
	mustPut(t, store, key, []byte{})

	data := mustRead(t, store, key)
	assert.Empty(t, data)
	assert.Zero(t, mustGetSize(t, store, key))
}

func (suite *StoreTestSuite) testGetBinary(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("dfA003binary")
	data := []byte{0x00, 0x0d, 0x40, 0x40, 0xe3, 0xc5, 0xe2, 0xe3, 0x00, 0x0a, 0xff}
	mustPut(t, store, key, data)

	assertContentEquals(t, store, key, data)
}

func (suite *StoreTestSuite) testGetLarge(t *testing.T) {
	store := suite.NewStore()

	key := generateTestKey("dfA004large")
	data := generateTestData(suite.largeSize())
	mustPut(t, store, key, data)

	assertContentEquals(t, store, key, data)
}
