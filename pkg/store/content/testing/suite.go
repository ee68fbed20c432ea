// Package testing provides a conformance suite for content.Store
// implementations.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittolpd/pkg/store/content"
)

// StoreTestSuite is a comprehensive test suite for content.Store
// implementations. It tests the interface contract, not implementation
// details, making it reusable across memory, filesystem and S3 stores.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() content.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh Store instance
	// for each test. This ensures test isolation.
	NewStore func() content.Store

	// LargeSize is the payload size of the large-content tests. Zero means
	// 10MB.
	LargeSize int
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("KeyValidation", suite.RunKeyTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) largeSize() int {
	if suite.LargeSize > 0 {
		return suite.LargeSize
	}
	return 10 * 1024 * 1024
}
