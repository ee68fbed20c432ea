// Package testing provides a conformance suite for jobs.Store
// implementations.
package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// StoreTestSuite runs the jobs.Store contract against one implementation.
//
// Usage:
//
//	func TestMyJobStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) jobs.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The suite closes
	// it when the test ends.
	NewStore func(t *testing.T) jobs.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("ListOperations", suite.RunListTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T) jobs.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testContext() context.Context {
	return context.Background()
}

// baseTime is truncated to microseconds so every store round-trips it.
var baseTime = time.Date(2024, 3, 14, 9, 26, 53, 589793000, time.UTC)

// newJob builds a complete job with one data file.
func newJob(id, queue string, number int, created time.Time) *jobs.Job {
	host := "mvs1"
	return &jobs.Job{
		ID:      id,
		Number:  number,
		Queue:   queue,
		Owner:   "ibmuser",
		Host:    host,
		JobName: "JOB00042",
		Title:   "Test Print",
		Class:   "A",
		Peer:    "10.0.0.7:721",
		ControlFile: jobs.File{
			Name: fmt.Sprintf("cfA%03d%s", number, host),
			Key:  fmt.Sprintf("jobs/%s/cfA%03d%s", id, number, host),
			Size: 128,
		},
		DataFiles: []jobs.File{{
			Name:   fmt.Sprintf("dfA%03d%s", number, host),
			Key:    fmt.Sprintf("jobs/%s/dfA%03d%s", id, number, host),
			Size:   4096,
			Format: 'l',
		}},
		Status:    jobs.StatusQueued,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
