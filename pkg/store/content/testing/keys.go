package testing

import (
	"strings"
	"testing"

	"github.com/marmos91/dittolpd/pkg/store/content"
)

// RunKeyTests checks that every operation rejects unsafe keys.
func (suite *StoreTestSuite) RunKeyTests(t *testing.T) {
	store := suite.NewStore()

	for _, key := range []string{"", "/etc/passwd", "../escape", "jobs/../../escape", "jobs//double", "jobs/./dot"} {
		t.Run(key, func(t *testing.T) {
			_, err := store.Put(testContext(), key, strings.NewReader("x"), 1)
			AssertErrorIs(t, content.ErrInvalidKey, err)

			_, err = store.Get(testContext(), key)
			AssertErrorIs(t, content.ErrInvalidKey, err)

			_, err = store.Size(testContext(), key)
			AssertErrorIs(t, content.ErrInvalidKey, err)

			AssertErrorIs(t, content.ErrInvalidKey, store.Delete(testContext(), key))
		})
	}
}
