package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

func mustPut(t *testing.T, store jobs.Store, j *jobs.Job) {
	t.Helper()
	require.NoError(t, store.Put(testContext(), j), "Put should succeed")
}

// assertJobEqual compares two jobs, treating timestamps by instant.
func assertJobEqual(t *testing.T, want, got *jobs.Job) {
	t.Helper()
	require.NotNil(t, got)

	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "CreatedAt: want %v, got %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "UpdatedAt: want %v, got %v", want.UpdatedAt, got.UpdatedAt)

	w, g := *want, *got
	w.CreatedAt, g.CreatedAt = w.CreatedAt.UTC(), g.CreatedAt.UTC()
	w.UpdatedAt, g.UpdatedAt = w.UpdatedAt.UTC(), g.UpdatedAt.UTC()
	if len(w.DataFiles) == 0 {
		w.DataFiles = nil
	}
	if len(g.DataFiles) == 0 {
		g.DataFiles = nil
	}
	assert.Equal(t, w, g)
}

func ids(list []*jobs.Job) []string {
	out := make([]string, len(list))
	for i, j := range list {
		out[i] = j.ID
	}
	return out
}
