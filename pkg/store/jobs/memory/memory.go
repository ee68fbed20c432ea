// Package memory implements an in-memory job store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// MemoryJobStore implements jobs.Store using a map.
//
// Records are cloned on the way in and out, so callers never share state
// with the store. Jobs are lost on restart.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.Job
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*jobs.Job),
	}
}

func (s *MemoryJobStore) Put(ctx context.Context, j *jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[j.ID] = j.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", id, jobs.ErrJobNotFound)
	}
	return j.Clone(), nil
}

func (s *MemoryJobStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%s: %w", id, jobs.ErrJobNotFound)
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryJobStore) List(ctx context.Context, queue string) ([]*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	list := make([]*jobs.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if queue == "" || j.Queue == queue {
			list = append(list, j.Clone())
		}
	}
	s.mu.RUnlock()

	jobs.SortJobs(list)
	return list, nil
}

func (s *MemoryJobStore) Close() error {
	return nil
}
