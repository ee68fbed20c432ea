// Package spool is the default LPD business logic: it stores received jobs,
// lists them and removes them.
//
// A Spool owns the configured queues and hands every LPD connection its own
// session (see session.go). Job files go to a content.Store under
// "jobs/<job-id>/<file-name>"; completed jobs are recorded in a jobs.Store.
package spool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/lpd"
	"github.com/marmos91/dittolpd/pkg/metrics"
	"github.com/marmos91/dittolpd/pkg/notify"
	"github.com/marmos91/dittolpd/pkg/store/content"
	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

var (
	// ErrUnknownQueue is returned for queues that are not configured when
	// unknown queues are not accepted.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrFileNotFound is returned by OpenFile for names not part of the job.
	ErrFileNotFound = errors.New("job file not found")
)

// SuperUser may remove every job.
const SuperUser = "root"

// DefaultNotifyTimeout bounds one event publication.
const DefaultNotifyTimeout = 5 * time.Second

// QueueConfig describes one print queue.
type QueueConfig struct {
	Name        string
	Description string

	// Locked queues refuse new jobs until unlocked.
	Locked bool

	// MaxJobSize caps the data bytes of one job. Zero falls back to the
	// spool-wide limit.
	MaxJobSize int64
}

// Config configures a Spool.
type Config struct {
	Queues []QueueConfig

	// AcceptUnknownQueues creates queues on first use instead of refusing
	// them.
	AcceptUnknownQueues bool

	// MaxJobSize caps the data bytes of one job; zero means unlimited.
	MaxJobSize int64

	// NotifyTimeout bounds every event publication (default 5s).
	NotifyTimeout time.Duration

	// Metrics is optional; nil disables metrics collection.
	Metrics metrics.SpoolMetrics

	// Now is the clock used for job timestamps (default time.Now).
	Now func() time.Time
}

// QueueInfo is a snapshot of one queue.
type QueueInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Locked      bool   `json:"locked"`
	MaxJobSize  int64  `json:"max_job_size,omitempty"`
	Jobs        int    `json:"jobs"`
	Bytes       int64  `json:"bytes"`
}

type queue struct {
	name        string
	description string
	locked      bool
	maxJobSize  int64
}

// Spool stores print jobs received over LPD.
//
// Thread Safety:
// Safe for concurrent use. Queue state is guarded by mu; stores provide
// their own synchronization.
type Spool struct {
	mu     sync.RWMutex
	queues map[string]*queue
	order  []string

	content  content.Store
	jobs     jobs.Store
	notifier notify.Notifier
	metrics  metrics.SpoolMetrics

	acceptUnknown bool
	maxJobSize    int64
	notifyTimeout time.Duration
	now           func() time.Time

	// nextNumber numbers jobs whose control file name carries no number.
	nextNumber atomic.Int64
}

// New creates a spool over the given stores. notifier may be nil.
func New(cfg Config, contentStore content.Store, jobStore jobs.Store, notifier notify.Notifier) (*Spool, error) {
	if contentStore == nil {
		return nil, errors.New("spool: content store is required")
	}
	if jobStore == nil {
		return nil, errors.New("spool: job store is required")
	}
	if cfg.MaxJobSize < 0 {
		return nil, fmt.Errorf("spool: max job size must be >= 0, got %d", cfg.MaxJobSize)
	}

	s := &Spool{
		queues:        make(map[string]*queue, len(cfg.Queues)),
		content:       contentStore,
		jobs:          jobStore,
		notifier:      notifier,
		metrics:       cfg.Metrics,
		acceptUnknown: cfg.AcceptUnknownQueues,
		maxJobSize:    cfg.MaxJobSize,
		notifyTimeout: cfg.NotifyTimeout,
		now:           cfg.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Noop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoopSpoolMetrics()
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = DefaultNotifyTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}

	for _, qc := range cfg.Queues {
		if qc.Name == "" {
			return nil, errors.New("spool: queue name is required")
		}
		if _, dup := s.queues[qc.Name]; dup {
			return nil, fmt.Errorf("spool: duplicate queue %q", qc.Name)
		}
		if qc.MaxJobSize < 0 {
			return nil, fmt.Errorf("spool: queue %q: max job size must be >= 0", qc.Name)
		}
		s.queues[qc.Name] = &queue{
			name:        qc.Name,
			description: qc.Description,
			locked:      qc.Locked,
			maxJobSize:  qc.MaxJobSize,
		}
		s.order = append(s.order, qc.Name)
	}

	return s, nil
}

// NewHandler returns a fresh session for one LPD connection.
func (s *Spool) NewHandler() lpd.Handler {
	return &session{spool: s}
}

var _ lpd.HandlerFactory = (*Spool)(nil)

// lookupQueue returns a copy of the named queue. Unknown names are created
// when the spool accepts unknown queues.
func (s *Spool) lookupQueue(name string) (queue, error) {
	if q, err := s.knownQueue(name); err == nil {
		return q, nil
	}
	if !s.acceptUnknown || name == "" {
		return queue{}, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[name]; ok {
		return *q, nil
	}
	q := &queue{name: name}
	s.queues[name] = q
	s.order = append(s.order, name)
	logger.Info("Spool created queue %s on first use", name)
	return *q, nil
}

// jobLimit returns the data byte limit for jobs of q, zero for unlimited.
func (s *Spool) jobLimit(q queue) int64 {
	if q.maxJobSize > 0 {
		return q.maxJobSize
	}
	return s.maxJobSize
}

// Queues returns every known queue in configuration order.
func (s *Spool) Queues(ctx context.Context) ([]QueueInfo, error) {
	s.mu.RLock()
	infos := make([]QueueInfo, 0, len(s.order))
	for _, name := range s.order {
		q := s.queues[name]
		infos = append(infos, QueueInfo{
			Name:        q.name,
			Description: q.description,
			Locked:      q.locked,
			MaxJobSize:  s.jobLimit(*q),
		})
	}
	s.mu.RUnlock()

	for i := range infos {
		list, err := s.jobs.List(ctx, infos[i].Name)
		if err != nil {
			return nil, fmt.Errorf("list jobs of %s: %w", infos[i].Name, err)
		}
		infos[i].Jobs = len(list)
		for _, j := range list {
			infos[i].Bytes += j.Size()
		}
	}
	return infos, nil
}

// LockQueue makes the queue refuse new jobs. Jobs already spooled stay.
func (s *Spool) LockQueue(ctx context.Context, name string) error {
	return s.setLocked(ctx, name, true)
}

// UnlockQueue makes the queue accept jobs again.
func (s *Spool) UnlockQueue(ctx context.Context, name string) error {
	return s.setLocked(ctx, name, false)
}

func (s *Spool) setLocked(ctx context.Context, name string, locked bool) error {
	s.mu.Lock()
	q, ok := s.queues[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}
	changed := q.locked != locked
	q.locked = locked
	s.mu.Unlock()

	if !changed {
		return nil
	}

	typ := notify.EventQueueUnlocked
	if locked {
		typ = notify.EventQueueLocked
	}
	logger.Info("Spool queue %s: %s", name, typ)
	s.publish(ctx, &notify.Event{Type: typ, Queue: name})
	return nil
}

// ListJobs returns the jobs of a known queue in print order.
func (s *Spool) ListJobs(ctx context.Context, queueName string) ([]*jobs.Job, error) {
	if _, err := s.knownQueue(queueName); err != nil {
		return nil, err
	}
	return s.jobs.List(ctx, queueName)
}

// GetJob returns one job by ID.
func (s *Spool) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	return s.jobs.Get(ctx, id)
}

// OpenFile opens a stored control or data file of a job. The caller must
// close the reader.
func (s *Spool) OpenFile(ctx context.Context, id, name string) (io.ReadCloser, jobs.File, error) {
	j, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, jobs.File{}, err
	}
	f, ok := j.File(name)
	if !ok {
		return nil, jobs.File{}, fmt.Errorf("%w: %s in job %s", ErrFileNotFound, name, id)
	}
	rc, err := s.content.Get(ctx, f.Key)
	if err != nil {
		return nil, jobs.File{}, err
	}
	return rc, f, nil
}

// RemoveJob deletes a job and its files without an ownership check.
func (s *Spool) RemoveJob(ctx context.Context, id string) error {
	j, err := s.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.removeJob(ctx, j, "admin")
}

// knownQueue is lookupQueue without creating queues on first use.
func (s *Spool) knownQueue(name string) (queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[name]
	if !ok {
		return queue{}, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}
	return *q, nil
}

func (s *Spool) removeJob(ctx context.Context, j *jobs.Job, agent string) error {
	if err := s.jobs.Delete(ctx, j.ID); err != nil {
		return fmt.Errorf("remove job %s: %w", j.ID, err)
	}
	s.deleteFiles(ctx, j.ID, fileKeys(j.Files()))

	logger.Info("Spool removed job %d (%s) from queue %s for %s", j.Number, j.ID, j.Queue, agent)
	s.metrics.RecordJobRemoved(j.Queue)
	s.publish(ctx, &notify.Event{
		Type:   notify.EventJobRemoved,
		JobID:  j.ID,
		Queue:  j.Queue,
		Number: j.Number,
		Owner:  j.Owner,
		Bytes:  j.Size(),
	})
	return nil
}

// deleteFiles removes stored files, logging failures. It runs detached from
// ctx so cleanup completes during shutdown.
func (s *Spool) deleteFiles(ctx context.Context, jobID string, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.content.Delete(ctx, key); err != nil {
			logger.Warn("Spool failed to delete %s of job %s: %v", key, jobID, err)
		}
	}
}

// publish delivers an event best-effort.
func (s *Spool) publish(ctx context.Context, event *notify.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.Publish(ctx, event); err != nil {
		logger.Warn("Spool failed to publish %s for queue %s: %v", event.Type, event.Queue, err)
	}
}

// assignNumber returns the next spool-local job number in 1..999.
func (s *Spool) assignNumber() int {
	return int(s.nextNumber.Add(1)-1)%999 + 1
}

func fileKeys(files []jobs.File) []string {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.Key != "" && !slices.Contains(keys, f.Key) {
			keys = append(keys, f.Key)
		}
	}
	return keys
}
