package spool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/lpd"
	"github.com/marmos91/dittolpd/pkg/lpd/controlfile"
	"github.com/marmos91/dittolpd/pkg/notify"
	"github.com/marmos91/dittolpd/pkg/store/content"
	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// maxControlFileSize bounds the control files held in memory for parsing.
const maxControlFileSize = 1 << 20

// pendingJob is a job being received on one connection.
type pendingJob struct {
	id      string
	queue   queue
	peer    string
	created time.Time

	control *jobs.File
	parsed  *controlfile.ControlFile
	data    []jobs.File
}

func (p *pendingJob) dataBytes() int64 {
	var n int64
	for _, f := range p.data {
		n += f.Size
	}
	return n
}

// keys returns every content key written for the job.
func (p *pendingJob) keys() []string {
	files := slices.Clone(p.data)
	if p.control != nil {
		files = append(files, *p.control)
	}
	return fileKeys(files)
}

// session is the lpd.Handler of one connection. The protocol engine calls
// it from a single goroutine.
type session struct {
	spool *Spool
	job   *pendingJob
}

var _ lpd.Handler = (*session)(nil)

func (h *session) PrintJobs(ctx context.Context, queueName string) error {
	if _, err := h.spool.knownQueue(queueName); err != nil {
		return err
	}
	logger.Debug("Spool print request for queue %s from %s", queueName, lpd.PeerFromContext(ctx))
	h.spool.publish(ctx, &notify.Event{Type: notify.EventQueueStarted, Queue: queueName})
	return nil
}

func (h *session) StartPrinterJob(ctx context.Context, queueName string) (bool, error) {
	s := h.spool
	peer := lpd.PeerFromContext(ctx)

	q, err := s.lookupQueue(queueName)
	if err != nil {
		logger.Warn("Spool refused job for unknown queue %q from %s", queueName, peer)
		s.metrics.RecordJobRejected(queueName, "unknown_queue")
		return false, nil
	}
	if q.locked {
		logger.Info("Spool refused job for locked queue %s from %s", queueName, peer)
		s.metrics.RecordJobRejected(queueName, "locked")
		return false, nil
	}

	h.job = &pendingJob{
		id:      uuid.NewString(),
		queue:   q,
		peer:    peer,
		created: s.now(),
	}
	logger.Debug("Spool job %s started on queue %s from %s", h.job.id, queueName, peer)
	return true, nil
}

func (h *session) ReceiveControlFile(ctx context.Context, r io.Reader, length int64, name string) (bool, error) {
	job := h.job
	if job == nil {
		return false, errors.New("control file received outside a job")
	}
	if length > maxControlFileSize {
		logger.Warn("Spool job %s: control file %s too large (%d bytes)", job.id, name, length)
		_, err := io.Copy(io.Discard, r)
		return false, ignoreShortStream(err)
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		logger.Warn("Spool job %s: control file %s incomplete: %v", job.id, name, err)
		return false, ignoreShortStream(err)
	}

	parsed, err := controlfile.Parse(raw)
	if err != nil {
		logger.Warn("Spool job %s: control file %s rejected: %v", job.id, name, err)
		return false, nil
	}

	file, ok, err := h.store(ctx, name, bytes.NewReader(raw), length)
	if !ok || err != nil {
		return false, err
	}

	if job.control != nil && job.control.Key != file.Key {
		h.spool.deleteFiles(ctx, job.id, []string{job.control.Key})
	}
	job.control = &file
	job.parsed = parsed
	for i := range job.data {
		job.data[i].Format = parsed.FormatOf(job.data[i].Name)
	}
	logger.Debug("Spool job %s: control file %s (%d bytes, user %s)", job.id, name, length, parsed.User)
	return true, nil
}

func (h *session) ReceiveDataFile(ctx context.Context, r io.Reader, length int64, name string) (bool, error) {
	job := h.job
	if job == nil {
		return false, errors.New("data file received outside a job")
	}

	existing := job.dataBytes()
	if i := slices.IndexFunc(job.data, func(f jobs.File) bool { return f.Name == name }); i >= 0 {
		existing -= job.data[i].Size
	}
	if limit := h.spool.jobLimit(job.queue); limit > 0 && existing+length > limit {
		logger.Warn("Spool job %s: data file %s (%d bytes) exceeds the %d byte limit of queue %s",
			job.id, name, length, limit, job.queue.name)
		h.spool.metrics.RecordJobRejected(job.queue.name, "too_large")
		_, err := io.Copy(io.Discard, r)
		return false, ignoreShortStream(err)
	}

	file, ok, err := h.store(ctx, name, r, length)
	if !ok || err != nil {
		return false, err
	}
	if job.parsed != nil {
		file.Format = job.parsed.FormatOf(name)
	}

	if i := slices.IndexFunc(job.data, func(f jobs.File) bool { return f.Name == name }); i >= 0 {
		job.data[i] = file
	} else {
		job.data = append(job.data, file)
	}
	logger.Debug("Spool job %s: data file %s (%d bytes)", job.id, name, length)
	return true, nil
}

// store streams one file into the content store. A failed transfer is a
// refusal, not a handler error, so the client gets a negative
// acknowledgement; only cancellation ends the connection.
func (h *session) store(ctx context.Context, name string, r io.Reader, length int64) (jobs.File, bool, error) {
	job := h.job
	if err := content.ValidateKey(content.JobKey(job.id, name)); err != nil {
		logger.Warn("Spool job %s: invalid file name %q: %v", job.id, name, err)
		_, err := io.Copy(io.Discard, r)
		return jobs.File{}, false, ignoreShortStream(err)
	}

	key := content.JobKey(job.id, name)
	n, err := h.spool.content.Put(ctx, key, r, length)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return jobs.File{}, false, ctxErr
		}
		logger.Warn("Spool job %s: storing %s failed after %d of %d bytes: %v", job.id, name, n, length, err)
		return jobs.File{}, false, nil
	}
	return jobs.File{Name: name, Key: key, Size: n}, true, nil
}

func (h *session) AbortPrinterJob(ctx context.Context) error {
	job := h.job
	if job == nil {
		return nil
	}
	h.spool.deleteFiles(ctx, job.id, job.keys())
	logger.Info("Spool job %s on queue %s aborted", job.id, job.queue.name)

	h.job = &pendingJob{
		id:      uuid.NewString(),
		queue:   job.queue,
		peer:    job.peer,
		created: h.spool.now(),
	}
	return nil
}

func (h *session) EndPrinterJob(ctx context.Context) error {
	job := h.job
	h.job = nil
	if job == nil {
		return nil
	}
	s := h.spool

	if job.control == nil || len(job.data) == 0 {
		if keys := job.keys(); len(keys) > 0 {
			logger.Warn("Spool discarding incomplete job %s on queue %s (control file: %t, data files: %d)",
				job.id, job.queue.name, job.control != nil, len(job.data))
			s.metrics.RecordJobRejected(job.queue.name, "incomplete")
			s.deleteFiles(ctx, job.id, keys)
		}
		return nil
	}

	record := h.buildJob(job)
	if err := s.jobs.Put(context.WithoutCancel(ctx), record); err != nil {
		s.deleteFiles(ctx, job.id, job.keys())
		return fmt.Errorf("persist job %s: %w", job.id, err)
	}

	logger.Info("Spool queued job %d (%s) on %s: owner=%s host=%s files=%d bytes=%d",
		record.Number, record.ID, record.Queue, record.Owner, record.Host, len(record.DataFiles), record.Size())
	s.metrics.RecordJobReceived(record.Queue, record.Size())
	s.publish(ctx, &notify.Event{
		Type:   notify.EventJobReceived,
		JobID:  record.ID,
		Queue:  record.Queue,
		Number: record.Number,
		Owner:  record.Owner,
		Bytes:  record.Size(),
	})
	return nil
}

// buildJob turns a complete pending job into its stored record.
func (h *session) buildJob(job *pendingJob) *jobs.Job {
	cf := job.parsed

	number, ok := controlfile.ParseJobNumber(job.control.Name)
	if !ok {
		number = h.spool.assignNumber()
	}
	host := cf.Host
	if host == "" {
		host = controlfile.HostOf(job.control.Name)
	}
	owner := cf.User
	if owner == "" {
		owner = cf.BannerUser
	}

	now := h.spool.now()
	return &jobs.Job{
		ID:          job.id,
		Number:      number,
		Queue:       job.queue.name,
		Owner:       owner,
		Host:        host,
		JobName:     cf.JobName,
		Title:       cf.Title,
		Class:       cf.Class,
		Peer:        job.peer,
		ControlFile: *job.control,
		DataFiles:   slices.Clone(job.data),
		Status:      jobs.StatusQueued,
		CreatedAt:   job.created,
		UpdatedAt:   now,
	}
}

func (h *session) RemoveJobs(ctx context.Context, queueName, agent string, jobIDs []string) error {
	s := h.spool
	if _, err := s.knownQueue(queueName); err != nil {
		return err
	}

	list, err := s.jobs.List(ctx, queueName)
	if err != nil {
		return fmt.Errorf("list jobs of %s: %w", queueName, err)
	}

	for _, j := range selectForRemoval(list, agent, jobIDs) {
		if j.Owner != agent && agent != SuperUser {
			logger.Warn("Spool: %s may not remove job %d of %s on queue %s", agent, j.Number, j.Owner, queueName)
			continue
		}
		if err := s.removeJob(ctx, j, agent); err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// selectForRemoval picks the jobs an lprm request names: every job of agent
// (all jobs for the super user) when no ids are given, otherwise jobs whose
// number or owner matches one of ids.
func selectForRemoval(list []*jobs.Job, agent string, ids []string) []*jobs.Job {
	var out []*jobs.Job
	for _, j := range list {
		if len(ids) == 0 {
			if agent == SuperUser || j.Owner == agent {
				out = append(out, j)
			}
			continue
		}
		if matchesAny(j, ids) {
			out = append(out, j)
		}
	}
	return out
}

// matchesAny reports whether one of ids is the job's number or owner.
func matchesAny(j *jobs.Job, ids []string) bool {
	for _, id := range ids {
		if n, err := strconv.Atoi(id); err == nil && n == j.Number {
			return true
		}
		if id == j.Owner {
			return true
		}
	}
	return false
}

func (h *session) SendQueueStateShort(ctx context.Context, queueName string, jobIDs []string) (string, error) {
	return h.spool.queueState(ctx, queueName, jobIDs, false)
}

func (h *session) SendQueueStateLong(ctx context.Context, queueName string, jobIDs []string) (string, error) {
	return h.spool.queueState(ctx, queueName, jobIDs, true)
}

// ignoreShortStream turns a truncated payload into a plain refusal; the
// protocol engine reports the short read itself.
func ignoreShortStream(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil
	}
	return err
}
