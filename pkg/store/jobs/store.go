// Package jobs defines the persistent record of spooled print jobs.
//
// A Job references its files by content key; the bytes themselves live in a
// content.Store. Implementations of Store only keep the records.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrJobNotFound is returned when no job has the requested ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJob is returned by Put for records missing an ID or queue.
	ErrInvalidJob = errors.New("invalid job")
)

// Status is the lifecycle state of a spooled job.
type Status string

const (
	// StatusQueued is a complete job waiting in its queue.
	StatusQueued Status = "queued"

	// StatusHeld is a complete job kept in a locked queue.
	StatusHeld Status = "held"
)

// File references one stored job file.
type File struct {
	// Name is the file name sent by the client (cfA001host, dfA001host)
	Name string `msgpack:"name" json:"name"`

	// Key is the content store key holding the bytes
	Key string `msgpack:"key" json:"key"`

	// Size in bytes
	Size int64 `msgpack:"size" json:"size"`

	// Format is the print format letter from the control file ('l', 'f', ...),
	// zero when the control file never mentions the file.
	Format byte `msgpack:"format" json:"format,omitempty"`
}

// Job is a fully received print job.
type Job struct {
	ID      string `msgpack:"id" json:"id"`
	Number  int    `msgpack:"number" json:"number"`
	Queue   string `msgpack:"queue" json:"queue"`
	Owner   string `msgpack:"owner" json:"owner"`
	Host    string `msgpack:"host" json:"host"`
	JobName string `msgpack:"job_name" json:"job_name,omitempty"`
	Title   string `msgpack:"title" json:"title,omitempty"`
	Class   string `msgpack:"class" json:"class,omitempty"`

	// Peer is the remote address the job was received from
	Peer string `msgpack:"peer" json:"peer,omitempty"`

	ControlFile File   `msgpack:"control_file" json:"control_file"`
	DataFiles   []File `msgpack:"data_files" json:"data_files"`

	Status    Status    `msgpack:"status" json:"status"`
	CreatedAt time.Time `msgpack:"created_at" json:"created_at"`
	UpdatedAt time.Time `msgpack:"updated_at" json:"updated_at"`
}

// Size returns the total number of data bytes.
func (j *Job) Size() int64 {
	var n int64
	for _, f := range j.DataFiles {
		n += f.Size
	}
	return n
}

// Files returns the control file followed by the data files.
func (j *Job) Files() []File {
	files := make([]File, 0, len(j.DataFiles)+1)
	if j.ControlFile.Key != "" {
		files = append(files, j.ControlFile)
	}
	return append(files, j.DataFiles...)
}

// File looks up a stored file by name.
func (j *Job) File(name string) (File, bool) {
	for _, f := range j.Files() {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	c := *j
	c.DataFiles = slices.Clone(j.DataFiles)
	return &c
}

// Validate checks the fields every store relies on.
func (j *Job) Validate() error {
	if j == nil {
		return fmt.Errorf("%w: nil job", ErrInvalidJob)
	}
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidJob)
	}
	if strings.TrimSpace(j.Queue) == "" {
		return fmt.Errorf("%w: job %s has no queue", ErrInvalidJob, j.ID)
	}
	return nil
}

// Store persists job records.
//
// Implementations must be safe for concurrent use and must not retain the
// *Job passed to Put or share returned values between callers.
type Store interface {
	// Put creates or replaces the job with j.ID.
	Put(ctx context.Context, j *Job) error

	// Get returns ErrJobNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*Job, error)

	// Delete returns ErrJobNotFound for unknown IDs.
	Delete(ctx context.Context, id string) error

	// List returns the jobs of queue, or of every queue when queue is empty,
	// ordered by CreatedAt then Number.
	List(ctx context.Context, queue string) ([]*Job, error)

	Close() error
}

// SortJobs orders jobs the way List must return them.
func SortJobs(list []*Job) {
	slices.SortStableFunc(list, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.Number != b.Number {
			return a.Number - b.Number
		}
		return strings.Compare(a.ID, b.ID)
	})
}
