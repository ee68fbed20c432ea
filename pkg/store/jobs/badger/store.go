// Package badger implements a persistent job store on BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// BadgerJobStore implements jobs.Store using BadgerDB.
//
// Every job is one msgpack record plus one queue index entry (see keys.go),
// both written in the same transaction.
//
// Thread Safety:
// BadgerDB transactions are serializable; the store holds no other state.
type BadgerJobStore struct {
	db *badger.DB
}

// BadgerJobStoreConfig contains configuration for creating a BadgerDB job store.
type BadgerJobStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string

	// InMemory keeps the database in RAM (tests)
	InMemory bool

	// BadgerOptions allows customization of BadgerDB behavior
	// If nil, sensible defaults are used
	BadgerOptions *badger.Options
}

// NewBadgerJobStore opens (or creates) the database.
func NewBadgerJobStore(ctx context.Context, config BadgerJobStoreConfig) (*BadgerJobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	switch {
	case config.BadgerOptions != nil:
		opts = *config.BadgerOptions
	case config.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	default:
		if config.DBPath == "" {
			return nil, errors.New("badger job store: db_path is required")
		}
		opts = badger.DefaultOptions(config.DBPath)
	}

	// Job records are small; compression overhead is not worth it
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerJobStore{db: db}, nil
}

func (s *BadgerJobStore) Put(ctx context.Context, j *jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.Validate(); err != nil {
		return err
	}

	data, err := encodeJob(j)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		// Moving a job between queues drops the old index entry.
		old, err := getJob(txn, j.ID)
		if err == nil && old.Queue != j.Queue {
			if err := txn.Delete(keyQueueEntry(old.Queue, j.ID)); err != nil {
				return fmt.Errorf("failed to delete queue index: %w", err)
			}
		} else if err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
			return err
		}

		if err := txn.Set(keyJob(j.ID), data); err != nil {
			return fmt.Errorf("failed to store job: %w", err)
		}
		if err := txn.Set(keyQueueEntry(j.Queue, j.ID), nil); err != nil {
			return fmt.Errorf("failed to store queue index: %w", err)
		}
		return nil
	})
}

func (s *BadgerJobStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var j *jobs.Job
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		j, err = getJob(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *BadgerJobStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		j, err := getJob(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(keyJob(id)); err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		if err := txn.Delete(keyQueueEntry(j.Queue, id)); err != nil {
			return fmt.Errorf("failed to delete queue index: %w", err)
		}
		return nil
	})
}

// List scans the queue index, or every job record when queue is empty.
func (s *BadgerJobStore) List(ctx context.Context, queue string) ([]*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var list []*jobs.Job
	err := s.db.View(func(txn *badger.Txn) error {
		if queue == "" {
			return scanJobs(ctx, txn, func(j *jobs.Job) {
				list = append(list, j)
			})
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := keyQueuePrefix(queue)
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			j, err := getJob(txn, idFromQueueEntry(it.Item().Key(), queue))
			if err != nil {
				return err
			}
			list = append(list, j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	jobs.SortJobs(list)
	return list, nil
}

// Close closes the BadgerDB database and releases all resources.
func (s *BadgerJobStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func getJob(txn *badger.Txn, id string) (*jobs.Job, error) {
	item, err := txn.Get(keyJob(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", id, jobs.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var j *jobs.Job
	err = item.Value(func(val []byte) error {
		j, err = decodeJob(val)
		return err
	})
	return j, err
}

func scanJobs(ctx context.Context, txn *badger.Txn, fn func(*jobs.Job)) error {
	opts := badger.DefaultIteratorOptions
	prefix := []byte(prefixJob)
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var j *jobs.Job
		err := it.Item().Value(func(val []byte) error {
			var err error
			j, err = decodeJob(val)
			return err
		})
		if err != nil {
			return err
		}
		fn(j)
	}
	return nil
}
