// Package sqlite implements a persistent job store on SQLite.
//
// Scalar job fields are columns so queues can be listed with an index; the
// data file list is a msgpack blob.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

const selectColumns = `id, number, queue, owner, host, job_name, title, class, peer,
	control_name, control_key, control_size, data_files, status, created_at, updated_at`

// SQLiteJobStore implements jobs.Store on a single SQLite file.
//
// The connection pool is limited to one connection, which serializes
// writers the way SQLite wants them.
type SQLiteJobStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteJobStore opens the database at path and applies pending
// migrations. ":memory:" is accepted for tests.
func NewSQLiteJobStore(ctx context.Context, path string) (*SQLiteJobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New("sqlite job store: path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteJobStore{db: db, path: path}, nil
}

func (s *SQLiteJobStore) Put(ctx context.Context, j *jobs.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}

	dataFiles, err := msgpack.Marshal(j.DataFiles)
	if err != nil {
		return fmt.Errorf("failed to encode data files of job %s: %w", j.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			queue = excluded.queue,
			owner = excluded.owner,
			host = excluded.host,
			job_name = excluded.job_name,
			title = excluded.title,
			class = excluded.class,
			peer = excluded.peer,
			control_name = excluded.control_name,
			control_key = excluded.control_key,
			control_size = excluded.control_size,
			data_files = excluded.data_files,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		j.ID, j.Number, j.Queue, j.Owner, j.Host, j.JobName, j.Title, j.Class, j.Peer,
		j.ControlFile.Name, j.ControlFile.Key, j.ControlFile.Size, dataFiles,
		string(j.Status), j.CreatedAt.UnixNano(), j.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store job %s: %w", j.ID, err)
	}
	return nil
}

func (s *SQLiteJobStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, jobs.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return j, nil
}

func (s *SQLiteJobStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, jobs.ErrJobNotFound)
	}
	return nil
}

func (s *SQLiteJobStore) List(ctx context.Context, queue string) ([]*jobs.Job, error) {
	query := `SELECT ` + selectColumns + ` FROM jobs`
	var args []any
	if queue != "" {
		query += ` WHERE queue = ?`
		args = append(args, queue)
	}
	query += ` ORDER BY created_at, number, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []*jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		list = append(list, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return list, nil
}

// Path returns the database file path.
func (s *SQLiteJobStore) Path() string {
	return s.path
}

func (s *SQLiteJobStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*jobs.Job, error) {
	var (
		j         jobs.Job
		dataFiles []byte
		status    string
		created   int64
		updated   int64
	)
	err := row.Scan(
		&j.ID, &j.Number, &j.Queue, &j.Owner, &j.Host, &j.JobName, &j.Title, &j.Class, &j.Peer,
		&j.ControlFile.Name, &j.ControlFile.Key, &j.ControlFile.Size, &dataFiles,
		&status, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	if len(dataFiles) > 0 {
		if err := msgpack.Unmarshal(dataFiles, &j.DataFiles); err != nil {
			return nil, fmt.Errorf("failed to decode data files of job %s: %w", j.ID, err)
		}
	}
	j.Status = jobs.Status(status)
	j.CreatedAt = time.Unix(0, created)
	j.UpdatedAt = time.Unix(0, updated)
	return &j, nil
}
