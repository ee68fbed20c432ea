package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one schema step, applied once in Version order.
type Migration struct {
	Version string
	SQL     string
}

var migrations = []Migration{
	{
		Version: "0001_create_jobs",
		SQL: `
			CREATE TABLE jobs (
				id           TEXT PRIMARY KEY,
				number       INTEGER NOT NULL,
				queue        TEXT NOT NULL,
				owner        TEXT NOT NULL DEFAULT '',
				host         TEXT NOT NULL DEFAULT '',
				job_name     TEXT NOT NULL DEFAULT '',
				title        TEXT NOT NULL DEFAULT '',
				class        TEXT NOT NULL DEFAULT '',
				control_name TEXT NOT NULL DEFAULT '',
				control_key  TEXT NOT NULL DEFAULT '',
				control_size INTEGER NOT NULL DEFAULT 0,
				data_files   BLOB,
				status       TEXT NOT NULL,
				created_at   INTEGER NOT NULL,
				updated_at   INTEGER NOT NULL
			);
			CREATE INDEX idx_jobs_queue_created ON jobs (queue, created_at, number);
		`,
	},
	{
		Version: "0002_add_peer",
		SQL:     `ALTER TABLE jobs ADD COLUMN peer TEXT NOT NULL DEFAULT '';`,
	},
}

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	pending := make([]Migration, len(migrations))
	copy(pending, migrations)
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	for _, m := range pending {
		if applied[m.Version] {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}
	}

	return nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
