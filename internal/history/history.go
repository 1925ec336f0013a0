// Package history keeps a ledger of extraction runs in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// StatusOK marks a run that produced a table.
const StatusOK = "OK"

// Run is one recorded extraction.
type Run struct {
	ID         string
	Source     string
	URL        string
	Status     string
	Error      string
	Rows       int
	Columns    int
	OutputPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store writes and lists runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path and applies the schema.
// ":memory:" gives a private in-memory ledger.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// One writer keeps the in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished run.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, url, status, error, row_count, column_count, output_path, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			row_count = excluded.row_count,
			column_count = excluded.column_count,
			output_path = excluded.output_path,
			finished_at = excluded.finished_at`,
		r.ID, r.Source, r.URL, r.Status, r.Error, r.Rows, r.Columns, r.OutputPath,
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, source, url, status, error, row_count, column_count, output_path, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Source, &r.URL, &r.Status, &r.Error, &r.Rows, &r.Columns, &r.OutputPath, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
