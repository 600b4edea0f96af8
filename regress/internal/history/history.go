// Package history records regress runs in SQLite: one row per run and one
// per compared cell.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/regress/dbopen"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("history: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	state       TEXT NOT NULL,
	dest        TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	cells       INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	average     REAL,
	error       TEXT NOT NULL DEFAULT '',
	error_kind  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS cells (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	scenario TEXT NOT NULL,
	viewport TEXT NOT NULL,
	file     TEXT NOT NULL,
	mismatch REAL NOT NULL,
	failed   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, position)
);
`

// Run is one recorded pipeline run.
type Run struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`  // generate | compare
	State      string    `json:"state"` // final pipeline state
	Dest       string    `json:"dest"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CellCount  int       `json:"cells"`
	Failed     int       `json:"failed"`
	Average    *float64  `json:"average,omitempty"` // nil when undefined
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Cells      []Cell    `json:"cell_results,omitempty"`
}

// Cell is one compared cell of a run.
type Cell struct {
	Scenario string  `json:"scenario"`
	Viewport string  `json:"viewport"`
	File     string  `json:"file"`
	Mismatch float64 `json:"mismatch"`
	Failed   bool    `json:"failed"`
}

// Store persists runs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open database and applies the schema.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a run and its cells in one transaction.
func (s *Store) Record(ctx context.Context, r *Run) error {
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var avg sql.NullFloat64
		if r.Average != nil {
			avg = sql.NullFloat64{Float64: *r.Average, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, mode, state, dest, started_at, finished_at, cells, failed, average, error, error_kind)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Mode, r.State, r.Dest,
			r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
			r.CellCount, r.Failed, avg, r.Error, r.ErrorKind)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cells (run_id, position, scenario, viewport, file, mismatch, failed)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare cells: %w", err)
		}
		defer stmt.Close()

		for i, c := range r.Cells {
			if _, err := stmt.ExecContext(ctx, r.ID, i, c.Scenario, c.Viewport, c.File, c.Mismatch, c.Failed); err != nil {
				return fmt.Errorf("insert cell %s: %w", c.File, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history: record %s: %w", r.ID, err)
	}
	return nil
}

// List returns the most recent runs first, without their cells.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, state, dest, started_at, finished_at, cells, failed, average, error, error_kind
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: list: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Get returns one run with its cells in recording order.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, state, dest, started_at, finished_at, cells, failed, average, error, error_kind
		FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, viewport, file, mismatch, failed
		FROM cells WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("history: get %s cells: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.Scenario, &c.Viewport, &c.File, &c.Mismatch, &c.Failed); err != nil {
			return nil, fmt.Errorf("history: get %s cells: %w", id, err)
		}
		r.Cells = append(r.Cells, c)
	}
	return r, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                 Run
		started, finished int64
		avg               sql.NullFloat64
	)
	if err := sc.Scan(&r.ID, &r.Mode, &r.State, &r.Dest, &started, &finished,
		&r.CellCount, &r.Failed, &avg, &r.Error, &r.ErrorKind); err != nil {
		return nil, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	r.FinishedAt = time.UnixMilli(finished).UTC()
	if avg.Valid {
		v := avg.Float64
		r.Average = &v
	}
	return &r, nil
}
