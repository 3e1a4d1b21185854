// Package ledger records pipeline runs and their state transitions in a
// local SQLite database so that past builds can be listed.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ideforge/internal/logging"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded pipeline run.
type Run struct {
	ID         string
	Platform   string
	Version    string
	State      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
}

// Transition is a single state change of a run.
type Transition struct {
	RunID string
	State string
	At    time.Time
}

// Ledger is the run history store.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	l := &Ledger{db: db, dbPath: path}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Ledger("run ledger ready at %s", path)
	return l, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		version TEXT,
		state TEXT NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);
	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		state TEXT NOT NULL,
		at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_transitions_run ON transitions(run_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Begin records a new run in its initial state.
func (l *Ledger) Begin(ctx context.Context, id, platform, version, state string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stamp := at.UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, platform, version, state, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, platform, version, state, stamp); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transitions (run_id, state, at) VALUES (?, ?, ?)`, id, state, stamp); err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return tx.Commit()
}

// Transition moves run id into state.
func (l *Ledger) Transition(ctx context.Context, id, state string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transition(ctx, id, state, "", at, false)
}

// Finish records the terminal state of run id. errMsg is empty on success.
func (l *Ledger) Finish(ctx context.Context, id, state, errMsg string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transition(ctx, id, state, errMsg, at, true)
}

func (l *Ledger) transition(ctx context.Context, id, state, errMsg string, at time.Time, final bool) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stamp := at.UTC().Format(timeLayout)
	var res sql.Result
	if final {
		res, err = tx.ExecContext(ctx,
			`UPDATE runs SET state = ?, error = ?, finished_at = ? WHERE id = ?`, state, errMsg, stamp, id)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE runs SET state = ? WHERE id = ?`, state, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown run %s", id)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transitions (run_id, state, at) VALUES (?, ?, ?)`, id, state, stamp); err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return tx.Commit()
}

// Recent returns up to n runs, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, platform, COALESCE(version, ''), state, COALESCE(error, ''), started_at, COALESCE(finished_at, '')
		FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Platform, &r.Version, &r.State, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		if finished != "" {
			r.FinishedAt = parseTime(finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Transitions returns the recorded transitions of run id in order.
func (l *Ledger) Transitions(ctx context.Context, id string) ([]Transition, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, state, at FROM transitions WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var at string
		if err := rows.Scan(&t.RunID, &t.State, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.At = parseTime(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Path returns the database location.
func (l *Ledger) Path() string { return l.dbPath }

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// parseTime reads a stored timestamp. Rows written before the fixed-width
// layout use RFC 3339 with trimmed fractions.
func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
