// Package ledger keeps a local SQLite history of copy runs and of what
// happened to every source record.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/stripemirror"
	"github.com/hyperengineering/stripemirror/internal/copier"
	"github.com/hyperengineering/stripemirror/internal/ledger/migrations"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var (
	// ErrClosed is returned by operations on a closed ledger.
	ErrClosed = errors.New("ledger: closed")

	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("ledger: run not found")
)

// Status is the final state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Run is one invocation of the copy command.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	DryRun       bool
	Kinds        []stripemirror.Kind
	Summary      stripemirror.Counters
	Status       Status
	SnapshotPath string
}

// Entry is the outcome of one source record within a run.
type Entry struct {
	RunID      string
	Kind       stripemirror.Kind
	ProdID     string
	TestID     string
	Outcome    copier.Outcome
	Error      string
	RecordedAt time.Time
}

// Ledger is the run history database.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
	path   string
	now    func() time.Time
}

// Open opens or creates the ledger at path and applies pending migrations.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: enable WAL mode: %w", err)
	}

	l := &Ledger{db: db, path: path, now: time.Now}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("ledger: set goose dialect: %w", err)
	}
	if err := goose.Up(l.db, "."); err != nil {
		return fmt.Errorf("ledger: run migrations: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Close closes the database. It is safe to call more than once.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

// BeginRun records the start of a run and returns its id.
func (l *Ledger) BeginRun(ctx context.Context, kinds []stripemirror.Kind, dryRun bool) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return "", ErrClosed
	}

	id := ulid.Make().String()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, dry_run, kinds, status)
		VALUES (?, ?, ?, ?, ?)
	`, id, l.now().UTC().Format(time.RFC3339Nano), boolToInt(dryRun), strings.Join(names, ","), string(StatusRunning))
	if err != nil {
		return "", fmt.Errorf("ledger: begin run: %w", err)
	}
	return id, nil
}

// Record stores the outcome of one source record.
func (l *Ledger) Record(ctx context.Context, runID string, e copier.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	var errText *string
	if e.Err != nil {
		s := e.Err.Error()
		errText = &s
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO entries (run_id, kind, prod_id, test_id, outcome, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, e.Kind.String(), e.ProdID, nullString(e.TestID), string(e.Action), errText, l.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ledger: record entry: %w", err)
	}
	return nil
}

// FinishRun stores the final status, totals and snapshot path of a run.
func (l *Ledger) FinishRun(ctx context.Context, runID string, status Status, summary stripemirror.Counters, snapshotPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, created = ?, updated = ?, errors = ?, snapshot_path = ?
		WHERE id = ?
	`, l.now().UTC().Format(time.RFC3339Nano), string(status), summary.Created, summary.Updated, summary.Errors, nullString(snapshotPath), runID)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// Runs returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	query := `
		SELECT id, started_at, finished_at, dry_run, kinds, created, updated, errors, status, snapshot_path
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns a single run.
func (l *Ledger) Run(ctx context.Context, id string) (Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Run{}, ErrClosed
	}

	row := l.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, kinds, created, updated, errors, status, snapshot_path
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return r, err
}

// Entries returns the entries of a run in the order they were recorded.
// With failedOnly set, only failed records are returned.
func (l *Ledger) Entries(ctx context.Context, runID string, failedOnly bool) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	query := `
		SELECT run_id, kind, prod_id, test_id, outcome, error, recorded_at
		FROM entries WHERE run_id = ?
	`
	args := []any{runID}
	if failedOnly {
		query += " AND outcome = ?"
		args = append(args, string(copier.OutcomeFailed))
	}
	query += " ORDER BY id"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			kind, outcome, at string
			testID, errText   sql.NullString
		)
		if err := rows.Scan(&e.RunID, &kind, &e.ProdID, &testID, &outcome, &errText, &at); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		e.Kind = stripemirror.Kind(kind)
		e.Outcome = copier.Outcome(outcome)
		e.TestID = testID.String
		e.Error = errText.String
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Observer returns a copier.Observer that records every event under runID.
// Recording failures are logged and never interrupt the copy.
func (l *Ledger) Observer(ctx context.Context, runID string, log logrus.FieldLogger) copier.Observer {
	return copier.ObserverFunc(func(e copier.Event) {
		if err := l.Record(ctx, runID, e); err != nil && log != nil {
			log.WithError(err).WithField("run_id", runID).Warn("ledger entry not recorded")
		}
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r              Run
		started, kinds string
		status         string
		finished, snap sql.NullString
		dryRun         int
	)
	err := s.Scan(&r.ID, &started, &finished, &dryRun, &kinds,
		&r.Summary.Created, &r.Summary.Updated, &r.Summary.Errors, &status, &snap)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("ledger: scan run: %w", err)
	}

	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
			r.FinishedAt = &t
		}
	}
	r.DryRun = dryRun != 0
	r.Status = Status(status)
	r.SnapshotPath = snap.String
	if kinds != "" {
		for _, k := range strings.Split(kinds, ",") {
			r.Kinds = append(r.Kinds, stripemirror.Kind(k))
		}
	}
	return r, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
