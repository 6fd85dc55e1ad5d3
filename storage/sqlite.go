// Package storage keeps the history of planning runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"trip_itinerary_planner/generator"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusApproved  = "approved"
	StatusExhausted = "exhausted"
	StatusFailed    = "failed"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Run is one row of the history.
type Run struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Destination string     `json:"destination"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Status      string     `json:"status"`
	Score       float64    `json:"score"`
	Iterations  int        `json:"iterations"`
	ErrorClass  string     `json:"error_class,omitempty"`
	Report      string     `json:"report,omitempty"`
}

type Storage struct {
	db  *sql.DB
	now func() time.Time
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		completed_at TEXT,
		destination TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		score REAL NOT NULL DEFAULT 0,
		iterations INTEGER NOT NULL DEFAULT 0,
		error_class TEXT,
		report TEXT,
		request TEXT NOT NULL,
		outcome TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// CreateRun records a run as started.
func (s *Storage) CreateRun(ctx context.Context, id string, req generator.TripRequest) error {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, destination, start_date, end_date, status, request)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, formatTime(s.now()), req.Destination,
		req.StartDate.Format(time.DateOnly), req.EndDate.Format(time.DateOnly),
		StatusRunning, string(reqJSON),
	)
	return err
}

// CompleteRun stores the outcome of a successful run.
func (s *Storage) CompleteRun(ctx context.Context, out generator.Outcome) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	status := StatusExhausted
	if out.Approved {
		status = StatusApproved
	}
	return s.update(ctx,
		`UPDATE runs SET completed_at = ?, status = ?, score = ?, iterations = ?, outcome = ? WHERE id = ?`,
		formatTime(s.now()), status, out.Review.Score, out.Iterations, string(data), out.RunID,
	)
}

// FailRun stores the failure report of an aborted run.
func (s *Storage) FailRun(ctx context.Context, id string, runErr error) error {
	return s.update(ctx,
		`UPDATE runs SET completed_at = ?, status = ?, error_class = ?, report = ? WHERE id = ?`,
		formatTime(s.now()), StatusFailed, generator.ErrorClass(runErr), generator.Report(runErr), id,
	)
}

func (s *Storage) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id, created_at, completed_at, destination, start_date, end_date, status, score, iterations, error_class, report`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		createdAt   string
		completedAt sql.NullString
		errorClass  sql.NullString
		report      sql.NullString
	)
	err := row.Scan(&run.ID, &createdAt, &completedAt, &run.Destination, &run.StartDate, &run.EndDate,
		&run.Status, &run.Score, &run.Iterations, &errorClass, &report)
	if err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("run %s: created_at: %w", run.ID, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: completed_at: %w", run.ID, err)
		}
		run.CompletedAt = &t
	}
	run.ErrorClass = errorClass.String
	run.Report = report.String
	return &run, nil
}

func (s *Storage) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns returns the newest runs first.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Outcome loads the stored outcome of a finished run.
func (s *Storage) Outcome(ctx context.Context, id string) (*generator.Outcome, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT outcome FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !data.Valid {
		return nil, fmt.Errorf("run %s has no outcome", id)
	}
	var out generator.Outcome
	if err := json.Unmarshal([]byte(data.String), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
