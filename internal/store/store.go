package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

// Store is the SQLite-backed launch history.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

type Run struct {
	ID         string
	CreatedAt  time.Time
	FinishedAt *time.Time
	NRobots    int
	RobotsFile string
	Status     api.RunStatus
	Plan       string
}

type Process struct {
	ID         int64
	RunID      string
	Label      string
	Pid        int
	ExitCode   *int
	StartedAt  time.Time
	FinishedAt *time.Time
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) CreateRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, n_robots, robots_file, status, plan) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UTC(), r.NRobots, r.RobotsFile, string(r.Status), r.Plan,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, id string, status api.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, finished_at, n_robots, robots_file, status, plan FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, finished_at, n_robots, robots_file, status, plan
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var finished sql.NullTime
	var status string
	if err := row.Scan(&r.ID, &r.CreatedAt, &finished, &r.NRobots, &r.RobotsFile, &status, &r.Plan); err != nil {
		return nil, err
	}
	r.Status = api.RunStatus(status)
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// RecordProcess stores a started process and returns its row id.
func (s *Store) RecordProcess(ctx context.Context, runID, label string, pid int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processes (run_id, label, pid, started_at) VALUES (?, ?, ?, ?)`,
		runID, label, pid, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("record process: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) FinishProcess(ctx context.Context, id int64, exitCode int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE processes SET exit_code = ?, finished_at = ? WHERE id = ?`,
		exitCode, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finish process: %w", err)
	}
	return nil
}

func (s *Store) Processes(ctx context.Context, runID string) ([]Process, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, label, pid, exit_code, started_at, finished_at
		 FROM processes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()
	var out []Process
	for rows.Next() {
		var p Process
		var exit sql.NullInt64
		var finished sql.NullTime
		if err := rows.Scan(&p.ID, &p.RunID, &p.Label, &p.Pid, &exit, &p.StartedAt, &finished); err != nil {
			return nil, err
		}
		if exit.Valid {
			code := int(exit.Int64)
			p.ExitCode = &code
		}
		if finished.Valid {
			p.FinishedAt = &finished.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// lockTimeout is how long LockDataDir waits for another supervisor.
const lockTimeout = 2 * time.Second

// LockDataDir takes an exclusive lock so only one supervisor runs per data dir.
// The caller must Unlock the returned lock.
func LockDataDir(ctx context.Context, dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, "run.lock"))
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another run holds %s", lock.Path())
	}
	return lock, nil
}
