// Package journal keeps a local sqlite record of pipeline runs so failed
// runs can be inspected after the fact. It never stores provider data.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/pipeline"
)

const DefaultListLimit = 20

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal sqlite: %w", err)
	}
	// One connection serializes in-process writers; flock covers other processes.
	db.SetMaxOpenConns(1)

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			executor TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_runs_status_updated ON runs(status, updated_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init journal schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(run pipeline.Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("save run: missing run id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock journal: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	createdUnix := parseUnixNano(run.CreatedAt)
	updatedUnix := parseUnixNano(run.UpdatedAt)

	_, err = s.db.Exec(`
		INSERT INTO runs (run_id, status, executor, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status=excluded.status,
			executor=excluded.executor,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, run.ID, string(run.Status), run.Executor, createdUnix, updatedUnix, payload)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) Get(runID string) (pipeline.Run, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM runs WHERE run_id = ?", strings.TrimSpace(runID)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pipeline.Run{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("run not found: %s", runID))
		}
		return pipeline.Run{}, clierr.Wrap(clierr.CodeInternal, "read run", err)
	}
	var run pipeline.Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return pipeline.Run{}, clierr.Wrap(clierr.CodeInternal, "decode run payload", err)
	}
	return run, nil
}

// List returns the most recently updated runs, optionally filtered by status.
func (s *Store) List(status string, limit int) ([]pipeline.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(status) == "" {
		rows, err = s.db.Query("SELECT payload FROM runs ORDER BY updated_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM runs WHERE status = ? ORDER BY updated_at DESC LIMIT ?", status, limit)
	}
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "list runs", err)
	}
	defer rows.Close()

	runs := make([]pipeline.Run, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "scan run row", err)
		}
		var run pipeline.Run
		if err := json.Unmarshal(payload, &run); err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "decode run row", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "iterate run rows", err)
	}
	return runs, nil
}

// Prune deletes runs last updated before cutoff and reports how many went.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res, err := s.db.Exec("DELETE FROM runs WHERE updated_at < ?", cutoff.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func parseUnixNano(v string) int64 {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Now().UTC().UnixNano()
	}
	return t.UTC().UnixNano()
}
