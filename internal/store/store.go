package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusGaveUp    = "gave_up"
	RunStatusFailed    = "failed"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Run is one execution of the agent, scheduled or interactive.
type Run struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	SessionID  string     `json:"session_id"`
	Status     string     `json:"status"`
	Prompt     string     `json:"prompt"`
	Reply      string     `json:"reply,omitempty"`
	Steps      int        `json:"steps"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunLog records run lifecycle. The worker depends on this rather than on *Store.
type RunLog interface {
	CreateRun(ctx context.Context, trigger, sessionID, prompt string) (string, error)
	FinishRun(ctx context.Context, runID, status, reply string, steps int, errMsg *string) error
}

// NopRunLog is used when Postgres is not configured.
type NopRunLog struct{}

func (NopRunLog) CreateRun(ctx context.Context, trigger, sessionID, prompt string) (string, error) {
	return uuid.NewString(), nil
}

func (NopRunLog) FinishRun(ctx context.Context, runID, status, reply string, steps int, errMsg *string) error {
	return nil
}

func (s *Store) CreateRun(ctx context.Context, trigger, sessionID, prompt string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx, `INSERT INTO runs (id, trigger, session_id, status, prompt) VALUES ($1,$2,$3,$4,$5)`,
		id, trigger, sessionID, RunStatusRunning, prompt)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

func (s *Store) FinishRun(ctx context.Context, runID, status, reply string, steps int, errMsg *string) error {
	if runID == "" {
		return fmt.Errorf("run_id must be provided")
	}
	_, err := s.DB.ExecContext(ctx, `UPDATE runs SET status=$1, reply=$2, steps=$3, error=$4, finished_at=NOW() WHERE id=$5`,
		status, reply, steps, errMsg, runID)
	return err
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, trigger, session_id, status, prompt, reply, steps, error, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Trigger, &r.SessionID, &r.Status, &r.Prompt, &r.Reply, &r.Steps, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRunTime is the last start of a run with the given trigger, nil if none.
func (s *Store) LatestRunTime(ctx context.Context, trigger string) (*time.Time, error) {
	var ts *time.Time
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(started_at) FROM runs WHERE trigger=$1`, trigger).Scan(&ts)
	return ts, err
}
