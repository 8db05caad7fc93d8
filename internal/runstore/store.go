// Package runstore persists workflow runs, their step history, and schedules
// in Postgres, with an optional Redis cache in front of finished reports.
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Store wraps the Postgres connection for run history.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens a Postgres connection and verifies it.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{
		db:     db,
		logger: log.New(log.Writer(), "[RUNSTORE] ", log.LstdFlags),
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Run is one workflow execution.
type Run struct {
	ID         string     `json:"id"`
	Topic      string     `json:"topic"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Steps      int        `json:"steps"`
	Report     string     `json:"report,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunStep is one executed step in a run.
type RunStep struct {
	RunID     string    `json:"run_id"`
	StepIndex int       `json:"step_index"`
	Step      string    `json:"step"`
	Agent     string    `json:"agent"`
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"created_at"`
}

// Schedule triggers recurring research runs for a topic.
type Schedule struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Cron      string    `json:"cron"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

func (s *Store) CreateRun(ctx context.Context, id, topic string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, topic, status, started_at) VALUES ($1, $2, $3, now())`,
		id, topic, StatusRunning)
	return err
}

func (s *Store) FinishRun(ctx context.Context, id, status string, steps int, report string, errMsg *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = $2, steps = $3, report = $4, error = COALESCE($5, ''), finished_at = now() WHERE id = $1`,
		id, status, steps, report, errMsg)
	return err
}

func (s *Store) RecordStep(ctx context.Context, step RunStep) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_steps (run_id, step_index, step, agent, output, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		step.RunID, step.StepIndex, step.Step, step.Agent, step.Output)
	return err
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, topic, status, started_at, finished_at, steps, report, error FROM runs WHERE id = $1`,
		id).Scan(&r.ID, &r.Topic, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Steps, &r.Report, &r.Error)
	return r, err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, status, started_at, finished_at, steps, report, error
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Topic, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Steps, &r.Report, &r.Error); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) ListRunSteps(ctx context.Context, runID string) ([]RunStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step_index, step, agent, output, created_at
		 FROM run_steps WHERE run_id = $1 ORDER BY step_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []RunStep
	for rows.Next() {
		var st RunStep
		if err := rows.Scan(&st.RunID, &st.StepIndex, &st.Step, &st.Agent, &st.Output, &st.CreatedAt); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// LatestRunTime returns the start time of the most recent run for a topic,
// or nil when the topic never ran.
func (s *Store) LatestRunTime(ctx context.Context, topic string) (*time.Time, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM runs WHERE topic = $1 ORDER BY started_at DESC LIMIT 1`,
		topic).Scan(&ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func (s *Store) CreateSchedule(ctx context.Context, topic, cron string) (Schedule, error) {
	sched := Schedule{ID: uuid.NewString(), Topic: topic, Cron: cron}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO schedules (id, topic, cron, created_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (topic) DO UPDATE SET cron = EXCLUDED.cron
		 RETURNING id, created_at`,
		sched.ID, topic, cron).Scan(&sched.ID, &sched.CreatedAt)
	return sched, err
}

func (s *Store) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, cron, created_at FROM schedules ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scheds []Schedule
	for rows.Next() {
		var sc Schedule
		if err := rows.Scan(&sc.ID, &sc.Topic, &sc.Cron, &sc.CreatedAt); err != nil {
			return nil, err
		}
		scheds = append(scheds, sc)
	}
	return scheds, rows.Err()
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, now())`,
		uuid.NewString(), email, passwordHash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id, passwordHash string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &passwordHash)
	return id, passwordHash, err
}
