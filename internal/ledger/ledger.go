// Package ledger records export jobs in postgres so jobs orphaned by an aborted run can be found later.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/forest-guardian/degradation-indicator/internal/backend"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var ErrUnknownJob = errors.New("unknown export job")

const schema = `
	CREATE TABLE IF NOT EXISTS export_jobs (
		job_id       TEXT PRIMARY KEY,
		run_id       TEXT NOT NULL,
		description  TEXT NOT NULL,
		state        TEXT NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

type Record struct {
	JobID       string    `db:"job_id"`
	RunID       string    `db:"run_id"`
	Description string    `db:"description"`
	State       string    `db:"state"`
	Error       string    `db:"error"`
	SubmittedAt time.Time `db:"submitted_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type Ledger struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Open connects to postgres and creates the export_jobs table when missing.
func Open(ctx context.Context, databaseURL string) (*Ledger, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}
	l := New(db)
	if err := l.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create export_jobs: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Submitted(ctx context.Context, runID string, handle backend.JobHandle) error {
	const query = `
		INSERT INTO export_jobs (job_id, run_id, description, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE SET run_id = $2, state = $4, updated_at = NOW()`
	if _, err := l.db.ExecContext(ctx, query, handle.ID, runID, handle.Description, string(backend.Submitted)); err != nil {
		return fmt.Errorf("failed to record job %s: %w", handle.Description, err)
	}
	return nil
}

func (l *Ledger) StateChanged(ctx context.Context, status backend.JobStatus) error {
	const query = `UPDATE export_jobs SET state = $2, error = $3, updated_at = NOW() WHERE job_id = $1`
	if _, err := l.db.ExecContext(ctx, query, status.ID, string(status.State), status.Error); err != nil {
		return fmt.Errorf("failed to update job %s: %w", status.Description, err)
	}
	return nil
}

// Pending lists the jobs that never reached a terminal state, oldest first.
func (l *Ledger) Pending(ctx context.Context) ([]Record, error) {
	const query = `
		SELECT job_id, run_id, description, state, error, submitted_at, updated_at
		FROM export_jobs
		WHERE state NOT IN ($1, $2)
		ORDER BY submitted_at`
	var records []Record
	if err := l.db.SelectContext(ctx, &records, query, string(backend.Completed), string(backend.Failed)); err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	return records, nil
}

// Get returns the record of one job, or ErrUnknownJob when it was never submitted.
func (l *Ledger) Get(ctx context.Context, jobID string) (Record, error) {
	var r Record
	err := l.db.GetContext(ctx, &r, `SELECT job_id, run_id, description, state, error, submitted_at, updated_at
		FROM export_jobs WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return r, nil
}
