// Package postgres provides the Postgres-backed run history repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/rosterctl/internal/history"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "export_runs"

// Config controls the Postgres connection pool used for run history.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunStore implements history.Repository on a single table.
type RunStore struct {
	pool  pool
	table string
}

var _ history.Repository = (*RunStore)(nil)

// NewRunStore connects to Postgres and makes sure the history table exists.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("history.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewRunStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(p pool, table string) (*RunStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RunStore{pool: p, table: table}, nil
}

// Close closes the underlying connection pool.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the history table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			job_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			error_message TEXT
		);`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// RecordStart inserts a running row for the job.
func (s *RunStore) RecordStart(ctx context.Context, jobID, sessionID string, startedAt time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (job_id, session_id, started_at, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO NOTHING;`, s.table)
	if _, err := s.pool.Exec(ctx, query, jobID, sessionID, startedAt.UTC(), string(history.RunRunning)); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordFinish marks an unfinished run terminal. Finishing twice keeps the first outcome.
func (s *RunStore) RecordFinish(
	ctx context.Context,
	jobID string,
	finishedAt time.Time,
	status history.RunStatus,
	errMsg *string,
) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET finished_at = $1, status = $2, error_message = $3
		WHERE job_id = $4 AND finished_at IS NULL;`, s.table)
	if _, err := s.pool.Exec(ctx, query, finishedAt.UTC(), string(status), errMsg, jobID); err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// GetRun retrieves a single run by job id.
func (s *RunStore) GetRun(ctx context.Context, jobID string) (history.Run, error) {
	query := fmt.Sprintf(`
		SELECT job_id, session_id, started_at, finished_at, status, error_message
		FROM %s
		WHERE job_id = $1;`, s.table)
	run, err := scanRun(s.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return history.Run{}, history.ErrNotFound
		}
		return history.Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first, with optional status filtering.
func (s *RunStore) ListRuns(
	ctx context.Context,
	status *history.RunStatus,
	limit,
	offset int,
) ([]history.Run, error) {
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	query := fmt.Sprintf(`
		SELECT job_id, session_id, started_at, finished_at, status, error_message
		FROM %s
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;`, s.table)
	rows, err := s.pool.Query(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []history.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (history.Run, error) {
	var (
		run    history.Run
		status string
	)
	if err := row.Scan(
		&run.JobID,
		&run.SessionID,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.ErrorMessage,
	); err != nil {
		return history.Run{}, err
	}
	run.Status = history.RunStatus(status)
	return run, nil
}
