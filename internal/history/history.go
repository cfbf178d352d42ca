// Package history declares the run-history record kept for every export the
// client submits, and the repository interface used to persist it.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// RunStatus mirrors the status column of the history table.
type RunStatus string

// Run statuses persisted in the history table.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	// RunLost marks runs whose event stream dropped before a terminal event.
	RunLost RunStatus = "lost"
)

// ParseRunStatus validates a user-supplied status filter.
func ParseRunStatus(raw string) (RunStatus, error) {
	switch s := RunStatus(raw); s {
	case RunRunning, RunCompleted, RunFailed, RunLost:
		return s, nil
	default:
		return "", errors.New("status must be one of running, completed, failed, lost")
	}
}

// Run models one row of the history table.
type Run struct {
	// JobID is the server-issued job identifier.
	JobID string
	// SessionID correlates the run with client logs.
	SessionID string
	StartedAt time.Time
	// FinishedAt is nil until the run reaches a terminal state.
	FinishedAt   *time.Time
	Status       RunStatus
	ErrorMessage *string
}

// Duration returns the wall time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Repository persists run history.
type Repository interface {
	// RecordStart inserts a running row; repeating it for the same job is a no-op.
	RecordStart(ctx context.Context, jobID, sessionID string, startedAt time.Time) error
	// RecordFinish marks the run finished with the given status and optional error.
	RecordFinish(ctx context.Context, jobID string, finishedAt time.Time, status RunStatus, errMsg *string) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, jobID string) (Run, error)
	// ListRuns returns runs newest first, optionally filtered by status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}
