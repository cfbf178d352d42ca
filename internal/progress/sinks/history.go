package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/history"
	"github.com/JakeFAU/rosterctl/internal/progress"
)

// HistorySink persists run start and finish through a history.Repository.
type HistorySink struct {
	repo   history.Repository
	logger *zap.Logger
}

// NewHistorySink constructs a HistorySink for the provided repository.
func NewHistorySink(repo history.Repository, logger *zap.Logger) *HistorySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistorySink{repo: repo, logger: logger}
}

// Consume forwards lifecycle stages to the repository. It respects ctx
// deadlines and returns the first repository error.
func (s *HistorySink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		if err := s.handle(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (s *HistorySink) handle(ctx context.Context, evt progress.Event) error {
	var status history.RunStatus
	switch evt.Stage {
	case progress.StageSubmitted:
		if err := s.repo.RecordStart(ctx, evt.JobID, evt.SessionID, evt.TS); err != nil {
			return fmt.Errorf("record run start: %w", err)
		}
		return nil
	case progress.StageJobDone:
		status = history.RunCompleted
	case progress.StageJobError:
		status = history.RunFailed
	case progress.StageStreamLost:
		status = history.RunLost
	default:
		return nil
	}
	var note *string
	if evt.Note != "" {
		note = &evt.Note
	}
	if err := s.repo.RecordFinish(ctx, evt.JobID, evt.TS, status, note); err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	s.logger.Debug("run recorded", zap.String("job_id", evt.JobID), zap.String("status", string(status)))
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *HistorySink) Close(context.Context) error {
	return nil
}
