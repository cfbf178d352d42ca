package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/progress"
	"github.com/JakeFAU/rosterctl/internal/publisher"
)

// RunFinishedTopic is the event name attached to finish notifications.
const RunFinishedTopic = "run.finished"

// NotifySink publishes one publisher.RunFinished message per terminal stage.
type NotifySink struct {
	pub    publisher.Publisher
	logger *zap.Logger
}

// NewNotifySink wires a publisher to the sink interface.
func NewNotifySink(pub publisher.Publisher, logger *zap.Logger) *NotifySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifySink{pub: pub, logger: logger}
}

// Consume publishes terminal stages and ignores everything else.
func (s *NotifySink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	for _, evt := range batch {
		if !evt.Stage.IsTerminal() {
			continue
		}
		msg := publisher.RunFinished{
			JobID:      evt.JobID,
			SessionID:  evt.SessionID,
			Outcome:    outcomeLabel(evt.Stage),
			Error:      evt.Note,
			FinishedAt: evt.TS.UTC(),
			DurationMS: evt.Dur.Milliseconds(),
		}
		id, err := s.pub.Publish(ctx, RunFinishedTopic, msg)
		if err != nil {
			return fmt.Errorf("publish run finished: %w", err)
		}
		s.logger.Debug("run notification published", zap.String("job_id", evt.JobID), zap.String("message_id", id))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *NotifySink) Close(context.Context) error {
	return nil
}
