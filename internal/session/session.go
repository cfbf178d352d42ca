// Package session runs one export from submission to a settled stream. Every
// Start is a hard reset: the previous channel is torn down and the job record
// is discarded before the new create-job request goes out.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/api"
	"github.com/JakeFAU/rosterctl/internal/clock"
	"github.com/JakeFAU/rosterctl/internal/clock/system"
	"github.com/JakeFAU/rosterctl/internal/job"
	"github.com/JakeFAU/rosterctl/internal/progress"
	"github.com/JakeFAU/rosterctl/internal/stream"
	"github.com/JakeFAU/rosterctl/internal/submit"
)

// Sender issues the create-job request; *submit.Gateway satisfies it.
type Sender interface {
	Send(ctx context.Context, req api.RunRequest) (string, error)
}

// Options wires the collaborators of a Session.
type Options struct {
	Sender    Sender
	Opener    stream.Opener
	Stream    stream.Config
	Emitter   progress.Emitter
	Clock     clock.Clock
	Logger    *zap.Logger
	SessionID string
}

// Session owns the job record and the controller that writes it.
type Session struct {
	mu         sync.Mutex
	state      *job.State
	controller *stream.Controller
	sender     Sender
	emitter    progress.Emitter
	clock      clock.Clock
	logger     *zap.Logger
	sessionID  string
}

// New builds a Session. Stream settings inherit the session's clock, logger,
// emitter and id when left empty.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.Emitter == nil {
		opts.Emitter = progress.Nop{}
	}
	cfg := opts.Stream
	if cfg.Clock == nil {
		cfg.Clock = opts.Clock
	}
	if cfg.Logger == nil {
		cfg.Logger = opts.Logger
	}
	if cfg.Emitter == nil {
		cfg.Emitter = opts.Emitter
	}
	if cfg.SessionID == "" {
		cfg.SessionID = opts.SessionID
	}
	state := job.NewState()
	return &Session{
		state:      state,
		controller: stream.NewController(state, opts.Opener, cfg),
		sender:     opts.Sender,
		emitter:    opts.Emitter,
		clock:      opts.Clock,
		logger:     opts.Logger,
		sessionID:  opts.SessionID,
	}
}

// State exposes the read-only job record.
func (s *Session) State() job.Reader {
	return s.state
}

// Phase returns the controller phase.
func (s *Session) Phase() stream.Phase {
	return s.controller.Phase()
}

// Start submits in and attaches to the new job. A *submit.ValidationError
// leaves the previous job untouched. A *submit.SubmissionError marks the new
// job failed without opening a stream. Otherwise the job id is returned once
// the stream is open; a stream that cannot be opened yields a
// *stream.ConnectionLostError alongside the id.
func (s *Session) Start(ctx context.Context, in submit.Input) (string, error) {
	req, err := submit.Prepare(in)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.controller.Reset()
	jobID, err := s.sender.Send(ctx, req)
	if err != nil {
		s.controller.Abort(err)
		return "", err
	}
	s.state.SetID(jobID)
	s.emitter.Emit(progress.Event{
		SessionID: s.sessionID,
		JobID:     jobID,
		TS:        s.clock.Now().UTC(),
		Stage:     progress.StageSubmitted,
	})
	s.logger.Info("attaching to job", zap.String("job_id", jobID), zap.String("session_id", s.sessionID))
	if err := s.controller.Attach(ctx, jobID); err != nil {
		return jobID, err
	}
	return jobID, nil
}

// Wait blocks until the current job settles and returns its final snapshot.
// The error is the terminal error of the attempt: nil on success,
// *stream.JobError or *stream.ConnectionLostError otherwise. ctx only bounds
// the wait; it does not close the stream.
func (s *Session) Wait(ctx context.Context) (job.Job, error) {
	if _, err := s.controller.Wait(ctx); err != nil {
		return s.state.Snapshot(), err
	}
	return s.state.Snapshot(), s.controller.Err()
}

// Run is Start followed by Wait.
func (s *Session) Run(ctx context.Context, in submit.Input) (job.Job, error) {
	if _, err := s.Start(ctx, in); err != nil {
		var lost *stream.ConnectionLostError
		if !errors.As(err, &lost) {
			return s.state.Snapshot(), err
		}
	}
	return s.Wait(ctx)
}

// Close releases the live stream, if any. It is idempotent.
func (s *Session) Close() {
	s.controller.Close()
}
