package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/clock"
	"github.com/JakeFAU/rosterctl/internal/clock/system"
	"github.com/JakeFAU/rosterctl/internal/job"
	"github.com/JakeFAU/rosterctl/internal/progress"
)

// Phase is the lifecycle position of the controller.
type Phase string

// Controller phases.
const (
	PhaseDisconnected  Phase = "disconnected"
	PhaseAttached      Phase = "attached"
	PhaseClosedSuccess Phase = "closed-success"
	PhaseClosedFailure Phase = "closed-failure"
	PhaseClosedLost    Phase = "closed-lost"
)

const (
	// FallbackErrorMessage is recorded when an error event carries no text.
	FallbackErrorMessage = "workflow failed"
	// ConnectionLostMessage is recorded when the stream drops without a terminal event.
	ConnectionLostMessage = "connection lost"
)

// Opener opens the event stream of a job. The returned body must stop
// blocking reads once ctx is cancelled or the body is closed.
type Opener interface {
	OpenStream(ctx context.Context, jobID string) (io.ReadCloser, error)
}

// Update describes one applied change. Observers receive it on the reader
// goroutine after the state lock has been released.
type Update struct {
	JobID  string
	Event  string
	Line   string
	Status job.Status
	Phase  Phase
}

// Observer is notified of every applied update. It may call Close but must
// not call Wait.
type Observer func(Update)

// Config wires optional collaborators. Zero values fall back to defaults.
type Config struct {
	MaxEventBytes int
	// Location renders log stamps; defaults to time.Local.
	Location  *time.Location
	Clock     clock.Clock
	Logger    *zap.Logger
	Emitter   progress.Emitter
	SessionID string
	Observer  Observer
}

type channel struct {
	jobID    string
	cancel   context.CancelFunc
	body     io.ReadCloser
	openedAt time.Time
	finished chan struct{}
	once     sync.Once
}

func (ch *channel) release() {
	ch.once.Do(func() {
		ch.cancel()
		if ch.body != nil {
			_ = ch.body.Close()
		}
	})
}

// Controller is the only writer of a job.State. It holds at most one live
// channel; a channel that has been torn down can never mutate state again.
type Controller struct {
	state  *job.State
	opener Opener

	maxEventBytes int
	loc           *time.Location
	clock         clock.Clock
	logger        *zap.Logger
	emitter       progress.Emitter
	sessionID     string
	observer      Observer

	mu      sync.Mutex
	live    *channel
	last    *channel
	phase   Phase
	lastErr error
}

// NewController builds a controller writing to state and opening streams via opener.
func NewController(state *job.State, opener Opener, cfg Config) *Controller {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Emitter == nil {
		cfg.Emitter = progress.Nop{}
	}
	return &Controller{
		state:         state,
		opener:        opener,
		maxEventBytes: cfg.MaxEventBytes,
		loc:           cfg.Location,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		emitter:       cfg.Emitter,
		sessionID:     cfg.SessionID,
		observer:      cfg.Observer,
		phase:         PhaseDisconnected,
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Err returns the terminal error of the last attempt: *JobError,
// *ConnectionLostError, the error passed to Abort, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Reset tears down any live channel and starts a fresh job record in one step.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.state.Reset()
	c.last = nil
	c.lastErr = nil
	c.phase = PhaseDisconnected
}

// Abort records a submission failure. No channel is opened.
func (c *Controller) Abort(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.closeLocked()
	c.state.Fail(job.FailureSubmission, err.Error())
	c.last = nil
	c.lastErr = err
	c.phase = PhaseClosedFailure
	c.mu.Unlock()
	c.emit(progress.Event{Stage: progress.StageSubmitFailed, Note: err.Error()})
	c.notify(Update{Event: "submit", Status: job.StatusFailed, Phase: PhaseClosedFailure})
}

// Attach tears down any open channel, then opens a new one scoped to jobID
// and starts applying its events. It returns once the stream is open.
func (c *Controller) Attach(ctx context.Context, jobID string) error {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ch := &channel{
		jobID:    jobID,
		cancel:   cancel,
		openedAt: c.clock.Now(),
		finished: make(chan struct{}),
	}

	c.mu.Lock()
	c.closeLocked()
	c.live = ch
	c.last = ch
	c.lastErr = nil
	c.phase = PhaseAttached
	c.mu.Unlock()

	body, err := c.opener.OpenStream(streamCtx, jobID)

	c.mu.Lock()
	if c.live != ch {
		c.mu.Unlock()
		if body != nil {
			_ = body.Close()
		}
		cancel()
		close(ch.finished)
		return ErrDetached
	}
	if err != nil {
		lost := &ConnectionLostError{JobID: jobID, Cause: err}
		c.state.Fail(job.FailureConnection, ConnectionLostMessage)
		c.finishLocked(ch, PhaseClosedLost, lost)
		c.mu.Unlock()
		close(ch.finished)
		c.logger.Warn("open event stream failed", zap.String("job_id", jobID), zap.Error(err))
		c.emit(progress.Event{JobID: jobID, Stage: progress.StageStreamLost, Note: err.Error(), Dur: c.since(ch)})
		c.notify(Update{JobID: jobID, Event: "lost", Status: job.StatusFailed, Phase: PhaseClosedLost})
		return lost
	}
	ch.body = body
	c.mu.Unlock()

	c.logger.Debug("event stream opened", zap.String("job_id", jobID), zap.String("session_id", c.sessionID))
	c.emit(progress.Event{JobID: jobID, Stage: progress.StageStreamOpened})
	go c.read(ch)
	return nil
}

// Close releases the live channel, if any. It is idempotent and does not wait
// for the reader goroutine, so observers may call it.
func (c *Controller) Close() {
	c.mu.Lock()
	jobID := ""
	if c.live != nil {
		jobID = c.live.jobID
	}
	closed := c.closeLocked()
	c.mu.Unlock()
	if closed {
		c.emit(progress.Event{JobID: jobID, Stage: progress.StageStreamClosed})
	}
}

// Wait blocks until the most recent attempt has settled and its reader has
// exited, then returns the phase.
func (c *Controller) Wait(ctx context.Context) (Phase, error) {
	c.mu.Lock()
	ch := c.last
	c.mu.Unlock()
	if ch == nil {
		return c.Phase(), nil
	}
	select {
	case <-ch.finished:
		return c.Phase(), nil
	case <-ctx.Done():
		return c.Phase(), ctx.Err()
	}
}

// closeLocked tears down the live channel. A live channel is always in the
// attached phase, so the phase falls back to disconnected.
func (c *Controller) closeLocked() bool {
	if c.live == nil {
		return false
	}
	c.live.release()
	c.live = nil
	c.phase = PhaseDisconnected
	return true
}

func (c *Controller) finishLocked(ch *channel, phase Phase, err error) {
	ch.release()
	if c.live == ch {
		c.live = nil
	}
	c.phase = phase
	c.lastErr = err
}

func (c *Controller) read(ch *channel) {
	defer close(ch.finished)
	r := NewReader(ch.body, c.maxEventBytes)
	for {
		payload, err := r.Next()
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			if !c.drop(ch, payload, err) {
				return
			}
			continue
		}
		if err != nil {
			c.lost(ch, err)
			return
		}
		evt, err := Decode([]byte(payload))
		if err != nil {
			if !c.drop(ch, payload, err) {
				return
			}
			continue
		}
		upd, ok := c.apply(ch, evt)
		if !ok {
			return
		}
		c.notify(upd)
		if upd.Phase != PhaseAttached {
			return
		}
	}
}

// drop logs a message that could not be used and reports whether ch is
// still live.
func (c *Controller) drop(ch *channel, payload string, err error) bool {
	if !c.isLive(ch) {
		return false
	}
	c.logger.Warn("dropping malformed stream message",
		zap.String("job_id", ch.jobID),
		zap.Int("bytes", len(payload)),
		zap.Error(err))
	c.emit(progress.Event{JobID: ch.jobID, Stage: progress.StageStreamParseError, Note: err.Error()})
	return true
}

func (c *Controller) isLive(ch *channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live == ch
}

func (c *Controller) apply(ch *channel, evt Event) (Update, bool) {
	c.mu.Lock()
	if c.live != ch {
		c.mu.Unlock()
		return Update{}, false
	}
	upd := Update{JobID: ch.jobID, Event: evt.Type(), Phase: PhaseAttached}
	var terminal *progress.Event
	switch e := evt.(type) {
	case StatusEvent:
		c.state.SetStatus(e.Status)
	case LogEvent:
		upd.Line = c.formatLine(e, e.Message)
		c.state.AppendLog(upd.Line)
	case ErrorEvent:
		msg := e.Message
		if msg == "" {
			msg = FallbackErrorMessage
		}
		c.state.Fail(job.FailureJob, msg)
		c.finishLocked(ch, PhaseClosedFailure, &JobError{JobID: ch.jobID, Message: msg})
		terminal = &progress.Event{JobID: ch.jobID, Stage: progress.StageJobError, Note: msg, Dur: c.since(ch)}
	case ResultEvent:
		c.state.Complete(e.Result)
		c.finishLocked(ch, PhaseClosedSuccess, nil)
		terminal = &progress.Event{JobID: ch.jobID, Stage: progress.StageJobDone, Dur: c.since(ch)}
	}
	upd.Status = c.state.Status()
	upd.Phase = c.phase
	c.mu.Unlock()

	c.emit(progress.Event{JobID: ch.jobID, Stage: progress.StageStreamEvent, EventType: evt.Type()})
	if terminal != nil {
		c.logger.Info("job finished",
			zap.String("job_id", ch.jobID),
			zap.String("status", string(upd.Status)),
			zap.Duration("dur", terminal.Dur))
		c.emit(*terminal)
	}
	return upd, true
}

func (c *Controller) lost(ch *channel, cause error) {
	c.mu.Lock()
	if c.live != ch {
		c.mu.Unlock()
		return
	}
	if errors.Is(cause, io.EOF) {
		cause = nil
	}
	lost := &ConnectionLostError{JobID: ch.jobID, Cause: cause}
	c.state.Fail(job.FailureConnection, ConnectionLostMessage)
	c.finishLocked(ch, PhaseClosedLost, lost)
	c.mu.Unlock()

	c.logger.Warn("event stream lost before terminal event", zap.String("job_id", ch.jobID), zap.Error(cause))
	note := ConnectionLostMessage
	if cause != nil {
		note = cause.Error()
	}
	c.emit(progress.Event{JobID: ch.jobID, Stage: progress.StageStreamLost, Note: note, Dur: c.since(ch)})
	c.notify(Update{JobID: ch.jobID, Event: "lost", Status: job.StatusFailed, Phase: PhaseClosedLost})
}

func (c *Controller) formatLine(evt Event, message string) string {
	at, ok := evt.Timestamp()
	if !ok {
		at = c.clock.Now()
	}
	return "[" + at.In(c.loc).Format("15:04:05") + "] " + message
}

func (c *Controller) since(ch *channel) time.Duration {
	d := c.clock.Now().Sub(ch.openedAt)
	if d < 0 {
		return 0
	}
	return d
}

func (c *Controller) emit(evt progress.Event) {
	evt.SessionID = c.sessionID
	if evt.TS.IsZero() {
		evt.TS = c.clock.Now().UTC()
	}
	c.emitter.Emit(evt)
}

func (c *Controller) notify(upd Update) {
	if c.observer != nil {
		c.observer(upd)
	}
}
