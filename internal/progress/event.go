package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSubmitted        Stage = "SUBMITTED"
	StageSubmitFailed     Stage = "SUBMIT_FAILED"
	StageStreamOpened     Stage = "STREAM_OPENED"
	StageStreamEvent      Stage = "STREAM_EVENT"
	StageStreamParseError Stage = "STREAM_PARSE_ERROR"
	StageJobDone          Stage = "JOB_DONE"
	StageJobError         Stage = "JOB_ERROR"
	StageStreamLost       Stage = "STREAM_LOST"
	StageStreamClosed     Stage = "STREAM_CLOSED"
)

// IsTerminal reports whether the stage ends a run.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageSubmitFailed, StageJobDone, StageJobError, StageStreamLost:
		return true
	default:
		return false
	}
}

// Event captures a single milestone of an export run.
type Event struct {
	// SessionID correlates every event produced by one client invocation.
	SessionID string
	// JobID is the server-issued identifier; empty until submission succeeds.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// EventType names the stream event variant for STREAM_EVENT.
	EventType string
	// Dur is the time since submission for terminal stages.
	Dur time.Duration
	// Note carries low-volume context such as an error message.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSubmitFailed:
		if e.SessionID == "" && e.JobID == "" {
			return errors.New("submit failure requires a session or job id")
		}
	case StageSubmitted, StageStreamOpened, StageStreamParseError,
		StageJobDone, StageJobError, StageStreamLost, StageStreamClosed:
		if e.JobID == "" {
			return fmt.Errorf("%s requires job id", e.Stage)
		}
	case StageStreamEvent:
		if e.JobID == "" {
			return errors.New("stream event requires job id")
		}
		if e.EventType == "" {
			return errors.New("stream event requires event type")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
