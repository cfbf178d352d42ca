package stream

import (
	"errors"
	"fmt"
)

// ErrDetached is returned by Attach when a newer Attach or Close superseded it
// before the stream finished opening.
var ErrDetached = errors.New("stream detached before it opened")

// ParseError reports one stream message that could not be decoded. The
// message is dropped and the channel stays open.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse stream event: %s: %v", e.Message, e.Cause)
	}
	return "parse stream event: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// JobError is the failure reported by the server through a terminal error event.
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// ConnectionLostError reports that the stream ended or could not be opened
// before a terminal event arrived. The job itself may still be running.
type ConnectionLostError struct {
	JobID string
	Cause error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("job %s: connection lost: %v", e.JobID, e.Cause)
	}
	return fmt.Sprintf("job %s: connection lost", e.JobID)
}

func (e *ConnectionLostError) Unwrap() error {
	return e.Cause
}
