// Package stream owns the server-sent event channel of a running export job.
// It frames and decodes messages, applies them to job.State in arrival order,
// and releases the channel exactly once however the job ends.
package stream

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/JakeFAU/rosterctl/internal/job"
)

// Event is one decoded stream message. The concrete type is always one of
// StatusEvent, LogEvent, ErrorEvent or ResultEvent.
type Event interface {
	// Type returns the wire tag of the event.
	Type() string
	// Timestamp returns the server timestamp when one was sent and parsed.
	Timestamp() (time.Time, bool)
	isEvent()
}

// Wire tags.
const (
	TypeStatus = "status"
	TypeLog    = "log"
	TypeError  = "error"
	TypeResult = "result"
)

type stamp struct {
	at time.Time
}

func (s stamp) Timestamp() (time.Time, bool) {
	return s.at, !s.at.IsZero()
}

func (stamp) isEvent() {}

// StatusEvent carries a non-authoritative status update.
type StatusEvent struct {
	stamp
	Status job.Status
}

// Type implements Event.
func (StatusEvent) Type() string { return TypeStatus }

// LogEvent carries one human-readable progress line.
type LogEvent struct {
	stamp
	Message string
}

// Type implements Event.
func (LogEvent) Type() string { return TypeLog }

// ErrorEvent is terminal. Message may be empty.
type ErrorEvent struct {
	stamp
	Message string
}

// Type implements Event.
func (ErrorEvent) Type() string { return TypeError }

// ResultEvent is terminal and carries the job result.
type ResultEvent struct {
	stamp
	Result job.Result
}

// Type implements Event.
func (ResultEvent) Type() string { return TypeResult }

type wireEvent struct {
	Type      string          `json:"type"`
	Status    *string         `json:"status"`
	Message   *string         `json:"message"`
	Error     *string         `json:"error"`
	Timestamp *string         `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Server timestamps are naive UTC; RFC 3339 values are accepted too.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a server timestamp as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimestamp(raw *string) time.Time {
	if raw == nil {
		return time.Time{}
	}
	t, _ := ParseTimestamp(*raw)
	return t
}

// Decode parses one data payload. Unknown tags, missing required fields and
// invalid JSON yield a *ParseError. An unparseable timestamp is treated as absent.
func Decode(payload []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, &ParseError{Message: "invalid json", Cause: err}
	}
	st := stamp{at: parseTimestamp(w.Timestamp)}
	switch w.Type {
	case TypeStatus:
		if w.Status == nil || *w.Status == "" {
			return nil, &ParseError{Message: "status event without status"}
		}
		return StatusEvent{stamp: st, Status: job.Status(*w.Status)}, nil
	case TypeLog:
		if w.Message == nil {
			return nil, &ParseError{Message: "log event without message"}
		}
		return LogEvent{stamp: st, Message: *w.Message}, nil
	case TypeError:
		var msg string
		if w.Error != nil {
			msg = *w.Error
		}
		return ErrorEvent{stamp: st, Message: msg}, nil
	case TypeResult:
		if len(w.Data) == 0 || string(w.Data) == "null" {
			return nil, &ParseError{Message: "result event without data"}
		}
		var res job.Result
		if err := json.Unmarshal(w.Data, &res); err != nil {
			return nil, &ParseError{Message: "invalid result data", Cause: err}
		}
		return ResultEvent{stamp: st, Result: res}, nil
	case "":
		return nil, &ParseError{Message: "missing type"}
	default:
		return nil, &ParseError{Message: "unknown type " + w.Type}
	}
}

// IsParseError reports whether err is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
