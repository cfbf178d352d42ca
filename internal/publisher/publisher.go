// Package publisher declares the notification publisher used to announce
// finished export runs to downstream consumers.
package publisher

import (
	"context"
	"time"
)

// Publisher sends a JSON-encodable payload to a topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RunFinished is the payload published once per terminal export run.
type RunFinished struct {
	JobID      string    `json:"job_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
	// DurationMS is the time from submission to the terminal event.
	DurationMS int64 `json:"duration_ms"`
}
