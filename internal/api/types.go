package api

import "github.com/JakeFAU/rosterctl/internal/job"

// Field is one exportable column as returned by the catalog endpoint.
type Field struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// FieldsResponse is the body of GET /api/fields.
type FieldsResponse struct {
	Fields  []Field  `json:"fields"`
	Default []string `json:"default"`
}

// RunRequest is the body of POST /api/run. SeasonID encodes as null when nil.
type RunRequest struct {
	TeamIDs  []string `json:"team_ids"`
	SeasonID *string  `json:"season_id"`
	Fields   []string `json:"fields"`
}

type runResponse struct {
	JobID string `json:"job_id"`
}

// LogRecord is one stored log entry of a job snapshot.
type LogRecord struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// JobSnapshot is the body of GET /api/jobs/{id}.
type JobSnapshot struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Error     *string     `json:"error"`
	Logs      []LogRecord `json:"logs"`
	Result    *job.Result `json:"result"`
	CreatedAt string      `json:"created_at"`
}

type errorBody struct {
	Detail any `json:"detail"`
}
