// Package present projects a job and the field catalog into display values.
// Nothing here performs I/O beyond writing to the supplied io.Writer.
package present

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/JakeFAU/rosterctl/internal/api"
	"github.com/JakeFAU/rosterctl/internal/catalog"
	"github.com/JakeFAU/rosterctl/internal/job"
	"github.com/JakeFAU/rosterctl/internal/stream"
)

// DownloadURL builds the link that streams a result file. The path is fully
// query-escaped with spaces as %20, so url.ParseQuery recovers it exactly.
func DownloadURL(base, filePath string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(filePath), "+", "%20")
	return strings.TrimRight(base, "/") + "/download?path=" + escaped
}

// Link is one downloadable file.
type Link struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
	URL  string `json:"url" yaml:"url"`
}

// View is the rendered form of a job.
type View struct {
	JobID   string                `json:"job_id" yaml:"job_id"`
	Status  job.Status            `json:"status" yaml:"status"`
	Error   string                `json:"error,omitempty" yaml:"error,omitempty"`
	Failure job.FailureKind       `json:"failure,omitempty" yaml:"failure,omitempty"`
	Logs    []string              `json:"logs,omitempty" yaml:"logs,omitempty"`
	Teams   []job.Team            `json:"teams,omitempty" yaml:"teams,omitempty"`
	Fields  []catalog.FieldOption `json:"fields,omitempty" yaml:"fields,omitempty"`
	Files   []Link                `json:"files,omitempty" yaml:"files,omitempty"`
}

// Build projects j. Selected fields are labelled from cat; unknown ids keep
// the id as their label. Files link against base.
func Build(j job.Job, cat catalog.Catalog, base string) View {
	v := View{
		JobID:   j.ID,
		Status:  j.Status,
		Error:   j.Error,
		Failure: j.Failure,
		Logs:    append([]string(nil), j.LogLines...),
	}
	if j.Result == nil {
		return v
	}
	v.Teams = append([]job.Team(nil), j.Result.Teams...)
	for _, id := range j.Result.SelectedFields {
		v.Fields = append(v.Fields, catalog.FieldOption{ID: id, Label: cat.Label(id)})
	}
	for _, p := range j.Result.Files() {
		v.Files = append(v.Files, Link{Name: path.Base(p), Path: p, URL: DownloadURL(base, p)})
	}
	return v
}

// FromSnapshot converts a one-shot job snapshot into a job.Job. Log lines
// are stamped the same way the stream controller stamps them.
func FromSnapshot(snap api.JobSnapshot, loc *time.Location) job.Job {
	if loc == nil {
		loc = time.Local
	}
	j := job.Job{ID: snap.ID, Status: job.Status(snap.Status)}
	for _, rec := range snap.Logs {
		line := rec.Message
		if at, ok := stream.ParseTimestamp(rec.Timestamp); ok {
			line = "[" + at.In(loc).Format("15:04:05") + "] " + line
		}
		j.LogLines = append(j.LogLines, line)
	}
	switch j.Status {
	case job.StatusCompleted:
		if snap.Result != nil {
			res := *snap.Result
			j.Result = &res
		}
	case job.StatusFailed:
		j.Failure = job.FailureJob
		j.Error = stream.FallbackErrorMessage
		if snap.Error != nil && *snap.Error != "" {
			j.Error = *snap.Error
		}
	}
	return j
}
