// Package job holds the canonical client-side view of an export job: its
// status, accumulated log lines, failure reason and terminal result.
package job

// Status represents the lifecycle state of an export job. The server may send
// free-form non-terminal values (for example "pending"); they are stored verbatim.
type Status string

// Status values understood by the client.
const (
	StatusIdle      Status = "idle"
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status ends the job attempt.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailureKind separates a job the server reported as failed from an attempt
// that ended because the client could not reach or keep hearing from it.
type FailureKind string

// Failure kinds recorded alongside a failed status.
const (
	FailureNone       FailureKind = ""
	FailureSubmission FailureKind = "submission"
	FailureJob        FailureKind = "job"
	FailureConnection FailureKind = "connection"
)

// Team is one processed club in a result payload.
type Team struct {
	ClubID   string `json:"club_id" yaml:"club_id"`
	ClubName string `json:"club_name" yaml:"club_name"`
}

// Result is the terminal payload of a completed job. Paths are relative to the
// server's data directory and are only ever used to build download links.
type Result struct {
	Teams          []Team   `json:"teams" yaml:"teams"`
	ClubIDsCSV     string   `json:"club_ids_csv" yaml:"club_ids_csv"`
	GeneratedCSVs  []string `json:"generated_csvs" yaml:"generated_csvs"`
	AugmentedCSVs  []string `json:"augmented_csvs" yaml:"augmented_csvs"`
	Workbook       string   `json:"workbook" yaml:"workbook"`
	SelectedFields []string `json:"selected_fields" yaml:"selected_fields"`
}

// Files returns every downloadable path in the result, workbook first, without duplicates.
func (r Result) Files() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 2+len(r.GeneratedCSVs)+len(r.AugmentedCSVs))
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	add(r.Workbook)
	add(r.ClubIDsCSV)
	for _, p := range r.GeneratedCSVs {
		add(p)
	}
	for _, p := range r.AugmentedCSVs {
		add(p)
	}
	return out
}

func (r Result) clone() Result {
	cp := r
	cp.Teams = append([]Team(nil), r.Teams...)
	cp.GeneratedCSVs = append([]string(nil), r.GeneratedCSVs...)
	cp.AugmentedCSVs = append([]string(nil), r.AugmentedCSVs...)
	cp.SelectedFields = append([]string(nil), r.SelectedFields...)
	return cp
}

// Job is a point-in-time snapshot of the job state.
type Job struct {
	ID       string      `json:"id" yaml:"id"`
	Status   Status      `json:"status" yaml:"status"`
	LogLines []string    `json:"log_lines" yaml:"log_lines"`
	Error    string      `json:"error,omitempty" yaml:"error,omitempty"`
	Failure  FailureKind `json:"failure,omitempty" yaml:"failure,omitempty"`
	Result   *Result     `json:"result,omitempty" yaml:"result,omitempty"`
}

// HasError reports whether a failure reason is recorded.
func (j Job) HasError() bool {
	return j.Status == StatusFailed
}
