package job

import "sync"

// Reader is the read-only view handed to everything except the stream controller.
type Reader interface {
	Snapshot() Job
}

// State is the single-writer record of the current job. Mutators refuse to
// change anything once a terminal status is reached; only Reset starts over.
// It is safe for concurrent readers.
type State struct {
	mu       sync.RWMutex
	id       string
	status   Status
	logLines []string
	errText  string
	failure  FailureKind
	result   *Result
}

// NewState returns an idle State.
func NewState() *State {
	return &State{status: StatusIdle}
}

// Snapshot returns a deep copy of the current job.
func (s *State) Snapshot() Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Job{
		ID:       s.id,
		Status:   s.status,
		LogLines: append([]string(nil), s.logLines...),
		Error:    s.errText,
		Failure:  s.failure,
	}
	if s.result != nil {
		res := s.result.clone()
		out.Result = &res
	}
	return out
}

// Reset discards everything about the previous job and moves to starting.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.status = StatusStarting
	s.logLines = nil
	s.errText = ""
	s.failure = FailureNone
	s.result = nil
}

// SetID records the server-issued identifier.
func (s *State) SetID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.id = id
	return true
}

// SetStatus applies a non-terminal status reported by the server. Terminal
// statuses are only reachable through Complete and Fail so that result and
// error stay in step with them. idle and starting belong to Reset, and once a
// job is running it stays running until Complete or Fail.
func (s *State) SetStatus(status Status) bool {
	if status == "" || status.IsTerminal() || status == StatusIdle || status == StatusStarting {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	if s.status == StatusRunning && status != StatusRunning {
		return false
	}
	s.status = status
	return true
}

// AppendLog appends one formatted log line.
func (s *State) AppendLog(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.logLines = append(s.logLines, line)
	return true
}

// Complete records the terminal result.
func (s *State) Complete(result Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	res := result.clone()
	s.status = StatusCompleted
	s.result = &res
	return true
}

// Fail records the terminal failure reason.
func (s *State) Fail(kind FailureKind, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.status = StatusFailed
	s.errText = message
	s.failure = kind
	return true
}

// Status returns the current status without copying the log.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
