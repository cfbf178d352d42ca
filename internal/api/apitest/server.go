// Package apitest provides an in-memory workflow service built on chi for
// tests of the client, the session, and the commands.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/rosterctl/internal/api"
)

// Frame renders one SSE message carrying payload.
func Frame(payload string) string {
	return "data: " + payload + "\n\n"
}

// Server is a scripted fake of the workflow service.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	fields         api.FieldsResponse
	fieldsStatus   int
	runs           []api.RunRequest
	headers        []http.Header
	nextID         int
	declineStatus  int
	declineBody    string
	script         []string
	hold           bool
	streamRequests int
	snapshots      map[string]api.JobSnapshot
	files          map[string][]byte
}

// DefaultFields is the catalog a new Server serves.
func DefaultFields() api.FieldsResponse {
	return api.FieldsResponse{
		Fields: []api.Field{
			{ID: "name", Label: "Name"},
			{ID: "position", Label: "Position"},
			{ID: "age", Label: "Age"},
			{ID: "market_value", Label: "Market value"},
		},
		Default: []string{"name", "position", "age"},
	}
}

// New starts a fake service and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		fields:    DefaultFields(),
		snapshots: make(map[string]api.JobSnapshot),
		files:     make(map[string][]byte),
	}
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/fields", s.listFields)
	r.Post("/api/run", s.run)
	r.Route("/api/jobs/{job_id}", func(r chi.Router) {
		r.Get("/", s.getJob)
		r.Get("/stream", s.streamJob)
	})
	r.Get("/download", s.download)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// SetFields replaces the catalog. A non-zero status makes the endpoint fail.
func (s *Server) SetFields(fields api.FieldsResponse, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = fields
	s.fieldsStatus = status
}

// Decline makes POST /api/run answer with status and a raw body.
func (s *Server) Decline(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declineStatus = status
	s.declineBody = body
}

// Script sets the frames every stream replays. When hold is true the stream
// stays open after the last frame until the client goes away.
func (s *Server) Script(hold bool, frames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append([]string(nil), frames...)
	s.hold = hold
}

// PutSnapshot registers the body served by GET /api/jobs/{id}.
func (s *Server) PutSnapshot(snap api.JobSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = snap
}

// PutFile registers a downloadable file under a data-relative path.
func (s *Server) PutFile(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
}

// Runs returns the decoded create-job bodies received so far.
func (s *Server) Runs() []api.RunRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.RunRequest(nil), s.runs...)
}

// RunHeaders returns the headers of every create-job request.
func (s *Server) RunHeaders() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

// StreamRequests returns how many streams were opened.
func (s *Server) StreamRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamRequests
}

func (s *Server) listFields(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	fields, status := s.fields, s.fieldsStatus
	s.mu.Unlock()
	if status != 0 {
		writeError(w, status, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var req api.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON")
		return
	}
	s.mu.Lock()
	s.runs = append(s.runs, req)
	s.headers = append(s.headers, r.Header.Clone())
	declineStatus, declineBody := s.declineStatus, s.declineBody
	s.nextID++
	jobID := fmt.Sprintf("job%04d", s.nextID)
	s.mu.Unlock()

	if declineStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(declineStatus)
		_, _ = w.Write([]byte(declineBody))
		return
	}
	if len(req.TeamIDs) == 0 {
		writeError(w, http.StatusBadRequest, "Provide at least one club ID")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	s.mu.Lock()
	snap, ok := s.snapshots[jobID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) streamJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.streamRequests++
	frames := append([]string(nil), s.script...)
	hold := s.hold
	s.mu.Unlock()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for _, f := range frames {
		if _, err := w.Write([]byte(f)); err != nil {
			return
		}
		flusher.Flush()
	}
	if hold {
		<-r.Context().Done()
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "Missing path parameter")
		return
	}
	if strings.Contains(path, "..") || strings.HasPrefix(path, "/") {
		writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}
	s.mu.Lock()
	content, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
