package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	// BaseURL is the service root, e.g. http://localhost:8000.
	BaseURL string
	// Timeout bounds plain requests. Streams and downloads are bounded only by ctx.
	Timeout   time.Duration
	UserAgent string
	// SessionID is sent as X-Session-ID on every request.
	SessionID string
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client talks to the workflow service.
type Client struct {
	base      string
	http      *http.Client
	stream    *http.Client
	userAgent string
	sessionID string
	logger    *zap.Logger
}

// NewClient validates opts and builds a Client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", opts.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", opts.BaseURL)
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:      base,
		http:      &http.Client{Timeout: opts.Timeout, Transport: transport},
		stream:    &http.Client{Transport: transport},
		userAgent: opts.UserAgent,
		sessionID: opts.SessionID,
		logger:    logger,
	}, nil
}

// BaseURL returns the normalized service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base
}

// FetchFields loads the exportable column catalog.
func (c *Client) FetchFields(ctx context.Context) (FieldsResponse, error) {
	var out FieldsResponse
	if err := c.getJSON(ctx, "fetch fields", "/api/fields", &out); err != nil {
		return FieldsResponse{}, err
	}
	return out, nil
}

// CreateJob submits an export job and returns the server-issued job id.
// Non-2xx responses yield a *StatusError; a 2xx body without a job id yields
// ErrInvalidResponse.
func (c *Client) CreateJob(ctx context.Context, body RunRequest) (string, error) {
	if body.TeamIDs == nil {
		body.TeamIDs = []string{}
	}
	if body.Fields == nil {
		body.Fields = []string{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode run request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/run", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	defer closeBody(resp.Body)
	if err := checkStatus("create job", resp); err != nil {
		return "", err
	}
	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create job: %w: %v", ErrInvalidResponse, err)
	}
	if strings.TrimSpace(out.JobID) == "" {
		return "", fmt.Errorf("create job: %w: missing job_id", ErrInvalidResponse)
	}
	c.logger.Debug("job created", zap.String("job_id", out.JobID), zap.Int("teams", len(body.TeamIDs)))
	return out.JobID, nil
}

// GetJob loads a one-shot snapshot of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (JobSnapshot, error) {
	var out JobSnapshot
	if err := c.getJSON(ctx, "get job", "/api/jobs/"+url.PathEscape(jobID), &out); err != nil {
		return JobSnapshot{}, err
	}
	return out, nil
}

// Health returns the status string reported by /health.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "health", "/health", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// OpenStream opens the job's event stream. The caller owns the returned body;
// closing it or cancelling ctx ends the stream.
func (c *Client) OpenStream(ctx context.Context, jobID string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID)+"/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := checkStatus("open stream", resp); err != nil {
		closeBody(resp.Body)
		return nil, err
	}
	return resp.Body, nil
}

// Download fetches a result file from a URL built by present.DownloadURL. It
// returns the body and its content type; the caller closes the body.
func (c *Client) Download(ctx context.Context, downloadURL string) (io.ReadCloser, string, error) {
	if !strings.HasPrefix(downloadURL, c.base+"/download?") {
		return nil, "", fmt.Errorf("download url %q is not served by %s", downloadURL, c.base)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	c.decorate(req)
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	if err := checkStatus("download", resp); err != nil {
		closeBody(resp.Body)
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resp.Body, contentType, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeBody(resp.Body)
	if err := checkStatus(op, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	c.decorate(req)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.sessionID != "" {
		req.Header.Set("X-Session-ID", c.sessionID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := &StatusError{Op: op, StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(raw) > 0 {
		var body errorBody
		if json.Unmarshal(raw, &body) == nil {
			if detail, ok := body.Detail.(string); ok {
				statusErr.Detail = strings.TrimSpace(detail)
			}
		}
	}
	return statusErr
}

func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
