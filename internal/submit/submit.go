// Package submit validates export input and creates jobs on the server.
package submit

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/api"
)

// GenericFailureMessage is shown when the server declines without a detail.
const GenericFailureMessage = "failed to start workflow"

// ValidationError rejects input before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SubmissionError reports that the job could not be created. Message is
// suitable for display; Cause keeps the underlying error.
type SubmissionError struct {
	Message string
	Cause   error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

var separators = regexp.MustCompile(`[\r\n,]+`)

// ParseTeamIDs splits raw text on runs of newlines and commas, trims every
// token, and drops empties. Applying it to its own comma-joined output is a no-op.
func ParseTeamIDs(raw string) []string {
	parts := separators.Split(raw, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Input is what the user provides for one submission.
type Input struct {
	TeamText string
	SeasonID string
	Fields   []string
}

// Prepare validates in and builds the create-job body.
func Prepare(in Input) (api.RunRequest, error) {
	ids := ParseTeamIDs(in.TeamText)
	if len(ids) == 0 {
		return api.RunRequest{}, &ValidationError{Message: "no club ids"}
	}
	req := api.RunRequest{
		TeamIDs: ids,
		Fields:  append([]string{}, in.Fields...),
	}
	if season := strings.TrimSpace(in.SeasonID); season != "" {
		req.SeasonID = &season
	}
	return req, nil
}

// Creator issues the create-job request; *api.Client satisfies it.
type Creator interface {
	CreateJob(ctx context.Context, body api.RunRequest) (string, error)
}

// Gateway turns validated input into a server job id.
type Gateway struct {
	creator Creator
	logger  *zap.Logger
}

// NewGateway wires a creator and logger.
func NewGateway(creator Creator, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{creator: creator, logger: logger}
}

// Send issues exactly one create-job request. Every failure is a *SubmissionError.
func (g *Gateway) Send(ctx context.Context, req api.RunRequest) (string, error) {
	jobID, err := g.creator.CreateJob(ctx, req)
	if err == nil {
		g.logger.Info("job submitted", zap.String("job_id", jobID), zap.Int("teams", len(req.TeamIDs)))
		return jobID, nil
	}
	subErr := &SubmissionError{Message: GenericFailureMessage, Cause: err}
	var statusErr *api.StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Detail != "" {
			subErr.Message = statusErr.Detail
		}
	case errors.Is(err, api.ErrInvalidResponse):
		subErr.Message = api.ErrInvalidResponse.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		subErr.Message = GenericFailureMessage + ": " + err.Error()
	default:
		subErr.Message = GenericFailureMessage + ": server unreachable"
	}
	g.logger.Warn("job submission failed", zap.String("reason", subErr.Message), zap.Error(err))
	return "", subErr
}

// Submit validates in and sends it.
func (g *Gateway) Submit(ctx context.Context, in Input) (string, error) {
	req, err := Prepare(in)
	if err != nil {
		return "", err
	}
	return g.Send(ctx, req)
}
