package app_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/api/apitest"
	"github.com/JakeFAU/rosterctl/internal/app"
	"github.com/JakeFAU/rosterctl/internal/archive/local"
	"github.com/JakeFAU/rosterctl/internal/config"
	"github.com/JakeFAU/rosterctl/internal/history"
	"github.com/JakeFAU/rosterctl/internal/job"
	"github.com/JakeFAU/rosterctl/internal/progress/sinks"
	"github.com/JakeFAU/rosterctl/internal/publisher"
	"github.com/JakeFAU/rosterctl/internal/publisher/memory"
	"github.com/JakeFAU/rosterctl/internal/submit"
)

// MockRepository mocks history.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) RecordStart(ctx context.Context, jobID, sessionID string, startedAt time.Time) error {
	return m.Called(ctx, jobID, sessionID, startedAt).Error(0)
}

func (m *MockRepository) RecordFinish(ctx context.Context, jobID string, finishedAt time.Time, status history.RunStatus, errMsg *string) error {
	return m.Called(ctx, jobID, finishedAt, status, errMsg).Error(0)
}

func (m *MockRepository) GetRun(ctx context.Context, jobID string) (history.Run, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(history.Run), args.Error(1)
}

func (m *MockRepository) ListRuns(ctx context.Context, status *history.RunStatus, limit, offset int) ([]history.Run, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]history.Run), args.Error(1)
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	cfg.API.BaseURL = baseURL
	cfg.Archive.Dir = t.TempDir()
	cfg.Progress.MaxBatchWaitMS = 10
	return cfg
}

func TestNewWiresSessionIntoSinks(t *testing.T) {
	srv := apitest.New(t)
	srv.Script(false,
		apitest.Frame(`{"type":"status","status":"running"}`),
		apitest.Frame(`{"type":"result","status":"completed","data":{"teams":[],"workbook":"exports/team_list.xlsx"}}`),
	)

	repo := &MockRepository{}
	pub := memory.New()
	cfg := testConfig(t, srv.URL)
	cfg.Metrics.Addr = "127.0.0.1:0"

	a, err := app.New(context.Background(), cfg, zap.NewNop(), app.WithHistory(repo), app.WithPublisher(pub))
	require.NoError(t, err)

	repo.On("RecordStart", mock.Anything, "job0001", a.SessionID(), mock.AnythingOfType("time.Time")).Return(nil).Once()
	repo.On("RecordFinish", mock.Anything, "job0001", mock.AnythingOfType("time.Time"), history.RunCompleted, (*string)(nil)).Return(nil).Once()

	s := a.NewSession(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := s.Run(ctx, submit.Input{TeamText: "6251"})
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, snap.Status)
	assert.Equal(t, a.SessionID(), srv.RunHeaders()[0].Get("X-Session-ID"))

	metricsURL := "http://" + a.MetricsAddr() + "/metrics"
	resp, err := http.Get(metricsURL) //nolint:noctx // test helper
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), "rosterctl_http_requests_total")

	a.Close()
	repo.AssertExpectations(t)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, sinks.RunFinishedTopic, msgs[0].Topic)
	finished, ok := msgs[0].Payload.(publisher.RunFinished)
	require.True(t, ok)
	assert.Equal(t, "job0001", finished.JobID)
	assert.Equal(t, "completed", finished.Outcome)
}

func TestCatalogFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t)
	srv.SetFields(apitest.DefaultFields(), http.StatusServiceUnavailable)
	a, err := app.New(context.Background(), testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	cat, err := a.Catalog(context.Background())
	require.Error(t, err)
	assert.True(t, cat.Empty())
	_, ok := a.History()
	assert.False(t, ok)
}

func TestArchiveDefaultsToLocalDir(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t)
	a, err := app.New(context.Background(), testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	store, err := a.Archive(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &local.Store{}, store)
	again, err := a.Archive(context.Background())
	require.NoError(t, err)
	assert.Same(t, store, again)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "ftp://example.com")
	_, err := app.New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
