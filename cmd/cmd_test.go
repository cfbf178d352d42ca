package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"github.com/JakeFAU/rosterctl/internal/api"
	"github.com/JakeFAU/rosterctl/internal/api/apitest"
	"github.com/JakeFAU/rosterctl/internal/app"
	"github.com/JakeFAU/rosterctl/internal/archive/local"
	"github.com/JakeFAU/rosterctl/internal/history"
	"github.com/JakeFAU/rosterctl/internal/job"
	"github.com/JakeFAU/rosterctl/internal/present"
	"github.com/JakeFAU/rosterctl/internal/stream"
	"github.com/JakeFAU/rosterctl/internal/submit"
)

const resultFrame = `{"type":"result","status":"completed","data":{"teams":[{"club_id":"6251","club_name":"Club A"}],` +
	`"club_ids_csv":"club_ids.csv","generated_csvs":[],"augmented_csvs":[],"workbook":"exports/team list.xlsx",` +
	`"selected_fields":["name","shirt"]}}`

func runCLI(t *testing.T, srv *apitest.Server, args []string, opts ...app.Option) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	full := append([]string{"--base-url", srv.URL, "--log-level", "error", "--no-color"}, args...)
	opts = append([]app.Option{app.WithArchive(mustLocalStore(t))}, opts...)
	err := execute(ctx, full, &stdout, &stderr, opts...)
	return stdout.String(), stderr.String(), err
}

func mustLocalStore(t *testing.T) *local.Store {
	t.Helper()
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestRunCommandHappyPath(t *testing.T) {
	srv := apitest.New(t)
	srv.Script(false,
		apitest.Frame(`{"type":"status","status":"running"}`),
		apitest.Frame(`{"type":"log","message":"Scraping club 6251","timestamp":"2024-05-01T12:34:56"}`),
		apitest.Frame(resultFrame),
	)

	stdout, stderr, err := runCLI(t, srv, []string{"run", "--teams", "6251, ,", "--field", "name", "--field", "shirt", "-o", "json"})
	require.NoError(t, err)
	require.Contains(t, stderr, "Scraping club 6251")

	var view present.View
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	require.Equal(t, "job0001", view.JobID)
	require.Equal(t, job.StatusCompleted, view.Status)
	require.Equal(t, "Name", view.Fields[0].Label)
	require.Equal(t, srv.URL+"/download?path=exports%2Fteam%20list.xlsx", view.Files[0].URL)

	runs := srv.Runs()
	require.Len(t, runs, 1)
	require.Equal(t, []string{"6251"}, runs[0].TeamIDs)
	require.Nil(t, runs[0].SeasonID)
	require.Equal(t, []string{"name", "shirt"}, runs[0].Fields)
}

func TestRunCommandDefaultSelectionAndTeamsFile(t *testing.T) {
	srv := apitest.New(t)
	srv.Script(false, apitest.Frame(resultFrame))
	teams := filepath.Join(t.TempDir(), "teams.txt")
	require.NoError(t, os.WriteFile(teams, []byte("6251\n\n27\r\n"), 0o600))

	_, _, err := runCLI(t, srv, []string{"run", "--teams-file", teams, "--season", "2023", "-q"})
	require.NoError(t, err)

	runs := srv.Runs()
	require.Len(t, runs, 1)
	require.Equal(t, []string{"6251", "27"}, runs[0].TeamIDs)
	require.Equal(t, "2023", *runs[0].SeasonID)
	require.Equal(t, []string{"name", "position", "age"}, runs[0].Fields)
}

func TestRunCommandJobFailure(t *testing.T) {
	srv := apitest.New(t)
	srv.Script(false,
		apitest.Frame(`{"type":"status","status":"failed"}`),
		apitest.Frame(`{"type":"error","error":"scrape failed"}`),
	)

	stdout, _, err := runCLI(t, srv, []string{"run", "--teams", "6251"})
	var jobErr *stream.JobError
	require.ErrorAs(t, err, &jobErr)
	require.Contains(t, stdout, "Job job0001 [failed]")
	require.Contains(t, stdout, "Error: scrape failed")
}

func TestRunCommandRejectsEmptyTeams(t *testing.T) {
	srv := apitest.New(t)

	stdout, _, err := runCLI(t, srv, []string{"run", "--teams", " ,\n"})
	var vErr *submit.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Empty(t, stdout)
	require.Empty(t, srv.Runs())
}

func TestStatusCommand(t *testing.T) {
	srv := apitest.New(t)
	srv.PutSnapshot(api.JobSnapshot{
		ID:     "abc",
		Status: "completed",
		Logs:   []api.LogRecord{{Type: "log", Message: "done", Timestamp: "2024-05-01T12:00:00"}},
		Result: &job.Result{Workbook: "exports/team_list.xlsx"},
	})

	stdout, _, err := runCLI(t, srv, []string{"status", "abc"})
	require.NoError(t, err)
	require.Contains(t, stdout, "Job abc [completed]")
	require.Contains(t, stdout, "/download?path=exports%2Fteam_list.xlsx")

	_, _, err = runCLI(t, srv, []string{"status", "missing"})
	require.ErrorContains(t, err, "job missing not found")
}

func TestDownloadCommand(t *testing.T) {
	srv := apitest.New(t)
	srv.PutSnapshot(api.JobSnapshot{
		ID:     "abc",
		Status: "completed",
		Result: &job.Result{Workbook: "exports/team list.xlsx", ClubIDsCSV: "club_ids.csv"},
	})
	srv.PutFile("exports/team list.xlsx", []byte("xlsx"))
	srv.PutFile("club_ids.csv", []byte("club_id\n6251\n"))

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	stdout, _, err := runCLI(t, srv, []string{"download", "abc"}, app.WithArchive(store))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "exports/team list.xlsx"))

	got, err := os.ReadFile(filepath.Join(dir, "abc", "club_ids.csv"))
	require.NoError(t, err)
	require.Equal(t, "club_id\n6251\n", string(got))
	got, err = os.ReadFile(filepath.Join(dir, "abc", "exports", "team list.xlsx"))
	require.NoError(t, err)
	require.Equal(t, "xlsx", string(got))
}

func TestDownloadCommandFailsOnMissingFile(t *testing.T) {
	srv := apitest.New(t)
	_, _, err := runCLI(t, srv, []string{"download", "abc", "--path", "nope.csv"})
	require.ErrorContains(t, err, "download nope.csv")

	_, _, err = runCLI(t, srv, []string{"download", "abc"})
	require.Error(t, err)
}

func TestFieldsCommand(t *testing.T) {
	srv := apitest.New(t)

	stdout, _, err := runCLI(t, srv, []string{"fields"})
	require.NoError(t, err)
	require.Contains(t, stdout, "ID")
	require.Contains(t, stdout, "market_value")
	require.Contains(t, stdout, "Market value")
}

func TestHealthCommand(t *testing.T) {
	srv := apitest.New(t)

	stdout, _, err := runCLI(t, srv, []string{"health"})
	require.NoError(t, err)
	require.Equal(t, srv.URL+" ok\n", stdout)
}

type fakeHistory struct {
	runs []history.Run
}

func (f *fakeHistory) RecordStart(context.Context, string, string, time.Time) error { return nil }

func (f *fakeHistory) RecordFinish(context.Context, string, time.Time, history.RunStatus, *string) error {
	return nil
}

func (f *fakeHistory) GetRun(_ context.Context, jobID string) (history.Run, error) {
	for _, r := range f.runs {
		if r.JobID == jobID {
			return r, nil
		}
	}
	return history.Run{}, history.ErrNotFound
}

func (f *fakeHistory) ListRuns(_ context.Context, status *history.RunStatus, limit, offset int) ([]history.Run, error) {
	var out []history.Run
	for _, r := range f.runs {
		if status == nil || r.Status == *status {
			out = append(out, r)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestHistoryCommand(t *testing.T) {
	srv := apitest.New(t)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	msg := "connection lost"
	repo := &fakeHistory{runs: []history.Run{
		{JobID: "b", Status: history.RunLost, StartedAt: started, FinishedAt: &finished, ErrorMessage: &msg},
		{JobID: "a", Status: history.RunCompleted, StartedAt: started, FinishedAt: &finished},
	}}

	stdout, _, err := runCLI(t, srv, []string{"history", "--status", "lost", "-o", "json"}, app.WithHistory(repo))
	require.NoError(t, err)
	var records []runRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	require.Equal(t, "b", records[0].JobID)
	require.Equal(t, "connection lost", records[0].Error)

	stdout, _, err = runCLI(t, srv, []string{"history", "a"}, app.WithHistory(repo))
	require.NoError(t, err)
	require.Contains(t, stdout, "1m30s")

	_, _, err = runCLI(t, srv, []string{"history", "--status", "weird"}, app.WithHistory(repo))
	require.Error(t, err)

	_, _, err = runCLI(t, srv, []string{"history"})
	require.ErrorContains(t, err, "not configured")
}

func TestInspectCommand(t *testing.T) {
	srv := apitest.New(t)
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Club A")
	require.NoError(t, err)
	for _, v := range []string{"Name", "Player One", "Player Two"} {
		sheet.AddRow().AddCell().SetString(v)
	}
	path := filepath.Join(t.TempDir(), "team_list.xlsx")
	require.NoError(t, f.Save(path))

	stdout, _, err := runCLI(t, srv, []string{"inspect", path})
	require.NoError(t, err)
	require.Contains(t, stdout, "SHEET")
	require.Contains(t, stdout, "Club A")
}
