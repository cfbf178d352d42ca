package job

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateLifecycleCompleted(t *testing.T) {
	t.Parallel()

	s := NewState()
	require.Equal(t, StatusIdle, s.Status())

	s.Reset()
	require.True(t, s.SetID("abc123"))
	require.True(t, s.SetStatus(StatusRunning))
	require.True(t, s.AppendLog("[10:00:00] step 1"))
	require.True(t, s.Complete(Result{Teams: []Team{{ClubID: "6251", ClubName: "Club A"}}}))

	snap := s.Snapshot()
	require.Equal(t, "abc123", snap.ID)
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, []string{"[10:00:00] step 1"}, snap.LogLines)
	require.NotNil(t, snap.Result)
	require.Empty(t, snap.Error)
	require.False(t, snap.HasError())
}

func TestStateTerminalIsSticky(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Reset()
	require.True(t, s.Fail(FailureJob, "scrape failed"))

	require.False(t, s.SetStatus(StatusRunning))
	require.False(t, s.AppendLog("late"))
	require.False(t, s.Complete(Result{}))
	require.False(t, s.Fail(FailureConnection, "connection lost"))

	snap := s.Snapshot()
	require.Equal(t, StatusFailed, snap.Status)
	require.Equal(t, "scrape failed", snap.Error)
	require.Equal(t, FailureJob, snap.Failure)
	require.Nil(t, snap.Result)
	require.Empty(t, snap.LogLines)
}

func TestStateRejectsTerminalStatusValues(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Reset()
	require.False(t, s.SetStatus(StatusCompleted))
	require.False(t, s.SetStatus(StatusFailed))
	require.False(t, s.SetStatus(""))
	require.True(t, s.SetStatus("pending"))
	require.Equal(t, Status("pending"), s.Status())
}

func TestStateStatusNeverMovesBackward(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Reset()
	require.False(t, s.SetStatus(StatusIdle))
	require.False(t, s.SetStatus(StatusStarting))
	require.True(t, s.SetStatus("pending"))
	require.True(t, s.SetStatus(StatusRunning))

	require.False(t, s.SetStatus(StatusStarting))
	require.False(t, s.SetStatus(StatusIdle))
	require.False(t, s.SetStatus("pending"))
	require.True(t, s.SetStatus(StatusRunning))
	require.Equal(t, StatusRunning, s.Status())
}

func TestStateResetDiscardsPreviousJob(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Reset()
	s.SetID("old")
	s.AppendLog("old line")
	s.Complete(Result{Workbook: "data/exports/team_list.xlsx"})

	s.Reset()
	snap := s.Snapshot()
	require.Equal(t, StatusStarting, snap.Status)
	require.Empty(t, snap.ID)
	require.Empty(t, snap.LogLines)
	require.Nil(t, snap.Result)
	require.Empty(t, snap.Error)
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Reset()
	s.AppendLog("first")
	s.Complete(Result{Teams: []Team{{ClubID: "1", ClubName: "A"}}})

	snap := s.Snapshot()
	snap.LogLines[0] = "mutated"
	snap.Result.Teams[0].ClubName = "mutated"

	again := s.Snapshot()
	require.Equal(t, "first", again.LogLines[0])
	require.Equal(t, "A", again.Result.Teams[0].ClubName)
}

func TestResultFilesDeduplicates(t *testing.T) {
	t.Parallel()

	r := Result{
		Workbook:      "data/exports/team_list.xlsx",
		ClubIDsCSV:    "data/club_ids.csv",
		GeneratedCSVs: []string{"data/clubs/6251.csv", "data/clubs/27.csv"},
		AugmentedCSVs: []string{"data/clubs/6251.csv", "data/clubs/27.csv"},
	}
	require.Equal(t, []string{
		"data/exports/team_list.xlsx",
		"data/club_ids.csv",
		"data/clubs/6251.csv",
		"data/clubs/27.csv",
	}, r.Files())
}
