package workbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()

	f := xlsx.NewFile()
	clubs, err := f.AddSheet("Club A")
	require.NoError(t, err)
	for _, values := range [][]string{
		{"Name", "Position", "Age"},
		{"Player One", "Goalkeeper", "31"},
		{"Player Two", "Centre-Back", "24"},
	} {
		row := clubs.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	_, err = f.AddSheet("Empty")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "team_list.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t)
	sum, err := Summarize(path)
	require.NoError(t, err)
	require.Equal(t, path, sum.Path)
	require.Len(t, sum.Sheets, 2)

	club := sum.Sheets[0]
	require.Equal(t, "Club A", club.Name)
	require.Equal(t, 3, club.Rows)
	require.Equal(t, 3, club.Cols)
	require.Equal(t, 2, club.DataRows())
	require.Equal(t, []string{"Name", "Position", "Age"}, club.Header)

	empty := sum.Sheets[1]
	require.Equal(t, "Empty", empty.Name)
	require.Zero(t, empty.DataRows())
	require.Empty(t, empty.Header)
}

func TestSummarizeRejectsNonWorkbook(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("club_id\n6251\n"), 0o600))
	_, err := Summarize(path)
	require.Error(t, err)
}
