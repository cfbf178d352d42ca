package present_test

import (
	"fmt"
	"os"

	"github.com/JakeFAU/rosterctl/internal/catalog"
	"github.com/JakeFAU/rosterctl/internal/job"
	"github.com/JakeFAU/rosterctl/internal/present"
)

func ExampleDownloadURL() {
	fmt.Println(present.DownloadURL("http://localhost:8000", "a/b c.csv"))
	// Output: http://localhost:8000/download?path=a%2Fb%20c.csv
}

func ExampleRender() {
	cat := catalog.Catalog{Fields: []catalog.FieldOption{
		{ID: "name", Label: "Name"},
		{ID: "market_value", Label: "Market value"},
	}}
	j := job.Job{
		ID:     "abc123",
		Status: job.StatusCompleted,
		Result: &job.Result{
			Teams:          []job.Team{{ClubID: "6251", ClubName: "Club A"}, {ClubID: "27", ClubName: "Club B"}},
			Workbook:       "exports/team list.xlsx",
			ClubIDsCSV:     "club_ids.csv",
			SelectedFields: []string{"name", "market_value", "shirt"},
		},
	}
	v := present.Build(j, cat, "http://localhost:8000")
	if err := present.Render(os.Stdout, v, present.Options{Format: present.FormatText}); err != nil {
		fmt.Println(err)
	}
	// Output:
	// Job abc123 [completed]
	// Teams (2):
	//   6251  Club A
	//   27    Club B
	// Fields: Name, Market value, shirt
	// Files:
	//   team list.xlsx  http://localhost:8000/download?path=exports%2Fteam%20list.xlsx
	//   club_ids.csv    http://localhost:8000/download?path=club_ids.csv
}
