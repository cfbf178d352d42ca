package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/rosterctl/internal/history"
	"github.com/JakeFAU/rosterctl/internal/present"
)

type historyOptions struct {
	status string
	limit  int
	offset int
}

// runRecord is the rendered form of a history row.
type runRecord struct {
	JobID      string     `json:"job_id" yaml:"job_id"`
	SessionID  string     `json:"session_id" yaml:"session_id"`
	Status     string     `json:"status" yaml:"status"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
}

func newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history [job-id]",
		Short: "List recorded export runs",
		Long: `Lists the runs this client recorded in the history database, newest
first. With a job id, shows that single run. Requires history.dsn.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryCommand(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.status, "status", "", "filter by status: running, completed, failed, lost")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "runs to skip")
	return cmd
}

func runHistoryCommand(cmd *cobra.Command, args []string, opts *historyOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	repo, ok := a.History()
	if !ok {
		return errors.New("run history is not configured; set history.dsn or ROSTER_HISTORY_DSN")
	}

	var runs []history.Run
	if len(args) == 1 {
		run, err := repo.GetRun(cmd.Context(), args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no recorded run for job %s", args[0])
		}
		if err != nil {
			return err
		}
		runs = []history.Run{run}
	} else {
		if opts.limit <= 0 {
			return errors.New("--limit must be > 0")
		}
		var filter *history.RunStatus
		if opts.status != "" {
			status, err := history.ParseRunStatus(opts.status)
			if err != nil {
				return err
			}
			filter = &status
		}
		runs, err = repo.ListRuns(cmd.Context(), filter, opts.limit, opts.offset)
		if err != nil {
			return err
		}
	}

	format, err := present.ParseFormat(a.Config().Output.Format)
	if err != nil {
		return err
	}
	records := make([]runRecord, 0, len(runs))
	for _, r := range runs {
		rec := runRecord{JobID: r.JobID, SessionID: r.SessionID, Status: string(r.Status), StartedAt: r.StartedAt, FinishedAt: r.FinishedAt}
		if r.ErrorMessage != nil {
			rec.Error = *r.ErrorMessage
		}
		records = append(records, rec)
	}
	out := cmd.OutOrStdout()
	switch format {
	case present.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case present.FormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(records)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSTATUS\tSTARTED\tDURATION\tERROR")
	for i, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.Duration().Round(time.Second).String()
		}
		started := r.StartedAt.In(a.Location()).Format(time.DateTime)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.JobID, r.Status, started, dur, records[i].Error)
	}
	return tw.Flush()
}
