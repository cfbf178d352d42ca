package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/rosterctl/internal/api"
	"github.com/JakeFAU/rosterctl/internal/present"
)

func newStatusCmd() *cobra.Command {
	var logs bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a one-shot snapshot of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := a.Client().GetJob(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, api.ErrNotFound) {
					return fmt.Errorf("job %s not found", args[0])
				}
				return err
			}
			cat, _ := a.Catalog(cmd.Context())
			opts, err := renderOptions(cmd, a)
			if err != nil {
				return err
			}
			opts.Logs = logs
			j := present.FromSnapshot(snap, a.Location())
			return present.Render(cmd.OutOrStdout(), present.Build(j, cat, a.Client().BaseURL()), opts)
		},
	}
	cmd.Flags().BoolVar(&logs, "logs", false, "include the job log in text output")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the workflow service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			status, err := a.Client().Health(cmd.Context())
			if err != nil {
				if api.IsStatus(err, http.StatusServiceUnavailable) {
					return fmt.Errorf("%s is unavailable: %w", a.Client().BaseURL(), err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.Client().BaseURL(), status)
			if status != "ok" {
				return fmt.Errorf("service reported %q", status)
			}
			return nil
		},
	}
}
