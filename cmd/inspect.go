package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/rosterctl/internal/present"
	"github.com/JakeFAU/rosterctl/internal/workbook"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <workbook.xlsx>",
		Short: "Summarize a downloaded export workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts, err := renderOptions(cmd, a)
			if err != nil {
				return err
			}
			sum, err := workbook.Summarize(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch opts.Format {
			case present.FormatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			case present.FormatYAML:
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(sum)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SHEET\tROWS\tCOLUMNS")
			for _, s := range sum.Sheets {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Name, s.DataRows(), s.Cols)
			}
			return tw.Flush()
		},
	}
}
