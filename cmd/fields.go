package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/rosterctl/internal/catalog"
	"github.com/JakeFAU/rosterctl/internal/present"
)

func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the exportable columns",
		Args:  cobra.NoArgs,
		RunE:  runFieldsCommand,
	}
}

func runFieldsCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cat, err := a.Catalog(cmd.Context())
	if err != nil {
		return fmt.Errorf("load field catalog: %w", err)
	}
	opts, err := renderOptions(cmd, a)
	if err != nil {
		return err
	}
	return writeCatalog(cmd, cat, opts.Format)
}

func writeCatalog(cmd *cobra.Command, cat catalog.Catalog, format present.Format) error {
	out := cmd.OutOrStdout()
	switch format {
	case present.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cat)
	case present.FormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(cat)
	}
	defaults := make(map[string]bool, len(cat.Default))
	for _, id := range cat.Default {
		defaults[id] = true
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tDEFAULT")
	for _, f := range cat.Fields {
		mark := ""
		if defaults[f.ID] {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.ID, f.Label, mark)
	}
	return tw.Flush()
}
