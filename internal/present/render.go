package present

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/rosterctl/internal/job"
)

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Options controls rendering.
type Options struct {
	Format Format
	// Color enables ANSI colors for the status badge in text output.
	Color bool
	// Logs includes the job log in text output.
	Logs bool
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// Badge renders the status, colored when color is set.
func Badge(status job.Status, color bool) string {
	label := "[" + string(status) + "]"
	if !color {
		return label
	}
	switch status {
	case job.StatusCompleted:
		return ansiGreen + label + ansiReset
	case job.StatusFailed:
		return ansiRed + label + ansiReset
	default:
		return ansiYellow + label + ansiReset
	}
}

// Render writes v to w.
func Render(w io.Writer, v View, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, v, opts)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

func renderText(w io.Writer, v View, opts Options) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	id := v.JobID
	if id == "" {
		id = "-"
	}
	fmt.Fprintf(tw, "Job %s %s\n", id, Badge(v.Status, opts.Color))
	if v.Error != "" {
		if v.Failure == job.FailureConnection {
			fmt.Fprintf(tw, "Error: %s (the job may still be running on the server)\n", v.Error)
		} else {
			fmt.Fprintf(tw, "Error: %s\n", v.Error)
		}
	}
	if len(v.Teams) > 0 {
		fmt.Fprintf(tw, "Teams (%d):\n", len(v.Teams))
		for _, t := range v.Teams {
			fmt.Fprintf(tw, "  %s\t%s\n", t.ClubID, t.ClubName)
		}
	}
	if len(v.Fields) > 0 {
		labels := make([]string, 0, len(v.Fields))
		for _, f := range v.Fields {
			labels = append(labels, f.Label)
		}
		fmt.Fprintf(tw, "Fields: %s\n", strings.Join(labels, ", "))
	}
	if len(v.Files) > 0 {
		fmt.Fprintln(tw, "Files:")
		for _, f := range v.Files {
			fmt.Fprintf(tw, "  %s\t%s\n", f.Name, f.URL)
		}
	}
	if opts.Logs && len(v.Logs) > 0 {
		fmt.Fprintln(tw, "Log:")
		for _, line := range v.Logs {
			fmt.Fprintf(tw, "  %s\n", line)
		}
	}
	return tw.Flush()
}
