package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/catalog"
	"github.com/JakeFAU/rosterctl/internal/job"
	"github.com/JakeFAU/rosterctl/internal/present"
	"github.com/JakeFAU/rosterctl/internal/selection"
	"github.com/JakeFAU/rosterctl/internal/stream"
	"github.com/JakeFAU/rosterctl/internal/submit"
)

type runOptions struct {
	teams     string
	teamsFile string
	season    string
	fields    []string
	allFields bool
	quiet     bool
	logs      bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit an export job and follow it to the end",
		Long: `Submits one export job for the given club ids and follows its event
stream. Progress lines go to stderr as they arrive; the final result is
written to stdout. Interrupting the command closes the stream; the job
keeps running on the server and can be checked with "rosterctl status".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRunCommand(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.teams, "teams", "", "club ids separated by commas or newlines")
	flags.StringVar(&opts.teamsFile, "teams-file", "", "read club ids from a file, - for stdin")
	flags.StringVar(&opts.season, "season", "", "season id, e.g. 2023 (server default when empty)")
	flags.StringSliceVar(&opts.fields, "field", nil, "column id to toggle on; repeatable (default selection when omitted)")
	flags.BoolVar(&opts.allFields, "all-fields", false, "select every column in the catalog")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "do not echo progress lines")
	flags.BoolVar(&opts.logs, "logs", false, "include the job log in the final text output")
	return cmd
}

func runRunCommand(cmd *cobra.Command, opts *runOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	teamText, err := readTeams(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}

	cat, catErr := a.Catalog(cmd.Context())
	if catErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: field catalog unavailable (%v); continuing with the explicit selection only\n", catErr)
	}
	sel := buildSelection(cat, opts)

	renderOpts, err := renderOptions(cmd, a)
	if err != nil {
		return err
	}
	renderOpts.Logs = opts.logs

	var observer stream.Observer
	if !opts.quiet {
		stderr := cmd.ErrOrStderr()
		observer = func(u stream.Update) {
			if u.Line != "" {
				fmt.Fprintln(stderr, u.Line)
			}
		}
	}
	sess := a.NewSession(observer)
	defer sess.Close()

	ctx := cmd.Context()
	jobID, err := sess.Start(ctx, submit.Input{TeamText: teamText, SeasonID: opts.season, Fields: sel.IDs()})
	var lost *stream.ConnectionLostError
	if err != nil && !errors.As(err, &lost) {
		return renderFailure(cmd, a.Client().BaseURL(), sess.State().Snapshot(), cat, renderOpts, err)
	}
	a.Logger().Info("job started", zap.String("job_id", jobID))

	stop := context.AfterFunc(ctx, sess.Close)
	defer stop()
	snap, waitErr := sess.Wait(context.WithoutCancel(ctx))
	if ctx.Err() != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "interrupted; job %s continues on the server\n", jobID)
		return ctx.Err()
	}
	return renderFailure(cmd, a.Client().BaseURL(), snap, cat, renderOpts, waitErr)
}

// renderFailure renders snap and passes err through, so failed jobs still
// print what is known about them.
func renderFailure(cmd *cobra.Command, base string, snap job.Job, cat catalog.Catalog, opts present.Options, err error) error {
	var vErr *submit.ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	if rerr := present.Render(cmd.OutOrStdout(), present.Build(snap, cat, base), opts); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

func buildSelection(cat catalog.Catalog, opts *runOptions) *selection.Set {
	sel := selection.New(cat)
	switch {
	case opts.allFields:
		sel.SelectAll()
	case len(opts.fields) > 0:
		for _, id := range opts.fields {
			if id = strings.TrimSpace(id); id != "" && !sel.Has(id) {
				sel.Toggle(id)
			}
		}
	default:
		sel.SelectDefault()
	}
	return sel
}

func readTeams(stdin io.Reader, opts *runOptions) (string, error) {
	if opts.teamsFile == "" {
		return opts.teams, nil
	}
	var r io.Reader = stdin
	if opts.teamsFile != "-" {
		// #nosec G304 -- the path is supplied by the operator on the command line.
		f, err := os.Open(opts.teamsFile)
		if err != nil {
			return "", fmt.Errorf("open teams file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var b strings.Builder
	b.WriteString(opts.teams)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		b.WriteByte('\n')
		b.WriteString(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read teams: %w", err)
	}
	return b.String(), nil
}
