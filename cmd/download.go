package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/rosterctl/internal/app"
	"github.com/JakeFAU/rosterctl/internal/archive"
	"github.com/JakeFAU/rosterctl/internal/job"
	"github.com/JakeFAU/rosterctl/internal/present"
)

type downloadOptions struct {
	paths  []string
	prefix string
}

func newDownloadCmd() *cobra.Command {
	opts := &downloadOptions{}
	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Fetch the files a completed job produced",
		Long: `Downloads every file listed in the job's result (workbook first) and
stores it in the configured archive: a local directory by default, or a
GCS bucket when archive.gcs_bucket is set. --path downloads specific
server paths instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownloadCommand(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.paths, "path", nil, "server data path to download; repeatable")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "object prefix inside the archive (default archive.prefix)")
	return cmd
}

type downloaded struct {
	path string
	uri  string
}

func runDownloadCommand(cmd *cobra.Command, jobID string, opts *downloadOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	paths := opts.paths
	if len(paths) == 0 {
		snap, err := a.Client().GetJob(cmd.Context(), jobID)
		if err != nil {
			return fmt.Errorf("load job %s: %w", jobID, err)
		}
		if job.Status(snap.Status) != job.StatusCompleted || snap.Result == nil {
			return fmt.Errorf("job %s has no result (status %s)", jobID, snap.Status)
		}
		paths = snap.Result.Files()
	}
	if len(paths) == 0 {
		return fmt.Errorf("job %s produced no files", jobID)
	}
	store, err := a.Archive(cmd.Context())
	if err != nil {
		return err
	}
	prefix := opts.prefix
	if prefix == "" {
		prefix = a.Config().Archive.Prefix
	}

	results, err := downloadAll(cmd.Context(), a, store, prefix, jobID, paths)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\n", r.path, r.uri)
	}
	return tw.Flush()
}

// downloadAll fetches paths with bounded concurrency. Results keep the input order.
func downloadAll(ctx context.Context, a *app.App, store archive.Store, prefix, jobID string, paths []string) ([]downloaded, error) {
	results := make([]downloaded, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config().Download.Concurrency)
	for i, p := range paths {
		g.Go(func() error {
			uri, err := fetchOne(ctx, a, store, archive.ObjectName(prefix, jobID, p), p)
			if err != nil {
				return fmt.Errorf("download %s: %w", p, err)
			}
			results[i] = downloaded{path: p, uri: uri}
			a.Logger().Debug("file archived", zap.String("job_id", jobID), zap.String("path", p), zap.String("uri", uri))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func fetchOne(ctx context.Context, a *app.App, store archive.Store, name, path string) (string, error) {
	body, contentType, err := a.Client().Download(ctx, present.DownloadURL(a.Client().BaseURL(), path))
	if err != nil {
		return "", err
	}
	defer body.Close()
	return store.Put(ctx, name, contentType, body)
}
