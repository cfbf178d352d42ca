// Package cmd defines and implements the rosterctl commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/JakeFAU/rosterctl/internal/app"
	"github.com/JakeFAU/rosterctl/internal/config"
	"github.com/JakeFAU/rosterctl/internal/logging"
	"github.com/JakeFAU/rosterctl/internal/present"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// cli carries state shared by the root command and its subcommands.
type cli struct {
	v       *viper.Viper
	cfgFile string
	noColor bool
	appOpts []app.Option

	app    *app.App
	logger *zap.Logger
}

// newRootCmd creates the root command. opts are forwarded to app.New.
func newRootCmd(opts ...app.Option) (*cobra.Command, *cli) {
	c := &cli{v: config.New(), appOpts: opts}
	cmd := &cobra.Command{
		Use:   "rosterctl",
		Short: "Submit and follow roster export jobs.",
		Long: `rosterctl talks to the roster-export workflow service. It submits export
jobs, follows their event stream until they finish, and fetches the
generated workbook and CSV files.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.teardown()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (yaml)")
	flags.String("base-url", "", "workflow service root, e.g. http://localhost:8000")
	flags.StringP("output", "o", "", "output format: text, json or yaml")
	flags.String("metrics-addr", "", "serve /metrics on this address while the command runs")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&c.noColor, "no-color", false, "disable colored status badges")
	bind := map[string]string{
		"api.base_url":  "base-url",
		"output.format": "output",
		"metrics.addr":  "metrics-addr",
		"logging.level": "log-level",
	}
	for key, name := range bind {
		_ = c.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(
		newFieldsCmd(),
		newRunCmd(),
		newStatusCmd(),
		newDownloadCmd(),
		newInspectCmd(),
		newHistoryCmd(),
		newHealthCmd(),
	)
	return cmd, c
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	c.logger = logger

	appInstance, err := app.New(cmd.Context(), cfg, logger, c.appOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	c.app = appInstance
	cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
	return nil
}

// teardown is safe to call more than once; cobra skips post-run hooks when a
// command fails, so Execute calls it as well.
func (c *cli) teardown() {
	if c.app != nil {
		c.app.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// resolveApp retrieves the App placed in the context by PersistentPreRunE.
func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}

// renderOptions resolves the output format and whether to color badges.
func renderOptions(cmd *cobra.Command, a *app.App) (present.Options, error) {
	format, err := present.ParseFormat(a.Config().Output.Format)
	if err != nil {
		return present.Options{}, err
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	return present.Options{Format: format, Color: useColor(cmd.OutOrStdout(), noColor)}, nil
}

func useColor(w io.Writer, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...app.Option) error {
	root, c := newRootCmd(opts...)
	defer c.teardown()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// Execute is the main entry point.
func Execute() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}
