// Package cli provides the gvb-ingest command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/gvb-ingest/internal/app"
	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

// Version is set at build time.
var Version = "0.1.0"

// debugSampleLimit is the number of files handled with --debug.
const debugSampleLimit = 10

type rootOptions struct {
	configPath string
	debug      bool
	local      bool

	cfg      *common.Config
	log      *slog.Logger
	closeLog func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(o *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "gvb-ingest",
		Short: "Download GVB ridership files and load them into the database",
		Long: `gvb-ingest mirrors the GVB open data files into a local cache and loads
every file exactly once into the table matching its columns. Each load is
recorded in the CacheStatus job ledger.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.init()
		},
	}

	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().BoolVar(&o.debug, "debug", false, "debug logging and only the first files")
	root.PersistentFlags().BoolVar(&o.local, "local", false, "use the local database profile")

	root.AddCommand(
		newRunCmd(o),
		newDownloadCmd(o),
		newIngestCmd(o),
		newMigrateCmd(o),
		newStatusCmd(o),
		newReportCmd(o),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	o := &rootOptions{}
	return o.execute(ctx, newRootCmd(o))
}

// execute runs cmd and closes the log file afterwards. cobra skips the
// post-run hooks when a command fails, so this is done here.
func (o *rootOptions) execute(ctx context.Context, cmd *cobra.Command) error {
	defer o.close()
	return cmd.ExecuteContext(ctx)
}

func (o *rootOptions) close() {
	if o.closeLog == nil {
		return
	}
	if err := o.closeLog(); err != nil && o.log != nil {
		o.log.Warn("closing log file", "err", err)
	}
	o.closeLog = nil
}

func (o *rootOptions) init() error {
	profile := ""
	if o.local {
		profile = common.ProfileLocal
	}
	cfg, err := common.LoadConfig(o.configPath, profile)
	if err != nil {
		return err
	}
	level, err := common.ParseLevel(cfg.Log.Level)
	if err != nil {
		return common.NewAppError(common.CodeConfig, "log level", err)
	}
	if o.debug {
		level = slog.LevelDebug
	}
	o.log, o.closeLog = common.SetupLogger(cfg.Log.File, level)
	o.cfg = cfg
	return nil
}

// open builds the application; callers close it.
func (o *rootOptions) open() (*app.App, error) {
	opts := app.Options{}
	if o.debug {
		opts.SampleLimit = debugSampleLimit
	}
	a, err := app.New(o.cfg, o.log, opts)
	if err != nil {
		return nil, fmt.Errorf("startup: %w", err)
	}
	return a, nil
}

func closeApp(a *app.App, log *slog.Logger) {
	if err := a.Close(); err != nil {
		log.Warn("shutdown", "err", err)
	}
}
