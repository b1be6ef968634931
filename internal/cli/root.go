// Package cli implements the dashboard command line: the web server plus
// export, widget listing, research validation and seeding commands.
package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-dashboard"
	"github.com/goliatone/go-dashboard/config"
	"github.com/goliatone/go-dashboard/internal/persistence"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// App holds what every command shares once the configuration is loaded.
type App struct {
	cfgFile  string
	envFiles []string
	noColor  bool
	version  string

	cfg    *config.Config
	logger *glog.BaseLogger
	out    io.Writer
	errOut io.Writer
}

// Execute runs the root command with os.Args.
func Execute(version string) error {
	return NewRootCommand(version).Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	app := &App{version: version, out: os.Stdout, errOut: os.Stderr}

	root := &cobra.Command{
		Use:   "dashboard",
		Short: "Authenticated widget dashboard",
		Long: `dashboard serves the authenticated widget host page and ships the
tools around it.

Example usage:
  dashboard serve                         # Start the web server
  dashboard seed --truncate               # Load fixture users and profiles
  dashboard widgets                       # List registered widgets
  dashboard validate                      # Check research completeness
  dashboard export --user ana --format md # Export a user's report`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app.out = cmd.OutOrStdout()
			app.errOut = cmd.ErrOrStderr()
			return app.init()
		},
	}

	root.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is ./dashboard.yaml)")
	root.PersistentFlags().StringSliceVar(&app.envFiles, "env-file", nil, "dotenv files to load (default is .env)")
	root.PersistentFlags().BoolVar(&app.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newServeCommand(app),
		newExportCommand(app),
		newWidgetsCommand(app),
		newValidateCommand(app),
		newSeedCommand(app),
	)

	return root
}

func (a *App) init() error {
	cfg, err := config.Load(a.cfgFile, a.envFiles...)
	if err != nil {
		return err
	}
	a.cfg = cfg

	switch strings.ToLower(cfg.Logging.Level) {
	case "trace", "debug":
		a.logger = glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName(cfg.App.Name),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	default:
		a.logger = glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithName(cfg.App.Name),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}

	return nil
}

// Logger returns a named child logger.
func (a *App) Logger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) connect(ctx context.Context) (*bun.DB, error) {
	db, err := persistence.Open(ctx, a.cfg.Persistence, a.Logger("persistence"))
	if err != nil {
		return nil, err
	}

	if err := persistence.CreateTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// openDatabase connects, creates missing tables and seeds fixtures when the
// configuration asks for it.
func (a *App) openDatabase(ctx context.Context) (*bun.DB, error) {
	db, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}

	if a.cfg.Persistence.Seed {
		if _, err := a.seed(ctx, db, false); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

func (a *App) seed(ctx context.Context, db *bun.DB, truncate bool) (persistence.SeedReport, error) {
	opts := []persistence.SeedOption{persistence.WithSeedLogger(a.Logger("seed"))}
	if truncate {
		opts = append(opts, persistence.WithTruncate())
	}
	return persistence.Seed(ctx, db, dashboard.GetFixturesFS(), opts...)
}

func (a *App) printer() *Printer {
	return NewPrinter(a.out, a.errOut, !a.noColor)
}
