// Package cli implements the todo command line tool.
package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"todo-cli/app"
	"todo-cli/config"
	"todo-cli/logging"
	"todo-cli/paths"
	"todo-cli/store"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// RootOptions holds global flags and what PersistentPreRunE derives from them.
type RootOptions struct {
	DB          string
	ConfigPath  string
	Verbose     bool
	Format      string
	Plain       bool
	LockTimeout time.Duration

	// Now is the clock used for timestamps and due date parsing.
	Now func() time.Time

	logger     *log.Logger
	cfg        config.Config
	resolution paths.Resolution
	timeout    time.Duration
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Now: time.Now})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "A tiny local TODO list",
		Long: `A tiny local TODO list kept in a JSON file.

The database is chosen by, in order: --db, TODO_DB, db_path in config.json,
then ~/Documents/todo-cli/todos.json (or ~/.todo-cli/todos.json).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &ExitError{Code: ExitCommandError, Message: "invalid usage", Err: err}
	})

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database JSON path (overrides env and config)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+paths.ConfigPath()+")")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVar(&opts.Plain, "plain", false, "plain text instead of a table")
	cmd.PersistentFlags().DurationVar(&opts.LockTimeout, "lock-timeout", 0, "how long to wait for another process (default 10s)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewPathCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDoneCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewPriorityCommand(opts))
	cmd.AddCommand(NewDueCommand(opts))
	cmd.AddCommand(NewTagCommand(opts))
	cmd.AddCommand(NewClearDoneCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))
	cmd.AddCommand(NewPanelCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.ConfigPath == "" {
		o.ConfigPath = paths.ConfigPath()
	}

	o.logger = logging.New(cmd.ErrOrStderr(), logging.DefaultOptions())
	cfg, err := config.Load(o.ConfigPath, o.logger)
	if err != nil {
		return err
	}
	o.cfg = cfg

	level := logging.ParseLevel(cfg.LogLevel, log.WarnLevel)
	if o.Verbose {
		level = log.DebugLevel
	}
	o.logger.SetLevel(level)

	o.timeout = store.DefaultLockTimeout
	if cfg.LockTimeout > 0 {
		o.timeout = cfg.LockTimeout
	}
	if cmd.Flags().Changed("lock-timeout") {
		o.timeout = o.LockTimeout
	}

	o.resolution = paths.Resolve(o.ResolutionContext())
	o.logger.Debug("resolved database", "path", o.resolution.Path, "source", o.resolution.Source)
	return nil
}

// ResolutionContext builds the path resolution inputs of the command line:
// --db, TODO_DB and db_path relative to the config file's directory.
func (o *RootOptions) ResolutionContext() paths.ResolutionContext {
	rc := paths.FromEnvironment(o.DB, o.cfg.DBPath)
	rc.Config.Base = filepath.Dir(o.ConfigPath)
	return rc
}

func (o *RootOptions) storeOptions() store.Options {
	return store.Options{LockTimeout: o.timeout, Logger: o.logger, Now: o.Now}
}

func (o *RootOptions) service() *app.Service {
	return app.NewService(o.resolution, o.storeOptions())
}

func (o *RootOptions) printer(cmd *cobra.Command) *printer {
	return newPrinter(cmd.OutOrStdout(), o.Format, o.Plain)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
