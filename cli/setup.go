package cli

import (
	"github.com/spf13/cobra"

	"todo-cli/config"
	"todo-cli/paths"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath, dir string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize config and database location",
		Long: `Record the database location in config.json and create the database.

An existing db_path is kept unless --force is given.`,
		Example: `  todo init --db-path ~/Documents/mytodos/todos.json
  todo init --dir ~/Documents/mytodos
  todo init --dir ~/Documents/mytodos --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := paths.FromEnvironment("", "")
			res, err := config.Init(cmd.Context(), config.InitOptions{
				ConfigPath: rootOpts.ConfigPath,
				DB:         dbPath,
				Dir:        dir,
				Force:      force,
				Home:       rc.Home,
				WorkDir:    rc.WorkDir,
				Exists:     rc.Exists,
				Now:        rootOpts.Now,
				Store:      rootOpts.storeOptions(),
				Logger:     rootOpts.logger,
			})
			if err != nil {
				return err
			}

			p := rootOpts.printer(cmd)
			return p.emit(res, func() error {
				p.line("Config: %s", res.ConfigPath)
				p.line("DB:     %s", res.DBPath)
				if !res.Updated {
					p.line("db_path was already configured; use --force to change it")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "database JSON file path")
	cmd.Flags().StringVar(&dir, "dir", "", "directory for the database (DIR/todos.json)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing db_path")
	return cmd
}

type configView struct {
	ConfigFile   string `json:"config_file"`
	ConfiguredDB string `json:"configured_db"`
	ResolvedDB   string `json:"resolved_db"`
	Source       string `json:"source"`
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show config and resolved database path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view := configView{
				ConfigFile:   rootOpts.ConfigPath,
				ConfiguredDB: rootOpts.cfg.DBPath,
				ResolvedDB:   rootOpts.resolution.Path,
				Source:       string(rootOpts.resolution.Source),
			}
			p := rootOpts.printer(cmd)
			return p.emit(view, func() error {
				configured := view.ConfiguredDB
				if configured == "" {
					configured = "(not set)"
				}
				p.line("Config file:   %s", view.ConfigFile)
				p.line("Configured DB: %s", configured)
				p.line("Resolved DB:   %s (%s)", view.ResolvedDB, view.Source)
				p.line("")
				p.line("Precedence: --db > TODO_DB > config > default")
				return nil
			})
		},
	}
}

// NewPathCommand creates the path command.
func NewPathCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the database path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := rootOpts.printer(cmd)
			return p.emit(map[string]string{"path": rootOpts.resolution.Path}, func() error {
				p.line("%s", rootOpts.resolution.Path)
				return nil
			})
		},
	}
}
