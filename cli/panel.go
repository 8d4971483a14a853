package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"todo-cli/app"
	"todo-cli/model"
	"todo-cli/paths"
	"todo-cli/tui"
)

// NewPanelCommand creates the panel command.
func NewPanelCommand(rootOpts *RootOptions) *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Open the interactive task panel",
		Long: `Open a terminal panel on the database. It reloads when the file changes.

The panel also reads db_path from <workspace>/.todo-cli.toml and from
panel.toml in the config directory. Precedence:
--db > workspace > user panel.toml > TODO_DB > config > default.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := rootOpts.panelOptions(workspace)
			if err := tui.Run(cmd.Context(), opts); err != nil {
				return err
			}
			st, err := rootOpts.panelService(opts)
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), summary(st))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace root for .todo-cli.toml (default current directory)")
	return cmd
}

func (o *RootOptions) panelOptions(workspace string) tui.RunOptions {
	rc := o.ResolutionContext()
	if workspace == "" {
		workspace = rc.WorkDir
	}
	return tui.RunOptions{
		Base:          rc,
		WorkspaceRoot: workspace,
		UserDir:       paths.ConfigDir(),
		Store:         o.storeOptions(),
	}
}

func (o *RootOptions) panelService(opts tui.RunOptions) (st model.Store, err error) {
	res, _, err := tui.Resolve(opts)
	if err != nil {
		return st, err
	}
	return app.NewService(res, opts.Store).Load(context.Background())
}

// Execute runs the command line tool and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, FormatError(err))
		return GetExitCode(err)
	}
	return ExitSuccess
}
