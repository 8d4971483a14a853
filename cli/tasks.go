package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"todo-cli/app"
	"todo-cli/model"
)

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var priority, due string
	var tags []string

	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a task",
		Example: `  todo add "Buy milk"
  todo add "Pay rent" --p high --due 2025-12-20 --tag bills
  todo add "Call mom" --due tomorrow`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.ParsePriority(priority)
			if err != nil {
				return err
			}
			d, err := app.ParseDue(due, rootOpts.Now())
			if err != nil {
				return err
			}

			t, err := rootOpts.service().AddTask(cmd.Context(), app.NewTask{
				Text:     strings.Join(args, " "),
				Priority: p,
				Due:      d,
				Tags:     tags,
			})
			if err != nil {
				return err
			}

			out := rootOpts.printer(cmd)
			return out.emit(t, func() error {
				out.line("Added #%d: %s", t.ID, t.Text)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&priority, "p", "", "priority (low|med|high)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD, +3d, tomorrow, ...)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag (repeatable)")
	return cmd
}

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var pending, done bool
	var tag, search, sortBy string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks",
		Example: `  todo ls
  todo ls --pending --sort due
  todo ls --tag work --search report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := app.ParseSort(sortBy)
			if err != nil {
				return err
			}
			q := app.Query{Status: model.FilterAll, Tag: tag, Search: search, Sort: order}
			title := "All"
			switch {
			case pending:
				q.Status, title = model.FilterPending, "Pending"
			case done:
				q.Status, title = model.FilterDone, "Done"
			}

			tasks, err := rootOpts.service().List(cmd.Context(), q)
			if err != nil {
				return err
			}
			return rootOpts.printer(cmd).tasks(tasks, title)
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "only pending tasks")
	cmd.Flags().BoolVar(&done, "done", false, "only done tasks")
	cmd.Flags().StringVar(&tag, "tag", "", "only tasks with this tag")
	cmd.Flags().StringVar(&search, "search", "", "only tasks whose text contains this")
	cmd.Flags().StringVar(&sortBy, "sort", "created", "sort order (created|due|priority)")
	cmd.MarkFlagsMutuallyExclusive("pending", "done")
	return cmd
}

// NewDoneCommand creates the done command.
func NewDoneCommand(rootOpts *RootOptions) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done ID...",
		Short: "Mark tasks done",
		Example: `  todo done 3
  todo done 3 4 7
  todo done 3 --undo`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			tasks, err := rootOpts.service().SetDone(cmd.Context(), ids, !undo)
			if err != nil {
				return err
			}

			verb := "Done"
			if undo {
				verb = "Undone"
			}
			out := rootOpts.printer(cmd)
			return out.emit(tasks, func() error {
				for _, t := range tasks {
					out.line("%s #%d: %s", verb, t.ID, t.Text)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "mark tasks pending again")
	return cmd
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"remove"},
		Short:   "Remove tasks (they are archived first)",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			res, err := rootOpts.service().ArchiveAndRemove(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return printRemoved(cmd, rootOpts, res, "Removed")
		},
	}
}

// NewClearDoneCommand creates the clear-done command.
func NewClearDoneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-done",
		Short: "Archive and remove all done tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.service().ClearDone(cmd.Context())
			if err != nil {
				return err
			}
			return printRemoved(cmd, rootOpts, res, "Cleared")
		},
	}
}

type removeView struct {
	Removed      []model.Task `json:"removed"`
	Archived     bool         `json:"archived"`
	ArchiveError string       `json:"archive_error,omitempty"`
}

func printRemoved(cmd *cobra.Command, rootOpts *RootOptions, res app.RemoveResult, verb string) error {
	view := removeView{Removed: res.Removed, Archived: res.ArchiveErr == nil}
	if view.Removed == nil {
		view.Removed = []model.Task{}
	}
	if res.ArchiveErr != nil {
		view.ArchiveError = res.ArchiveErr.Error()
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: tasks were removed but not archived: %v\n", res.ArchiveErr)
	}

	out := rootOpts.printer(cmd)
	return out.emit(view, func() error {
		if len(res.Removed) == 0 {
			out.line("Nothing to remove")
			return nil
		}
		for _, t := range res.Removed {
			out.line("%s #%d: %s", verb, t.ID, t.Text)
		}
		return nil
	})
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit ID TEXT...",
		Short: "Change a task's text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			t, err := rootOpts.service().EditText(cmd.Context(), ids[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return printUpdated(cmd, rootOpts, t)
		},
	}
}

// NewPriorityCommand creates the pri command.
func NewPriorityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "pri ID PRIORITY",
		Aliases: []string{"priority"},
		Short:   "Set a task's priority (low|med|high|none)",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			p, err := app.ParsePriority(args[1])
			if err != nil {
				return err
			}
			t, err := rootOpts.service().SetPriority(cmd.Context(), ids[0], p)
			if err != nil {
				return err
			}
			return printUpdated(cmd, rootOpts, t)
		},
	}
}

// NewDueCommand creates the due command.
func NewDueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "due ID DATE...",
		Short: "Set a task's due date (none clears it)",
		Example: `  todo due 3 2025-12-20
  todo due 3 next friday
  todo due 3 none`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			d, err := app.ParseDue(strings.Join(args[1:], " "), rootOpts.Now())
			if err != nil {
				return err
			}
			t, err := rootOpts.service().SetDue(cmd.Context(), ids[0], d)
			if err != nil {
				return err
			}
			return printUpdated(cmd, rootOpts, t)
		},
	}
}

// NewTagCommand creates the tag command with add and rm subcommands.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Add or remove task tags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add ID TAG",
		Short: "Add a tag to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			t, err := rootOpts.service().AddTag(cmd.Context(), ids[0], args[1])
			if err != nil {
				return err
			}
			return printUpdated(cmd, rootOpts, t)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "rm ID TAG",
		Aliases: []string{"remove"},
		Short:   "Remove a tag from a task",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			t, err := rootOpts.service().RemoveTag(cmd.Context(), ids[0], args[1])
			if err != nil {
				return err
			}
			return printUpdated(cmd, rootOpts, t)
		},
	})
	return cmd
}

func printUpdated(cmd *cobra.Command, rootOpts *RootOptions, t model.Task) error {
	out := rootOpts.printer(cmd)
	return out.emit(t, func() error {
		out.line("Updated #%d: %s", t.ID, plainTask(t))
		return nil
	})
}
