package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"todo-cli/doctor"
	"todo-cli/model"
)

// NewArchiveCommand creates the archive command with ls and restore subcommands.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect removed tasks",
		Long:  "Removed tasks are appended to todos.archive.json next to the database.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List archived tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := rootOpts.service().Archived()
			if err != nil {
				return err
			}
			return rootOpts.printer(cmd).tasks(arch.Tasks, "Archived")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore ID",
		Short: "Copy an archived task back into the database under a new id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			t, err := rootOpts.service().RestoreArchived(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			out := rootOpts.printer(cmd)
			return out.emit(t, func() error {
				out.line("Restored #%d as #%d: %s", ids[0], t.ID, t.Text)
				return nil
			})
		},
	})
	return cmd
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	var repair, restore bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the database for problems",
		Long: `Check the database file, its backups and leftover temporary files.

--repair writes healable fixes in place. --restore additionally replaces an
unreadable file with the newest valid backup; the broken file is kept as
todos.corrupt-<timestamp>.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if restore {
				repair = true
			}
			svc := rootOpts.service()

			var report doctor.Report
			var runErr error
			if repair {
				report, runErr = svc.Repair(cmd.Context(), restore)
			} else {
				report = svc.Check()
			}

			out := rootOpts.printer(cmd)
			if err := out.emit(report, func() error {
				printReport(out, report)
				return nil
			}); err != nil {
				return err
			}

			if runErr != nil {
				return runErr
			}
			if !report.Valid {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%s has %d problem(s)", report.Path, report.Count(doctor.SeverityError))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "write healable fixes")
	cmd.Flags().BoolVar(&restore, "restore", false, "restore the newest valid backup if the file cannot be healed (implies --repair)")
	return cmd
}

func printReport(out *printer, r doctor.Report) {
	state := "ok"
	switch {
	case !r.Exists && r.Valid:
		state = "missing"
	case !r.Valid:
		state = "invalid"
	}
	out.line("Database: %s (%s, %d tasks)", r.Path, state, r.Tasks)

	for _, issue := range r.Issues {
		out.line("  %-8s %s", issue.Severity, issue.Message)
	}
	if len(r.Issues) == 0 {
		out.line("  no issues")
	}
	for _, fix := range r.Repaired {
		out.line("  repaired %s", fix)
	}
	if r.RestoredFrom != "" {
		out.line("  restored from %s", r.RestoredFrom)
	}
	if r.PreservedAs != "" {
		out.line("  corrupt file kept as %s", r.PreservedAs)
	}

	if len(r.Backups) == 0 {
		out.line("Backups: none")
		return
	}
	out.line("Backups:")
	for _, b := range r.Backups {
		if b.Valid {
			out.line("  %s (%d tasks)", b.Path, b.Tasks)
			continue
		}
		out.line("  %s (invalid: %s)", b.Path, b.Error)
	}
}

// summary is a one-line description of the database used by the panel
// command when it exits.
func summary(st model.Store) string {
	done := 0
	for _, t := range st.Tasks {
		if t.Done {
			done++
		}
	}
	parts := []string{fmt.Sprintf("%d tasks", len(st.Tasks))}
	if done > 0 {
		parts = append(parts, fmt.Sprintf("%d done", done))
	}
	return strings.Join(parts, ", ")
}
