package cli

import (
	"errors"
	"fmt"
	"strconv"

	"todo-cli/app"
	"todo-cli/doctor"
	"todo-cli/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran and failed (corrupt store, unknown task, ...)
	ExitCommandError = 2 // bad invocation
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, app.ErrInvalidTask), errors.Is(err, app.ErrInvalidPriority),
		errors.Is(err, app.ErrInvalidDue), errors.Is(err, app.ErrInvalidSort),
		errors.Is(err, app.ErrInvalidTag), errors.Is(err, app.ErrInvalidFilter),
		errors.Is(err, app.ErrNoTaskIDs):
		return ExitCommandError
	}
	return ExitFailure
}

// Hint returns a follow-up suggestion for err, or "".
func Hint(err error) string {
	switch {
	case errors.Is(err, store.ErrCorrupt):
		return "run `todo doctor` to inspect it, or `todo doctor --repair --restore` to restore the newest valid backup"
	case errors.Is(err, store.ErrUnsupportedVersion):
		return "this file was written by a newer todo; upgrade before editing it"
	case errors.Is(err, store.ErrLocked):
		return "another todo process is using the database; try again in a moment"
	case errors.Is(err, doctor.ErrUnrecoverable):
		return "the corrupt file was left untouched for manual inspection"
	case errors.Is(err, app.ErrTaskNotFound):
		return "use `todo ls` to see available tasks"
	}
	return ""
}

// FormatError renders err with its hint for stderr.
func FormatError(err error) string {
	msg := "error: " + err.Error()
	if hint := Hint(err); hint != "" {
		msg += "\nhint: " + hint
	}
	return msg
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 1 {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid task id %q", arg))
		}
		ids = append(ids, id)
	}
	return ids, nil
}
