package tui

import (
	"context"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"todo-cli/app"
	"todo-cli/paths"
	"todo-cli/store"
)

// RunOptions configure the panel.
type RunOptions struct {
	// Base carries the command line inputs: --db, TODO_DB and config.json.
	Base paths.ResolutionContext
	// WorkspaceRoot is where .todo-cli.toml is looked up.
	WorkspaceRoot string
	// UserDir is where panel.toml is looked up.
	UserDir string
	Store   store.Options
	Input   io.Reader
	Output  io.Writer
}

// Resolve returns the database the panel edits for opts.
func Resolve(opts RunOptions) (paths.Resolution, Scope, error) {
	sc, err := LoadScope(opts.WorkspaceRoot, opts.UserDir, opts.Store.Logger)
	if err != nil {
		return paths.Resolution{}, Scope{}, err
	}
	return paths.Resolve(sc.Apply(opts.Base)), sc, nil
}

// Run opens the panel and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts RunOptions) error {
	logger := opts.Store.Logger
	if logger == nil {
		logger = log.New(io.Discard)
		opts.Store.Logger = logger
	}

	res, sc, err := Resolve(opts)
	if err != nil {
		return err
	}
	svc := app.NewService(res, opts.Store)
	logger.Debug("panel database", "path", res.Path, "source", res.Source)

	if err := os.MkdirAll(filepath.Dir(res.Path), 0o755); err != nil {
		return err
	}
	w, err := Watch(res.Path, DefaultDebounce, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	filter, order := sc.View()
	m := NewModel(ctx, svc, Options{
		Changes: w.C,
		Filter:  filter,
		Sort:    order,
		Now:     opts.Store.Now,
	})

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	_, err = tea.NewProgram(m, progOpts...).Run()
	return err
}
