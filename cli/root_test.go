package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"todo-cli/app"
	"todo-cli/model"
	"todo-cli/paths"
	"todo-cli/store"
	"todo-cli/tui"
)

var fixedNow = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	dir    string
	db     string
	config string
}

func newEnv(t *testing.T) env {
	t.Helper()
	t.Setenv(paths.EnvDB, "")
	t.Setenv("TODO_LOCK_TIMEOUT", "")
	t.Setenv("TODO_LOG_LEVEL", "")
	dir := t.TempDir()
	return env{
		dir:    dir,
		db:     filepath.Join(dir, "todos.json"),
		config: filepath.Join(dir, "config", "config.json"),
	}
}

// run executes the CLI with --config pointing into the temp dir. withDB
// adds --db.
func (e env) run(t *testing.T, withDB bool, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{Now: func() time.Time { return fixedNow }})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	full := []string{"--config", e.config}
	if withDB {
		full = append(full, "--db", e.db)
	}
	cmd.SetArgs(append(full, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := e.run(t, true, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return out
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "todo", cmd.Use)
	assert.Contains(t, cmd.Long, "TODO_DB")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"config"}, {"path"}, {"add"}, {"ls"}, {"done"}, {"rm"},
		{"edit"}, {"pri"}, {"due"}, {"tag", "add"}, {"tag", "rm"},
		{"clear-done"}, {"archive", "ls"}, {"archive", "restore"}, {"doctor"}, {"panel"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("lock-timeout"))
}

func TestAddAndList(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun(t, "add", "Pay", "rent", "--p", "high", "--due", "2025-12-20", "--tag", "bills")
	assert.Equal(t, "Added #1: Pay rent\n", out)
	e.mustRun(t, "add", "Call mom", "--due", "tomorrow")

	out = e.mustRun(t, "ls")
	assert.Equal(t, "[ ] #1 Pay rent (high) due:2025-12-20 #bills\n[ ] #2 Call mom due:2025-01-16\n", out)

	out = e.mustRun(t, "ls", "--tag", "bills")
	assert.Equal(t, "[ ] #1 Pay rent (high) due:2025-12-20 #bills\n", out)

	out = e.mustRun(t, "ls", "--done")
	assert.Equal(t, "No tasks found\n", out)
}

func TestDoneUndoAndJSONOutput(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "add", "one")
	e.mustRun(t, "add", "two")

	out := e.mustRun(t, "done", "1", "2")
	assert.Equal(t, "Done #1: one\nDone #2: two\n", out)
	e.mustRun(t, "done", "2", "--undo")

	out = e.mustRun(t, "--format", "json", "ls", "--done")
	var tasks []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, float64(1), tasks[0]["id"])
	assert.Equal(t, "2025-01-15T10:00:00+00:00", tasks[0]["done_at"])
}

func TestYAMLOutput(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "add", "one", "--tag", "home")

	out := e.mustRun(t, "--format", "yaml", "ls")
	var tasks []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "one", tasks[0]["text"])
	assert.Equal(t, []interface{}{"home"}, tasks[0]["tags"])
}

func TestUpdateCommands(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "add", "draft")

	e.mustRun(t, "edit", "1", "final", "report")
	e.mustRun(t, "pri", "1", "medium")
	e.mustRun(t, "due", "1", "+3d")
	e.mustRun(t, "tag", "add", "1", "work")
	e.mustRun(t, "tag", "add", "1", "q1")
	out := e.mustRun(t, "tag", "rm", "1", "q1")
	assert.Equal(t, "Updated #1: [ ] #1 final report (med) due:2025-01-18 #work\n", out)

	e.mustRun(t, "due", "1", "none")
	e.mustRun(t, "pri", "1", "none")
	out = e.mustRun(t, "ls")
	assert.Equal(t, "[ ] #1 final report #work\n", out)
}

func TestRemoveArchivesAndRestores(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "add", "one")
	e.mustRun(t, "add", "two")

	out := e.mustRun(t, "rm", "1")
	assert.Equal(t, "Removed #1: one\n", out)

	out = e.mustRun(t, "archive", "ls")
	assert.Equal(t, "[ ] #1 one\n", out)

	out = e.mustRun(t, "archive", "restore", "1")
	assert.Equal(t, "Restored #1 as #3: one\n", out)

	out = e.mustRun(t, "ls")
	assert.Equal(t, "[ ] #2 two\n[ ] #3 one\n", out)
}

func TestClearDone(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "add", "one")
	e.mustRun(t, "add", "two")
	e.mustRun(t, "done", "2")

	out := e.mustRun(t, "clear-done")
	assert.Equal(t, "Cleared #2: two\n", out)

	out = e.mustRun(t, "clear-done")
	assert.Equal(t, "Nothing to remove\n", out)
}

func TestExitCodes(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "add", "one")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown task", []string{"done", "9"}, ExitFailure},
		{"bad id", []string{"done", "abc"}, ExitCommandError},
		{"bad priority", []string{"pri", "1", "urgent"}, ExitCommandError},
		{"bad due", []string{"due", "1", "2025-02-30"}, ExitCommandError},
		{"bad sort", []string{"ls", "--sort", "size"}, ExitCommandError},
		{"bad format", []string{"--format", "xml", "ls"}, ExitCommandError},
		{"unknown flag", []string{"ls", "--nope"}, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.run(t, true, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestUnknownTaskLeavesFileUnchanged(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "add", "one")
	before, err := os.ReadFile(e.db)
	require.NoError(t, err)

	_, _, err = e.run(t, true, "rm", "1", "7")
	require.ErrorIs(t, err, app.ErrTaskNotFound)

	after, err := os.ReadFile(e.db)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = os.Stat(paths.ArchivePath(e.db))
	assert.True(t, os.IsNotExist(err), "archive should not be created")
}

func TestCorruptDatabaseHint(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.db, []byte("{not json"), 0o644))

	_, _, err := e.run(t, true, "ls")
	require.ErrorIs(t, err, store.ErrCorrupt)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, FormatError(err), "todo doctor --repair --restore")
}

func TestDoctorCommand(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "add", "one")

	out := e.mustRun(t, "--format", "json", "doctor")
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, true, report["valid"])
	assert.Equal(t, float64(1), report["tasks"])

	require.NoError(t, os.WriteFile(e.db, []byte(`[{"id": 1, "text": "legacy"}]`), 0o644))
	out = e.mustRun(t, "doctor", "--repair")
	assert.Contains(t, out, "repaired")

	data, err := os.ReadFile(e.db)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
}

func TestDoctorReportsInvalidFile(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.db, []byte(`{"version": 1, "next_id": 2, "tasks": [{"id": 0, "text": "x"}]}`), 0o644))

	out, _, err := e.run(t, true, "doctor")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "invalid")
}

func TestInitAndConfig(t *testing.T) {
	e := newEnv(t)
	target := filepath.Join(e.dir, "lists")

	out, stderr, err := e.run(t, false, "init", "--dir", target)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, filepath.Join(target, "todos.json"))

	out, _, err = e.run(t, false, "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(target, "todos.json")+"\n", out)

	out, _, err = e.run(t, false, "--format", "json", "config")
	require.NoError(t, err)
	var view map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "config", view["source"])
	assert.Equal(t, filepath.Join(target, "todos.json"), view["resolved_db"])

	// --db beats config.json.
	out, _, err = e.run(t, true, "path")
	require.NoError(t, err)
	assert.Equal(t, e.db+"\n", out)

	// TODO_DB beats config.json but not --db.
	envDB := filepath.Join(e.dir, "env.json")
	t.Setenv(paths.EnvDB, envDB)
	out, _, err = e.run(t, false, "path")
	require.NoError(t, err)
	assert.Equal(t, envDB+"\n", out)
}

func TestPanelAndCLIResolveSamePath(t *testing.T) {
	e := newEnv(t)
	workspace := filepath.Join(e.dir, "ws")
	userDir := filepath.Join(e.dir, "user")
	require.NoError(t, os.MkdirAll(workspace, 0o755))
	require.NoError(t, os.MkdirAll(userDir, 0o755))

	resolve := func(db string) (paths.Resolution, paths.Resolution) {
		opts := &RootOptions{Now: func() time.Time { return fixedNow }}
		cmd := newRootCommand(opts)
		// Flag registration resets the fields to their defaults.
		opts.DB, opts.ConfigPath = db, e.config
		cmd.SetErr(&bytes.Buffer{})
		require.NoError(t, opts.setup(cmd))

		panel := opts.panelOptions(workspace)
		panel.UserDir = userDir
		res, _, err := tui.Resolve(panel)
		require.NoError(t, err)
		return opts.resolution, res
	}

	cliRes, panelRes := resolve("")
	assert.Equal(t, cliRes, panelRes)

	cliRes, panelRes = resolve(e.db)
	assert.Equal(t, cliRes, panelRes)
	assert.Equal(t, e.db, panelRes.Path)

	// Panel-only settings apply to the panel alone; --db still wins.
	require.NoError(t, os.WriteFile(filepath.Join(workspace, tui.WorkspaceSettingsName), []byte(`db_path = "team/todos.json"`+"\n"), 0o644))
	_, panelRes = resolve("")
	assert.Equal(t, filepath.Join(workspace, "team", "todos.json"), panelRes.Path)
	assert.Equal(t, paths.SourceOverride, panelRes.Source)

	_, panelRes = resolve(e.db)
	assert.Equal(t, e.db, panelRes.Path)
}

func TestPlainTask(t *testing.T) {
	task := model.Task{ID: 4, Text: "ship", Done: true, Priority: model.PriorityLow, Tags: []string{"a", "b"}}
	assert.Equal(t, "[x] #4 ship (low) #a #b", plainTask(task))
}

func TestRenderTable(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Text: "Pay rent", Priority: model.PriorityHigh, Due: "2025-12-20", Tags: []string{"bills"}},
		{ID: 2, Text: "Call mom", Done: true},
	}
	out := renderTable(tasks, "Pending")
	assert.Contains(t, out, "Pay rent")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "#bills")
	assert.Contains(t, out, "Pending")
}
