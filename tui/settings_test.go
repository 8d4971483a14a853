package tui

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-cli/app"
	"todo-cli/model"
	"todo-cli/paths"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.toml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Settings{}, s)
}

func TestLoadSettingsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, path, "db_path = ")
	_, err := LoadSettings(path, nil)
	assert.Error(t, err)
}

func TestScopePrecedence(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, "ws")
	user := filepath.Join(root, "user")
	writeFile(t, filepath.Join(ws, WorkspaceSettingsName), "db_path = \"local.json\"\nsort = \"due\"\n")
	writeFile(t, filepath.Join(user, UserSettingsName), "db_path = \"~/mine.json\"\nfilter = \"pending\"\nsort = \"priority\"\n")

	sc, err := LoadScope(ws, user, nil)
	require.NoError(t, err)

	base := paths.ResolutionContext{
		Env:     "/env/todos.json",
		Config:  paths.Candidate{Value: "/cfg/todos.json"},
		Home:    "/home/u",
		WorkDir: "/work",
	}

	res := paths.Resolve(sc.Apply(base))
	assert.Equal(t, filepath.Join(ws, "local.json"), res.Path)
	assert.Equal(t, paths.SourceOverride, res.Source)

	withFlag := base
	withFlag.Override = paths.Candidate{Value: "/flag/todos.json"}
	res = paths.Resolve(sc.Apply(withFlag))
	assert.Equal(t, "/flag/todos.json", res.Path)

	sc.Workspace.DBPath = ""
	res = paths.Resolve(sc.Apply(base))
	assert.Equal(t, "/home/u/mine.json", res.Path)
	assert.Equal(t, paths.SourceOverride, res.Source)

	sc.User.DBPath = ""
	res = paths.Resolve(sc.Apply(base))
	assert.Equal(t, paths.Resolution{Path: "/env/todos.json", Source: paths.SourceEnv}, res)

	filter, order := sc.View()
	assert.Equal(t, model.FilterPending, filter)
	assert.Equal(t, app.SortDue, order)
}

func TestScopeSecondLayerIsScoped(t *testing.T) {
	sc := Scope{
		WorkspaceRoot: "/ws",
		Workspace:     Settings{DBPath: "a.json"},
		UserDir:       "/cfg",
		User:          Settings{DBPath: "b.json"},
	}
	rc := sc.Apply(paths.ResolutionContext{WorkDir: "/work"})
	assert.Equal(t, paths.Candidate{Value: "a.json", Base: "/ws"}, rc.Override)
	assert.Equal(t, paths.Candidate{Value: "b.json", Base: "/cfg"}, rc.Scoped)
}

func TestWatcherSignalsOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.json")
	w, err := Watch(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, filepath.Join(filepath.Dir(path), "other.json"), "{}")
	writeFile(t, path, "{}")

	select {
	case <-w.C:
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal")
	}
}

func TestWatcherCloseClosesChannel(t *testing.T) {
	w, err := Watch(filepath.Join(t.TempDir(), "todos.json"), 0, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	select {
	case _, ok := <-w.C:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed")
	}
}
