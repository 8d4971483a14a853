package tui

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"todo-cli/app"
	"todo-cli/model"
	"todo-cli/paths"
)

const (
	// WorkspaceSettingsName is looked up in the workspace root.
	WorkspaceSettingsName = ".todo-cli.toml"
	// UserSettingsName lives in the per-user config directory.
	UserSettingsName = "panel.toml"
)

// Settings are the panel's own preferences. A relative DBPath resolves
// against the directory holding the settings file's scope: the workspace
// root for workspace settings, the config directory for user settings.
type Settings struct {
	DBPath string `toml:"db_path"`
	Filter string `toml:"filter"`
	Sort   string `toml:"sort"`
}

// LoadSettings reads a TOML settings file. A missing file yields zero
// Settings.
func LoadSettings(path string, logger *log.Logger) (Settings, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var s Settings
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logger.Warn("ignoring unknown panel settings", "file", path, "keys", strings.Join(keys, ","))
	}
	return s, nil
}

// Scope holds the panel settings that take part in path resolution.
type Scope struct {
	WorkspaceRoot string
	Workspace     Settings
	UserDir       string
	User          Settings
}

// LoadScope reads workspace settings from root (skipped when root is empty)
// and user settings from userDir.
func LoadScope(root, userDir string, logger *log.Logger) (Scope, error) {
	sc := Scope{WorkspaceRoot: root, UserDir: userDir}
	var err error
	if root != "" {
		if sc.Workspace, err = LoadSettings(filepath.Join(root, WorkspaceSettingsName), logger); err != nil {
			return Scope{}, err
		}
	}
	if userDir != "" {
		if sc.User, err = LoadSettings(filepath.Join(userDir, UserSettingsName), logger); err != nil {
			return Scope{}, err
		}
	}
	return sc, nil
}

// Apply layers the panel settings onto rc. An explicit --db in
// rc.Override still wins, then workspace, then user settings, and only then
// TODO_DB, config.json and the default.
func (sc Scope) Apply(rc paths.ResolutionContext) paths.ResolutionContext {
	layers := make([]paths.Candidate, 0, 3)
	for _, c := range []paths.Candidate{
		rc.Override,
		{Value: sc.Workspace.DBPath, Base: sc.WorkspaceRoot},
		{Value: sc.User.DBPath, Base: sc.UserDir},
	} {
		if strings.TrimSpace(c.Value) != "" {
			layers = append(layers, c)
		}
	}

	rc.Override, rc.Scoped = paths.Candidate{}, paths.Candidate{}
	if len(layers) > 0 {
		rc.Override = layers[0]
	}
	if len(layers) > 1 {
		rc.Scoped = layers[1]
	}
	return rc
}

// View returns the initial filter and sort order, workspace first.
func (sc Scope) View() (model.Filter, app.SortOrder) {
	filter, sort := model.FilterAll, app.SortCreated
	for _, s := range []Settings{sc.User, sc.Workspace} {
		if f, err := app.ParseFilter(s.Filter); err == nil && s.Filter != "" {
			filter = f
		}
		if o, err := app.ParseSort(s.Sort); err == nil && s.Sort != "" {
			sort = o
		}
	}
	return filter, sort
}
