// Package paths resolves the location of the task database.
//
// Every client builds a ResolutionContext from its own settings and calls
// Resolve; the precedence and relative-path rules live only here so that the
// command line tool and the panel always agree on the file they edit.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	AppName        = "todo-cli"
	ConfigFileName = "config.json"
	DBFileName     = "todos.json"
	ArchiveName    = "todos.archive.json"
	EnvDB          = "TODO_DB"
)

// Source names the layer a resolved path came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceScoped   Source = "scoped"
	SourceEnv      Source = "env"
	SourceConfig   Source = "config"
	SourceDefault  Source = "default"
)

// Candidate is a raw path setting plus the directory a relative value is
// resolved against. An empty Base means the working directory.
type Candidate struct {
	Value string
	Base  string
}

func (c Candidate) set() bool {
	return strings.TrimSpace(c.Value) != ""
}

// ResolutionContext carries every input of the resolution. Resolve reads no
// ambient state besides what Exists probes.
type ResolutionContext struct {
	// Override is a --db flag or a client-scoped setting such as a workspace preference.
	Override Candidate
	// Scoped is a broader client setting, e.g. a user-level preference.
	Scoped Candidate
	// Env is the value of TODO_DB.
	Env string
	// Config is db_path from config.json; Base must be the config file's directory.
	Config Candidate

	Home    string
	WorkDir string

	// Exists reports whether a path exists. Used only to pick the default location.
	Exists func(string) bool
}

// Resolution is the result of Resolve.
type Resolution struct {
	Path   string
	Source Source
}

// Resolve returns the single authoritative database path. It never fails; a
// path that cannot be made absolute is still returned as the best effort.
func Resolve(rc ResolutionContext) Resolution {
	switch {
	case rc.Override.set():
		return Resolution{Path: rc.resolve(rc.Override.Value, rc.Override.Base), Source: SourceOverride}
	case rc.Scoped.set():
		return Resolution{Path: rc.resolve(rc.Scoped.Value, rc.Scoped.Base), Source: SourceScoped}
	case strings.TrimSpace(rc.Env) != "":
		return Resolution{Path: rc.resolve(rc.Env, ""), Source: SourceEnv}
	case rc.Config.set():
		return Resolution{Path: rc.resolve(rc.Config.Value, rc.Config.Base), Source: SourceConfig}
	default:
		return Resolution{Path: DefaultDBPath(rc.Home, rc.Exists), Source: SourceDefault}
	}
}

func (rc ResolutionContext) resolve(value, base string) string {
	p := ExpandHome(strings.TrimSpace(value), rc.Home)
	if !filepath.IsAbs(p) {
		if base == "" {
			base = rc.WorkDir
		}
		base = ExpandHome(base, rc.Home)
		p = filepath.Join(base, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return filepath.Clean(p)
}

// ExpandHome replaces a leading ~ with home.
func ExpandHome(p, home string) string {
	if p == "" || home == "" {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") || (runtime.GOOS == "windows" && strings.HasPrefix(p, `~\`)) {
		return filepath.Join(home, p[2:])
	}
	return p
}

// DefaultDBPath is ~/Documents/todo-cli/todos.json when ~/Documents exists,
// ~/.todo-cli/todos.json otherwise.
func DefaultDBPath(home string, exists func(string) bool) string {
	if exists == nil {
		exists = PathExists
	}
	docs := filepath.Join(home, "Documents")
	if exists(docs) {
		return filepath.Join(docs, AppName, DBFileName)
	}
	return filepath.Join(home, "."+AppName, DBFileName)
}

// ConfigDir returns the platform per-user configuration directory for the app.
func ConfigDir() string {
	home := homeDir()
	switch runtime.GOOS {
	case "windows":
		appdata := os.Getenv("APPDATA")
		if appdata == "" {
			appdata = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appdata, AppName)
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the location of config.json.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// FromEnvironment builds a context from the running process: home, working
// directory, TODO_DB and the config file's directory. override and
// configValue come from the caller's flag and loaded config.
func FromEnvironment(override, configValue string) ResolutionContext {
	wd, _ := os.Getwd()
	return ResolutionContext{
		Override: Candidate{Value: override},
		Env:      os.Getenv(EnvDB),
		Config:   Candidate{Value: configValue, Base: ConfigDir()},
		Home:     homeDir(),
		WorkDir:  wd,
		Exists:   PathExists,
	}
}

// LockPath is the database path with its extension replaced by .lock.
func LockPath(dbPath string) string {
	return strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ".lock"
}

// ArchivePath is the archive file next to the database.
func ArchivePath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), ArchiveName)
}

// PathExists reports whether p can be stat'ed.
func PathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}
