package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-cli/model"
	"todo-cli/store"
)

func TestReadMissingFileIsEmpty(t *testing.T) {
	cfg, err := Read(filepath.Join(t.TempDir(), "config.json"), nil)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestReadInvalidJSONIsEmptyAndLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"db_path": `), 0o644))

	var buf bytes.Buffer
	cfg, err := Read(path, log.New(&buf))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
	assert.Contains(t, buf.String(), "ignoring unreadable config")
}

func TestSaveThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	want := Config{
		DBPath:      "mydb.json",
		BackupsDir:  "/srv/backups",
		CreatedAt:   "2026-02-19T12:00:00+00:00",
		UpdatedAt:   "2026-02-20T12:00:00+00:00",
		LockTimeout: 3 * time.Second,
		LogLevel:    "debug",
	}
	require.NoError(t, Save(path, want))

	got, err := Read(path, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lock_timeout": "3s"`)
}

func TestLoadAppliesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Save(path, Config{DBPath: "a.json", LockTimeout: time.Second, LogLevel: "info"}))
	t.Setenv(EnvLockTimeout, "250ms")
	t.Setenv("TODO_LOG_LEVEL", "error")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "a.json", cfg.DBPath)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, "error", cfg.LogLevel)

	fileOnly, err := Read(path, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, fileOnly.LockTimeout)
}

func initOptions(t *testing.T, home string) InitOptions {
	t.Helper()
	clock := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	return InitOptions{
		ConfigPath: filepath.Join(home, ".config", "todo-cli", "config.json"),
		Home:       home,
		WorkDir:    home,
		Exists:     func(string) bool { return false },
		Now: func() time.Time {
			clock = clock.Add(time.Hour)
			return clock
		},
		Store: store.Options{LockTimeout: 5 * time.Second},
	}
}

func TestInitCreatesDatabaseAndConfig(t *testing.T) {
	home := t.TempDir()
	opts := initOptions(t, home)

	res, err := Init(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, filepath.Join(home, ".todo-cli", "todos.json"), res.DBPath)

	st, err := store.New(res.DBPath, store.Options{}).Read()
	require.NoError(t, err)
	assert.Equal(t, model.NewStore(), st)
	assert.FileExists(t, res.DBPath)

	cfg, err := Read(opts.ConfigPath, nil)
	require.NoError(t, err)
	assert.Equal(t, res.DBPath, cfg.DBPath)
	assert.NotEmpty(t, cfg.CreatedAt)
	assert.Equal(t, cfg.CreatedAt, cfg.UpdatedAt)
}

func TestInitKeepsExistingPathWithoutForce(t *testing.T) {
	home := t.TempDir()
	opts := initOptions(t, home)
	first, err := Init(context.Background(), opts)
	require.NoError(t, err)

	opts.Dir = filepath.Join(home, "elsewhere")
	second, err := Init(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, second.Updated)
	assert.Equal(t, first.DBPath, second.DBPath)
	assert.NoFileExists(t, filepath.Join(home, "elsewhere", "todos.json"))

	opts.Force = true
	third, err := Init(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, third.Updated)
	assert.Equal(t, filepath.Join(home, "elsewhere", "todos.json"), third.DBPath)
	assert.FileExists(t, third.DBPath)

	cfg, err := Read(opts.ConfigPath, nil)
	require.NoError(t, err)
	assert.Equal(t, third.DBPath, cfg.DBPath)
	assert.NotEqual(t, cfg.CreatedAt, cfg.UpdatedAt, "created_at must survive a forced re-init")
}
