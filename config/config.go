// Package config reads and writes config.json and the TODO_* environment
// overrides that sit beside it.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"todo-cli/logging"
	"todo-cli/model"
	"todo-cli/paths"
	"todo-cli/store"
)

const (
	EnvLockTimeout = "TODO_LOCK_TIMEOUT"
)

// Config mirrors config.json. backups_dir is reserved and kept as found.
type Config struct {
	DBPath      string        `mapstructure:"db_path"`
	BackupsDir  string        `mapstructure:"backups_dir"`
	CreatedAt   string        `mapstructure:"created_at"`
	UpdatedAt   string        `mapstructure:"updated_at"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	LogLevel    string        `mapstructure:"log_level"`
}

// fileConfig is the on-disk key order.
type fileConfig struct {
	DBPath      string `json:"db_path"`
	BackupsDir  string `json:"backups_dir"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	LockTimeout string `json:"lock_timeout,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`
}

// Read loads the file at path only. A missing file is an empty Config; an
// unparsable one is logged and treated as empty.
func Read(path string, logger *log.Logger) (Config, error) {
	return load(path, logger, false)
}

// Load is Read plus TODO_LOCK_TIMEOUT and TODO_LOG_LEVEL, which win over
// the file.
func Load(path string, logger *log.Logger) (Config, error) {
	return load(path, logger, true)
}

func load(path string, logger *log.Logger, withEnv bool) (Config, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	v := newViper(withEnv)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			logger.Warn("ignoring unreadable config", "path", path, "err", err)
			v = newViper(withEnv)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Warn("ignoring invalid config values", "path", path, "err", err)
		return Config{}, nil
	}
	return cfg, nil
}

func newViper(withEnv bool) *viper.Viper {
	v := viper.New()
	v.SetDefault("db_path", "")
	v.SetDefault("backups_dir", "")
	v.SetDefault("created_at", "")
	v.SetDefault("updated_at", "")
	v.SetDefault("lock_timeout", time.Duration(0))
	v.SetDefault("log_level", "")
	if withEnv {
		_ = v.BindEnv("lock_timeout", EnvLockTimeout)
		_ = v.BindEnv("log_level", logging.EnvLevel)
	}
	return v
}

// Save writes cfg to path atomically.
func Save(path string, cfg Config) error {
	out := fileConfig{
		DBPath:     cfg.DBPath,
		BackupsDir: cfg.BackupsDir,
		CreatedAt:  cfg.CreatedAt,
		UpdatedAt:  cfg.UpdatedAt,
		LogLevel:   cfg.LogLevel,
	}
	if cfg.LockTimeout > 0 {
		out.LockTimeout = cfg.LockTimeout.String()
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return store.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

// InitOptions are the inputs of Init.
type InitOptions struct {
	ConfigPath string
	// DB is an explicit database file; Dir a directory to hold todos.json.
	DB    string
	Dir   string
	Force bool

	Home    string
	WorkDir string
	Exists  func(string) bool
	Now     func() time.Time
	Store   store.Options
	Logger  *log.Logger
}

// InitResult reports what Init settled on.
type InitResult struct {
	ConfigPath string
	DBPath     string
	// Updated is false when an existing db_path was kept.
	Updated bool
}

// Init records a database location in config.json and makes sure the
// database exists. An already configured db_path is only replaced with Force.
func Init(ctx context.Context, opts InitOptions) (InitResult, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	res := InitResult{ConfigPath: opts.ConfigPath}

	cfg, err := Read(opts.ConfigPath, opts.Logger)
	if err != nil {
		return res, err
	}

	if strings.TrimSpace(cfg.DBPath) != "" && !opts.Force {
		res.DBPath = paths.Resolve(paths.ResolutionContext{
			Config:  paths.Candidate{Value: cfg.DBPath, Base: filepath.Dir(opts.ConfigPath)},
			Home:    opts.Home,
			WorkDir: opts.WorkDir,
			Exists:  opts.Exists,
		}).Path
		if _, err := store.New(res.DBPath, opts.Store).Load(ctx); err != nil {
			return res, err
		}
		return res, nil
	}

	rc := paths.ResolutionContext{Home: opts.Home, WorkDir: opts.WorkDir, Exists: opts.Exists}
	switch {
	case strings.TrimSpace(opts.DB) != "":
		rc.Override = paths.Candidate{Value: opts.DB}
	case strings.TrimSpace(opts.Dir) != "":
		rc.Override = paths.Candidate{Value: filepath.Join(paths.ExpandHome(strings.TrimSpace(opts.Dir), opts.Home), paths.DBFileName)}
	}
	res.DBPath = paths.Resolve(rc).Path

	if _, err := store.New(res.DBPath, opts.Store).Load(ctx); err != nil {
		return res, err
	}

	now := model.Timestamp(opts.Now())
	if cfg.CreatedAt == "" {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	cfg.DBPath = res.DBPath
	if err := Save(opts.ConfigPath, cfg); err != nil {
		return res, err
	}
	res.Updated = true
	return res, nil
}
