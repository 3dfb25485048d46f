package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ProjectConfigFile is the name of the project-level config file.
	ProjectConfigFile = "quranscope.yaml"
	// UserConfigDir is the directory for user-level config, below $HOME.
	UserConfigDir = ".config/quranscope"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
)

// Environment variables read by Load.
const (
	EnvData      = "QURANSCOPE_DATA"
	EnvSource    = "QURANSCOPE_SOURCE"
	EnvAPIOrigin = "QURANSCOPE_API_ORIGIN"
	EnvLogLevel  = "QURANSCOPE_LOG_LEVEL"
	EnvPort      = "QURANSCOPE_PORT"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger

	// Getenv, Home and WorkDir default to the process environment.
	Getenv  func(string) string
	Home    string
	WorkDir string
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger, Getenv: os.Getenv}
	if home, err := os.UserHomeDir(); err == nil {
		l.Home = home
	}
	if wd, err := os.Getwd(); err == nil {
		l.WorkDir = wd
	}
	return l
}

// Load builds the configuration with layered precedence:
//  1. defaults
//  2. user config (~/.config/quranscope/config.yaml)
//  3. explicit file, or quranscope.yaml in the working directory or a parent
//  4. environment variables
//
// Command-line flags are applied by the caller on the result, which must
// then be validated. A missing explicit file is an error; a broken user or
// project file is an error too, since silently ignoring it hides typos.
func (l *Loader) Load(explicit string) (*Config, error) {
	cfg := DefaultConfig()

	if p := l.userConfigPath(); p != "" {
		if err := cfg.LoadFromFile(p); err == nil {
			l.logger.Debug("loaded user config", "path", p)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	project := explicit
	if project == "" {
		project = l.findProjectConfig()
	}
	if project != "" {
		if err := cfg.LoadFromFile(project); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded project config", "path", project)
	}

	l.applyEnv(cfg)
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	get := l.Getenv
	if get == nil {
		get = os.Getenv
	}
	if v := get(EnvData); v != "" {
		cfg.Data.Location = v
	}
	if v := get(EnvSource); v != "" {
		cfg.Data.Source = strings.ToLower(v)
	}
	if v, ok := lookup(get, EnvAPIOrigin); ok {
		cfg.Explain.Origin = v
	}
	if v := get(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := get(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			l.logger.Warn("ignoring invalid port", "env", EnvPort, "value", v)
		}
	}
}

// lookup treats the literal value "none" as an explicit empty setting.
func lookup(get func(string) string, key string) (string, bool) {
	v := get(key)
	switch {
	case v == "":
		return "", false
	case strings.EqualFold(v, "none"):
		return "", true
	}
	return v, true
}

// EnsureUserConfig writes the defaults to the user config file if it does
// not exist yet and returns its path.
func (l *Loader) EnsureUserConfig() (string, error) {
	p := l.userConfigPath()
	if p == "" {
		return "", errors.New("no home directory")
	}
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	if err := DefaultConfig().SaveToFile(p); err != nil {
		return "", err
	}
	l.logger.Info("created default user config", "path", p)
	return p, nil
}

func (l *Loader) userConfigPath() string {
	if l.Home == "" {
		return ""
	}
	return filepath.Join(l.Home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches the working directory and its parents.
func (l *Loader) findProjectConfig() string {
	if l.WorkDir == "" {
		return ""
	}
	dir := l.WorkDir
	for {
		p := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
