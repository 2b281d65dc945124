// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	// Root is the directory tool paths are confined to. Defaults to the
	// process working directory.
	Root    string        `toml:"root"`
	Journal JournalConfig `toml:"journal"`
	Log     LogConfig     `toml:"log"`
}

// JournalConfig holds undo journal settings.
type JournalConfig struct {
	// Path to the SQLite database. Defaults to <data dir>/journal.db.
	Path string `toml:"path"`
	// Keep is the number of snapshots retained per file.
	Keep int `toml:"keep"`
}

// KeepOrDefault returns the configured retention or 20 snapshots if unset.
func (j JournalConfig) KeepOrDefault() int {
	if j.Keep <= 0 {
		return 20
	}
	return j.Keep
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error. Defaults to info.
	Level string `toml:"level"`
}

// LevelOrDefault returns the configured level or "info" if unset.
func (l LogConfig) LevelOrDefault() string {
	if l.Level == "" {
		return "info"
	}
	return l.Level
}

// Load reads configuration from a TOML file and applies environment variable
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Root != "" {
		info, err := os.Stat(c.Root)
		if err != nil {
			errs = append(errs, fmt.Errorf("root=%q does not exist", c.Root))
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("root=%q is not a directory", c.Root))
		}
	}

	switch c.Log.LevelOrDefault() {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level=%q must be one of debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	for _, setter := range []struct {
		env   string
		apply func(string)
	}{
		{"ETCH_ROOT", func(v string) {
			if v != "" {
				cfg.Root = v
			}
		}},
		{"ETCH_JOURNAL_PATH", func(v string) {
			if v != "" {
				cfg.Journal.Path = v
			}
		}},
		{"ETCH_LOG_LEVEL", func(v string) {
			if v != "" {
				cfg.Log.Level = v
			}
		}},
	} {
		setter.apply(os.Getenv(setter.env))
	}
}

// DataDir returns the path to the etch data directory (~/.config/etch).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "etch"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}
