package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Root != "" {
		t.Errorf("root = %q, want empty (cwd)", cfg.Root)
	}
	if cfg.Journal.KeepOrDefault() != 20 {
		t.Errorf("keep = %d, want 20", cfg.Journal.KeepOrDefault())
	}
	if cfg.Log.LevelOrDefault() != "info" {
		t.Errorf("level = %q, want info", cfg.Log.LevelOrDefault())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.LevelOrDefault() != "info" {
		t.Errorf("level = %q, want info", cfg.Log.LevelOrDefault())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etch.toml")
	content := `
root = "` + dir + `"

[journal]
keep = 5

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Root != dir {
		t.Errorf("root = %q, want %q", cfg.Root, dir)
	}
	if cfg.Journal.Keep != 5 {
		t.Errorf("keep = %d, want 5", cfg.Journal.Keep)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ETCH_ROOT", dir)
	t.Setenv("ETCH_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Root != dir {
		t.Errorf("root = %q, want %q", cfg.Root, dir)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Log.Level)
	}
}

func TestValidateBadLevel(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "verbose"}}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid level should fail validation")
	}
	if !strings.Contains(err.Error(), "log.level") {
		t.Errorf("error: %v", err)
	}
}

func TestValidateBadRoot(t *testing.T) {
	cfg := &Config{Root: filepath.Join(t.TempDir(), "missing")}
	if err := cfg.Validate(); err == nil {
		t.Fatal("nonexistent root should fail validation")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Root: filepath.Join(t.TempDir(), "missing"),
		Log:  LogConfig{Level: "verbose"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "root=") || !strings.Contains(msg, "log.level") {
		t.Errorf("both errors should be reported: %v", err)
	}
}
