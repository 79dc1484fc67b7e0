// ABOUTME: Unit tests for configuration load, save, and overrides
// ABOUTME: Uses XDG_CONFIG_HOME redirection to isolate the filesystem

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.GetTheme() != ThemeDark {
		t.Errorf("expected dark default theme, got %q", cfg.GetTheme())
	}
	if cfg.Onboarded {
		t.Error("fresh config should not be onboarded")
	}
	if cfg.GetRedisAddr() != "localhost:6379" {
		t.Errorf("expected default redis addr, got %q", cfg.GetRedisAddr())
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{
		PostgresURL:  "postgres://localhost/trackmate",
		Theme:        ThemeLight,
		Onboarded:    true,
		SessionToken: "tok-123",
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	info, err := os.Stat(GetConfigPath())
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config holds a token, expected 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.PostgresURL != cfg.PostgresURL {
		t.Errorf("expected %q, got %q", cfg.PostgresURL, loaded.PostgresURL)
	}
	if loaded.GetTheme() != ThemeLight {
		t.Errorf("expected light theme, got %q", loaded.GetTheme())
	}
	if !loaded.Onboarded {
		t.Error("onboarded flag lost on reload")
	}
	if loaded.SessionToken != "tok-123" {
		t.Errorf("session token lost, got %q", loaded.SessionToken)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "trackmate", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("expected error for corrupt config")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TRACKMATE_POSTGRES_URL", "postgres://env-host/trackmate")
	t.Setenv("TRACKMATE_REDIS_ADDR", "env-host:6380")

	cfg := &Config{
		PostgresURL: "postgres://file-host/trackmate",
		RedisAddr:   "file-host:6379",
	}
	if got := cfg.GetPostgresURL(); got != "postgres://env-host/trackmate" {
		t.Errorf("env should win for postgres url, got %q", got)
	}
	if got := cfg.GetRedisAddr(); got != "env-host:6380" {
		t.Errorf("env should win for redis addr, got %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"~", home},
		{"~/data", filepath.Join(home, "data")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.input); got != tt.expected {
			t.Errorf("ExpandPath(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
