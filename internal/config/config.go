// ABOUTME: Trackmate configuration management with environment overrides
// ABOUTME: Handles connection settings, UI preferences, and the saved session

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Themes the terminal UI supports.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Config stores trackmate configuration. Connection fields may also come
// from the environment, which wins over the file.
type Config struct {
	// PostgresURL is the relational store DSN.
	PostgresURL string `json:"postgres_url,omitempty"`

	// RedisAddr is the presence store address, host:port.
	RedisAddr string `json:"redis_addr,omitempty"`

	// GoogleClientID is the OAuth audience for federated sign-in.
	// Empty disables the google login path.
	GoogleClientID string `json:"google_client_id,omitempty"`

	// SessionToken is the saved session restored on startup.
	SessionToken string `json:"session_token,omitempty"`

	// Theme selects the UI theme: "dark" (default) or "light".
	Theme string `json:"theme,omitempty"`

	// Onboarded records that the first-run walkthrough has been shown.
	Onboarded bool `json:"onboarded,omitempty"`
}

// GetTheme returns the configured theme, defaulting to dark.
func (c *Config) GetTheme() string {
	if c.Theme == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// GetPostgresURL returns the DSN, with TRACKMATE_POSTGRES_URL taking
// precedence over the file.
func (c *Config) GetPostgresURL() string {
	if url := os.Getenv("TRACKMATE_POSTGRES_URL"); url != "" {
		return url
	}
	return c.PostgresURL
}

// GetRedisAddr returns the presence store address, with TRACKMATE_REDIS_ADDR
// taking precedence, defaulting to localhost.
func (c *Config) GetRedisAddr() string {
	if addr := os.Getenv("TRACKMATE_REDIS_ADDR"); addr != "" {
		return addr
	}
	if c.RedisAddr == "" {
		return "localhost:6379"
	}
	return c.RedisAddr
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "trackmate", "config.json")
}

// Load reads config from disk. A missing file yields defaults; the file is
// created on the first Save.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes config to disk atomically. The file holds a session token, so
// it is written owner-only.
func (c *Config) Save() error {
	path := GetConfigPath()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
