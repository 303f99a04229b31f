package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the persisted preference set plus daemon wiring. It lives as a
// JSON file under the base directory and is opaque to the core packages,
// which receive individual values at construction time.
type Config struct {
	ServiceEnabled    bool   `json:"service_enabled"`
	HistoryLimit      int    `json:"history_limit"`
	AutoClearDays     int    `json:"auto_clear_days"` // 0 disables age-based clearing
	ShowNotifications bool   `json:"show_notifications"`
	StartOnBoot       bool   `json:"start_on_boot"`
	Theme             string `json:"theme"` // "light", "dark" or "system"

	DBPath          string `json:"db_path"`
	BlobPath        string `json:"blob_path"`
	APIPort         int    `json:"api_port"`
	PollIntervalMS  int    `json:"poll_interval_ms"`
	ReapIntervalMin int    `json:"reap_interval_min"`
}

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

func Default() *Config {
	return &Config{
		ServiceEnabled:    true,
		HistoryLimit:      100,
		AutoClearDays:     0,
		ShowNotifications: true,
		StartOnBoot:       false,
		Theme:             ThemeSystem,

		APIPort:         9890,
		PollIntervalMS:  500,
		ReapIntervalMin: 30,
	}
}

// BaseDir is where the database, blobs, config and pid file live.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".clipd"), nil
}

// Load reads the config at path, falling back to defaults when the file does
// not exist. Out-of-range values are clamped, not rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.validate()
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) validate() {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = Default().HistoryLimit
	}
	if c.AutoClearDays < 0 {
		c.AutoClearDays = 0
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		c.APIPort = Default().APIPort
	}
	if c.PollIntervalMS < 100 {
		c.PollIntervalMS = Default().PollIntervalMS
	}
	if c.ReapIntervalMin <= 0 {
		c.ReapIntervalMin = Default().ReapIntervalMin
	}
	switch c.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		c.Theme = ThemeSystem
	}
}
