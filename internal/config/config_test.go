package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if !cfg.ServiceEnabled {
		t.Error("service should be enabled by default")
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("history limit: got %d, want 100", cfg.HistoryLimit)
	}
	if cfg.AutoClearDays != 0 {
		t.Errorf("auto clear days: got %d, want 0", cfg.AutoClearDays)
	}
	if cfg.Theme != ThemeSystem {
		t.Errorf("theme: got %q, want %q", cfg.Theme, ThemeSystem)
	}
	if cfg.APIPort != 9890 {
		t.Errorf("api port: got %d, want 9890", cfg.APIPort)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.HistoryLimit = 250
	cfg.AutoClearDays = 7
	cfg.Theme = ThemeDark
	cfg.ServiceEnabled = false

	if err := cfg.Save(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if loaded.HistoryLimit != 250 || loaded.AutoClearDays != 7 {
		t.Errorf("retention settings lost: %+v", loaded)
	}
	if loaded.Theme != ThemeDark {
		t.Errorf("theme: got %q, want %q", loaded.Theme, ThemeDark)
	}
	if loaded.ServiceEnabled {
		t.Error("service enabled flag lost")
	}
}

func TestLoad_ClampsOutOfRangeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"history_limit": -5,
		"auto_clear_days": -1,
		"api_port": 99999,
		"poll_interval_ms": 10,
		"reap_interval_min": 0,
		"theme": "neon"
	}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("history limit not clamped: got %d", cfg.HistoryLimit)
	}
	if cfg.AutoClearDays != 0 {
		t.Errorf("auto clear days not clamped: got %d", cfg.AutoClearDays)
	}
	if cfg.APIPort != 9890 {
		t.Errorf("api port not clamped: got %d", cfg.APIPort)
	}
	if cfg.PollIntervalMS != 500 {
		t.Errorf("poll interval not clamped: got %d", cfg.PollIntervalMS)
	}
	if cfg.ReapIntervalMin != 30 {
		t.Errorf("reap interval not clamped: got %d", cfg.ReapIntervalMin)
	}
	if cfg.Theme != ThemeSystem {
		t.Errorf("theme not clamped: got %q", cfg.Theme)
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
