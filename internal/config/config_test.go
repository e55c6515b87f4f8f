package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("api base url = %q, want %q", cfg.APIBaseURL, DefaultAPIBaseURL)
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", cfg.PollInterval())
	}
	if cfg.NotificationInterval() != 8*time.Second {
		t.Fatalf("notification interval = %v, want 8s", cfg.NotificationInterval())
	}
	if cfg.MaxPollAttempts != 0 {
		t.Fatalf("max poll attempts = %d, want unbounded", cfg.MaxPollAttempts)
	}
	if cfg.QueryMinimum() != 3 {
		t.Fatalf("query minimum = %d, want 3", cfg.QueryMinimum())
	}
}

func TestLoadJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(jsonPath, []byte(`{"api_base_url":"http://archive:9000","poll_interval_ms":250,"max_poll_attempts":40}`), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("api_base_url: http://archive:9100\nredis:\n  host: cache\n  port: 6380\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	cfg, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load(json) error = %v", err)
	}
	if cfg.APIBaseURL != "http://archive:9000" || cfg.PollInterval() != 250*time.Millisecond || cfg.MaxPollAttempts != 40 {
		t.Fatalf("unexpected json config: %+v", cfg)
	}
	if cfg.NotificationInterval() != DefaultNotifyInterval {
		t.Fatalf("unset fields should keep defaults, got %v", cfg.NotificationInterval())
	}

	cfg, err = Load(yamlPath)
	if err != nil {
		t.Fatalf("Load(yaml) error = %v", err)
	}
	if cfg.APIBaseURL != "http://archive:9100" || !cfg.RedisEnabled() || cfg.Redis.Port != 6380 {
		t.Fatalf("unexpected yaml config: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOCSEARCH_API_BASE_URL", "http://override:8001")
	t.Setenv("DOCSEARCH_MAX_POLL_ATTEMPTS", "12")
	t.Setenv("DOCSEARCH_POLL_INTERVAL_MS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "http://override:8001" {
		t.Fatalf("api base url = %q", cfg.APIBaseURL)
	}
	if cfg.MaxPollAttempts != 12 {
		t.Fatalf("max poll attempts = %d, want 12", cfg.MaxPollAttempts)
	}
	if cfg.PollInterval() != DefaultPollInterval {
		t.Fatalf("invalid env value should be ignored, got %v", cfg.PollInterval())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}

	if err := os.WriteFile(path, []byte(`{"max_poll_attempts":-1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative poll cap")
	}
}
