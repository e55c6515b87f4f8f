package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the client.
type Config struct {
	APIBaseURL             string      `json:"api_base_url" yaml:"api_base_url"`
	PollIntervalMs         int         `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	NotificationIntervalMs int         `json:"notification_interval_ms" yaml:"notification_interval_ms"`
	MaxPollAttempts        int         `json:"max_poll_attempts" yaml:"max_poll_attempts"`
	RequestTimeoutMs       int         `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	MinQueryLength         int         `json:"min_query_length" yaml:"min_query_length"`
	ServerAddress          string      `json:"server_address" yaml:"server_address"`
	DownloadDir            string      `json:"download_dir" yaml:"download_dir"`
	WatchDir               string      `json:"watch_dir" yaml:"watch_dir"`
	WatchDebounceMs        int         `json:"watch_debounce_ms" yaml:"watch_debounce_ms"`
	EventHistory           int         `json:"event_history" yaml:"event_history"`
	Redis                  RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig enables the optional event relay when Host is set.
type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Channel  string `json:"channel" yaml:"channel"`
}

const (
	DefaultAPIBaseURL      = "http://127.0.0.1:8001"
	DefaultPollInterval    = 2 * time.Second
	DefaultNotifyInterval  = 8 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMinQueryLength  = 3
	DefaultServerAddress   = ":8090"
	DefaultDownloadDir     = "./downloads"
	DefaultWatchDebounce   = 500 * time.Millisecond
	DefaultEventHistory    = 500
	DefaultRedisEventTopic = "docsearch:events"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		APIBaseURL:             DefaultAPIBaseURL,
		PollIntervalMs:         int(DefaultPollInterval / time.Millisecond),
		NotificationIntervalMs: int(DefaultNotifyInterval / time.Millisecond),
		RequestTimeoutMs:       int(DefaultRequestTimeout / time.Millisecond),
		MinQueryLength:         DefaultMinQueryLength,
		ServerAddress:          DefaultServerAddress,
		DownloadDir:            DefaultDownloadDir,
		WatchDebounceMs:        int(DefaultWatchDebounce / time.Millisecond),
		EventHistory:           DefaultEventHistory,
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error; defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("DOCSEARCH_CONFIG")
	}
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(absPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	default:
		if err := decode(absPath, data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIBaseURL = envString("DOCSEARCH_API_BASE_URL", cfg.APIBaseURL)
	cfg.PollIntervalMs = envInt("DOCSEARCH_POLL_INTERVAL_MS", cfg.PollIntervalMs)
	cfg.NotificationIntervalMs = envInt("DOCSEARCH_NOTIFICATION_INTERVAL_MS", cfg.NotificationIntervalMs)
	cfg.MaxPollAttempts = envInt("DOCSEARCH_MAX_POLL_ATTEMPTS", cfg.MaxPollAttempts)
	cfg.RequestTimeoutMs = envInt("DOCSEARCH_REQUEST_TIMEOUT_MS", cfg.RequestTimeoutMs)
	cfg.ServerAddress = envString("DOCSEARCH_SERVER_ADDRESS", cfg.ServerAddress)
	cfg.DownloadDir = envString("DOCSEARCH_DOWNLOAD_DIR", cfg.DownloadDir)
	cfg.WatchDir = envString("DOCSEARCH_WATCH_DIR", cfg.WatchDir)
	cfg.Redis.Host = envString("DOCSEARCH_REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = envInt("DOCSEARCH_REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = envString("DOCSEARCH_REDIS_PASSWORD", cfg.Redis.Password)
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api_base_url must be configured")
	}
	if c.MaxPollAttempts < 0 {
		return fmt.Errorf("max_poll_attempts cannot be negative")
	}
	if c.PollIntervalMs < 0 || c.NotificationIntervalMs < 0 {
		return fmt.Errorf("intervals cannot be negative")
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return millis(c.PollIntervalMs, DefaultPollInterval)
}

func (c *Config) NotificationInterval() time.Duration {
	return millis(c.NotificationIntervalMs, DefaultNotifyInterval)
}

func (c *Config) RequestTimeout() time.Duration {
	return millis(c.RequestTimeoutMs, DefaultRequestTimeout)
}

func (c *Config) WatchDebounce() time.Duration {
	return millis(c.WatchDebounceMs, DefaultWatchDebounce)
}

// QueryMinimum is the shortest trimmed query sent to the search endpoint.
func (c *Config) QueryMinimum() int {
	if c.MinQueryLength <= 0 {
		return DefaultMinQueryLength
	}
	return c.MinQueryLength
}

// RedisEnabled reports whether the event relay should be started.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Host) != ""
}

func millis(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Millisecond
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
