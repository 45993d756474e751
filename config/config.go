package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hotboard/adapters/cloudkv"
	"hotboard/adapters/redis"
	"hotboard/core"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Storage adapters accepted by StorageConfig.Adapter.
const (
	AdapterAuto    = "auto"
	AdapterMemory  = "memory"
	AdapterRedis   = "redis"
	AdapterCloudKV = "cloudkv"
)

// ConfigPathEnv names the variable holding an optional YAML config file.
const ConfigPathEnv = "HOTBOARD_CONFIG"

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" koanf:"environment" env:"HOTBOARD_ENV"`
	Profile     string      `json:"profile" koanf:"profile" env:"HOTBOARD_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server" koanf:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage" koanf:"storage"`

	// Leaderboard and term filter tuning
	Leaderboard LeaderboardConfig `json:"leaderboard" koanf:"leaderboard"`
	Filter      FilterConfig      `json:"filter" koanf:"filter"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" koanf:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics" koanf:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security" koanf:"security"`

	// Event fan-out
	Realtime RealtimeConfig `json:"realtime" koanf:"realtime"`
	Webhook  WebhookConfig  `json:"webhook" koanf:"webhook"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" koanf:"address" env:"HOTBOARD_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" koanf:"path_prefix" env:"HOTBOARD_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" koanf:"cors_origin" env:"HOTBOARD_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" koanf:"read_timeout" env:"HOTBOARD_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" koanf:"write_timeout" env:"HOTBOARD_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" koanf:"idle_timeout" env:"HOTBOARD_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" koanf:"read_header_timeout" env:"HOTBOARD_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" koanf:"shutdown_timeout" env:"HOTBOARD_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects and configures the backend.
// With Adapter "auto" a Redis URL wins, then a cloud KV URL and token, then memory.
type StorageConfig struct {
	Adapter string         `json:"adapter" koanf:"adapter" env:"HOTBOARD_STORAGE_ADAPTER"`
	Redis   redis.Config   `json:"redis,omitempty" koanf:"redis"`
	CloudKV cloudkv.Config `json:"cloudkv,omitempty" koanf:"cloudkv"`
}

// LeaderboardConfig bounds the hot-search board.
type LeaderboardConfig struct {
	Size int `json:"size" koanf:"size" env:"HOTBOARD_LEADERBOARD_SIZE"`
	TopN int `json:"top_n" koanf:"top_n" env:"HOTBOARD_LEADERBOARD_TOP_N"`
}

// FilterConfig extends the built-in blocklist.
type FilterConfig struct {
	Blocklist []string `json:"blocklist,omitempty" koanf:"blocklist" env:"HOTBOARD_FILTER_BLOCKLIST"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" koanf:"level" env:"HOTBOARD_LOG_LEVEL"`
	Format     string            `json:"format" koanf:"format" env:"HOTBOARD_LOG_FORMAT"`
	Output     string            `json:"output" koanf:"output" env:"HOTBOARD_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" koanf:"attributes" env:"HOTBOARD_LOG_ATTRIBUTES"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" koanf:"enabled" env:"HOTBOARD_METRICS_ENABLED"`
	Address       string `json:"address" koanf:"address" env:"HOTBOARD_METRICS_ADDR"`
	Path          string `json:"path" koanf:"path" env:"HOTBOARD_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" koanf:"collect_system" env:"HOTBOARD_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" koanf:"enable_rate_limit" env:"HOTBOARD_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" koanf:"rate_limit"`
	APIKeys         []string        `json:"api_keys,omitempty" koanf:"api_keys" env:"HOTBOARD_SECURITY_API_KEYS"`
	// ClearPassword guards the destructive leaderboard endpoints. Empty disables them.
	ClearPassword string `json:"clear_password,omitempty" koanf:"clear_password" env:"CLEAR_PASSWORD"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" koanf:"requests_per_minute" env:"HOTBOARD_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" koanf:"burst_size" env:"HOTBOARD_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" koanf:"cleanup_interval" env:"HOTBOARD_SECURITY_RATE_LIMIT_CLEANUP"`
}

// RealtimeConfig toggles the websocket event stream.
type RealtimeConfig struct {
	Enabled bool   `json:"enabled" koanf:"enabled" env:"HOTBOARD_REALTIME_ENABLED"`
	Path    string `json:"path" koanf:"path" env:"HOTBOARD_REALTIME_PATH"`
}

// WebhookConfig lists endpoints notified about selected events.
type WebhookConfig struct {
	URLs    []string      `json:"urls,omitempty" koanf:"urls" env:"HOTBOARD_WEBHOOK_URLS"`
	Events  []string      `json:"events,omitempty" koanf:"events" env:"HOTBOARD_WEBHOOK_EVENTS"`
	Timeout time.Duration `json:"timeout" koanf:"timeout" env:"HOTBOARD_WEBHOOK_TIMEOUT"`
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load builds the configuration from defaults, the optional file named by
// HOTBOARD_CONFIG and the environment, then validates it.
func Load() (*Config, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return LoadFromFile(path)
	}

	cfg := DefaultConfig()

	// Load from environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".yaml", ".yml", ".json":
	default:
		return errors.New("config file must have a .yaml, .yml or .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML (or JSON) file
func LoadFromFile(path string) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	cfg := DefaultConfig()
	if err := loadFromFile(cfg, filepath.Clean(path)); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: AdapterAuto,
			Redis:   redis.DefaultConfig(),
			CloudKV: cloudkv.DefaultConfig(),
		},
		Leaderboard: LeaderboardConfig{
			Size: core.DefaultLeaderboardSize,
			TopN: core.DefaultTopN,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Address:       ":9090",
			Path:          "/metrics",
			CollectSystem: true,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		Realtime: RealtimeConfig{
			Enabled: true,
			Path:    "/ws",
		},
		Webhook: WebhookConfig{
			Events:  []string{string(core.EventResourceInvalidated)},
			Timeout: 5 * time.Second,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	// Validate environment
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	// Validate server config
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	// Validate storage config
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Leaderboard.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("leaderboard config: %v", err))
	}

	// Validate logging config
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	// Validate metrics config
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("metrics config: %v", err))
	}

	// Validate security config
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Webhook.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhook config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

const redacted = "[REDACTED]"

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	// Create a copy for redaction
	cfg := *c

	// Redact sensitive information
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = redacted
	}
	if cfg.Storage.Redis.URL != "" {
		if u, err := url.Parse(cfg.Storage.Redis.URL); err == nil {
			cfg.Storage.Redis.URL = u.Redacted()
		} else {
			cfg.Storage.Redis.URL = redacted
		}
	}
	if cfg.Storage.CloudKV.Token != "" {
		cfg.Storage.CloudKV.Token = redacted
	}
	if cfg.Security.ClearPassword != "" {
		cfg.Security.ClearPassword = redacted
	}
	if len(cfg.Security.APIKeys) > 0 {
		keys := make([]string, len(cfg.Security.APIKeys))
		for i := range keys {
			keys[i] = redacted
		}
		cfg.Security.APIKeys = keys
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
