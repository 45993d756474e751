package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"hotboard/core"
)

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	validAdapters := []string{AdapterAuto, AdapterMemory, AdapterRedis, AdapterCloudKV}
	if !slices.Contains(validAdapters, s.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	// Validate adapter-specific configs
	switch s.Adapter {
	case AdapterRedis:
		if s.Redis.URL == "" && s.Redis.Addr == "" {
			errs = append(errs, "redis config: url or addr is required")
		}
	case AdapterCloudKV:
		if s.CloudKV.URL == "" || s.CloudKV.Token == "" {
			errs = append(errs, "cloudkv config: url and token are required")
		}
	}

	if s.CloudKV.URL != "" {
		if u, err := url.Parse(s.CloudKV.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "cloudkv config: url must be absolute")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates leaderboard bounds
func (l *LeaderboardConfig) Validate() error {
	var errs []string
	if l.Size <= 0 {
		errs = append(errs, "size must be positive")
	}
	if l.TopN <= 0 {
		errs = append(errs, "top_n must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, l.Level) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, l.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr"}
	if !slices.Contains(validOutputs, l.Output) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	var errs []string

	if m.Enabled {
		if m.Address == "" {
			errs = append(errs, "address cannot be empty when metrics are enabled")
		}

		if m.Path == "" {
			errs = append(errs, "path cannot be empty when metrics are enabled")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates webhook targets and event names
func (w *WebhookConfig) Validate() error {
	var errs []string

	for i, raw := range w.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("urls[%d] must be an absolute http(s) url", i))
		}
	}
	for i, name := range w.Events {
		if !core.EventType(name).Valid() {
			errs = append(errs, fmt.Sprintf("events[%d] %q is not a known event", i, name))
		}
	}
	if len(w.URLs) > 0 && w.Timeout <= 0 {
		errs = append(errs, "timeout must be positive when urls are set")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
