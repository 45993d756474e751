// Package storage picks and opens the one backend a process uses.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hotboard/adapters/cloudkv"
	"hotboard/adapters/memory"
	"hotboard/adapters/redis"
	"hotboard/config"
	"hotboard/engine"
)

var (
	_ engine.Backend            = (*redis.Store)(nil)
	_ engine.BoundedIncrementer = (*redis.Store)(nil)
	_ engine.Backend            = (*cloudkv.Client)(nil)
	_ engine.Backend            = (*memory.Store)(nil)
	_ engine.BoundedIncrementer = (*memory.Store)(nil)
)

// Resolve names the adapter that Open would use for cfg.
func Resolve(cfg config.StorageConfig) string {
	if cfg.Adapter != "" && cfg.Adapter != config.AdapterAuto {
		return cfg.Adapter
	}
	switch {
	case strings.TrimSpace(cfg.Redis.URL) != "":
		return config.AdapterRedis
	case strings.TrimSpace(cfg.CloudKV.URL) != "" && strings.TrimSpace(cfg.CloudKV.Token) != "":
		return config.AdapterCloudKV
	default:
		return config.AdapterMemory
	}
}

// Open creates the backend chosen by Resolve. A configured Redis that does
// not answer is an error; there is no silent fallback to memory. The caller
// owns the returned handle and must Close it.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (engine.Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adapter := Resolve(cfg)
	var (
		backend engine.Backend
		err     error
	)
	switch adapter {
	case config.AdapterRedis:
		backend, err = redis.New(ctx, cfg.Redis)
	case config.AdapterCloudKV:
		backend, err = cloudkv.New(cfg.CloudKV)
	case config.AdapterMemory:
		backend = memory.New()
		logger.WarnContext(ctx, "using process-local memory backend; data is lost on restart and not shared between instances")
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", adapter)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", adapter, err)
	}

	logger.InfoContext(ctx, "storage backend ready", "backend", backend.Kind())
	return backend, nil
}
