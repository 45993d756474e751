package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"hotboard/api/httpapi"
	"hotboard/config"
	"hotboard/core"
	"hotboard/engine"
	"hotboard/hotboard"
	"hotboard/integrations/webhook"
	"hotboard/metrics"
	"hotboard/realtime"
	"hotboard/storage"
	"hotboard/termfilter"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Backend engine.Backend
	Metrics *metrics.Manager
	Service *engine.HotboardService
	Handler http.Handler
	Server  *http.Server
}

func provideConfig() (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg, os.Stdout, os.Stderr)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

// provideBackend opens the configured backend; the cleanup closes it.
func provideBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Backend, func(), error) {
	backend, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := backend.Close(); err != nil {
			logger.Error("close storage backend", "backend", backend.Kind(), "error", err)
		}
	}
	return backend, cleanup, nil
}

// provideMetrics returns nil when metrics are disabled.
func provideMetrics(cfg *config.Config) *metrics.Manager {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewManager(metrics.WithSystemCollectors(cfg.Metrics.CollectSystem))
}

func provideService(
	cfg *config.Config,
	logger *slog.Logger,
	hub *realtime.Hub,
	backend engine.Backend,
	m *metrics.Manager,
) (*engine.HotboardService, func()) {
	opts := []hotboard.Option{
		hotboard.WithBackend(backend),
		hotboard.WithLogger(logger),
		hotboard.WithDispatchMode(engine.DispatchAsync),
		hotboard.WithLeaderboard(
			engine.WithLimit(cfg.Leaderboard.Size),
			engine.WithTermFilter(termfilter.New(cfg.Filter.Blocklist...)),
		),
	}
	if cfg.Realtime.Enabled {
		opts = append(opts, hotboard.WithRealtime(hub))
	}
	if m != nil {
		opts = append(opts, hotboard.WithMetrics(m))
	}
	if len(cfg.Webhook.URLs) > 0 {
		events := make([]core.EventType, len(cfg.Webhook.Events))
		for i, name := range cfg.Webhook.Events {
			events[i] = core.EventType(name)
		}
		sink := webhook.New(cfg.Webhook.URLs, webhook.WithTimeout(cfg.Webhook.Timeout), webhook.WithLogger(logger))
		opts = append(opts, hotboard.WithWebhook(sink, events...))
	}
	svc := hotboard.New(opts...)
	return svc, svc.Close
}

func provideHandler(svc *engine.HotboardService, hub *realtime.Hub, cfg *config.Config, m *metrics.Manager, logger *slog.Logger) http.Handler {
	opts := httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		ClearPassword:    cfg.Security.ClearPassword,
		TopN:             cfg.Leaderboard.TopN,
		RealtimePath:     cfg.Realtime.Path,
		Logger:           logger,
	}
	if m != nil {
		opts.Observer = m
	}
	if !cfg.Realtime.Enabled {
		hub = nil
	}
	return httpapi.NewMux(svc, hub, opts)
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// metricsServer exposes the registry on its own listener, or nil when disabled.
func metricsServer(cfg *config.Config, m *metrics.Manager) *http.Server {
	if m == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, m.Handler())
	return &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := stdout
	if cfg.Logging.Output == "stderr" {
		out = stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}
