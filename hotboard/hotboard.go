// Package hotboard assembles a ready-to-use HotboardService from functional options.
package hotboard

import (
	"log/slog"

	mem "hotboard/adapters/memory"
	"hotboard/core"
	"hotboard/engine"
	"hotboard/integrations/webhook"
	"hotboard/metrics"
	"hotboard/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	backend engine.Backend
	mode    engine.DispatchMode
	hub     *realtime.Hub
	logger  *slog.Logger
	metrics *metrics.Manager
	sink    *webhook.Sink
	events  []core.EventType
	lbOpts  []engine.LeaderboardOption
}

// WithBackend sets the storage backend.
func WithBackend(b engine.Backend) Option { return func(c *config) { c.backend = b } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithMetrics instruments the backend and counts every published event.
func WithMetrics(m *metrics.Manager) Option { return func(c *config) { c.metrics = m } }

// WithWebhook forwards the listed event types to sink.
func WithWebhook(sink *webhook.Sink, events ...core.EventType) Option {
	return func(c *config) {
		c.sink = sink
		c.events = append([]core.EventType{}, events...)
	}
}

// WithLeaderboard passes options through to the leaderboard engine.
func WithLeaderboard(opts ...engine.LeaderboardOption) Option {
	return func(c *config) { c.lbOpts = append(c.lbOpts, opts...) }
}

// New builds a configured HotboardService. If not provided, defaults are used:
//   - backend: in-memory
//   - dispatch: async
//   - logger: slog.Default()
func New(opts ...Option) *engine.HotboardService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.backend == nil {
		cfg.logger.Warn("no backend configured, using process-local memory")
		cfg.backend = mem.New()
	}
	backend := cfg.backend
	if cfg.metrics != nil {
		backend = cfg.metrics.InstrumentBackend(backend)
	}

	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewHotboardService(backend, bus, cfg.logger, cfg.lbOpts...)
	if cfg.metrics != nil {
		bus.Subscribe("", cfg.metrics.ObserveEvent)
	}
	if cfg.hub != nil {
		bus.Subscribe("", cfg.hub.Broadcast)
	}
	if cfg.sink != nil {
		for _, typ := range cfg.events {
			bus.Subscribe(typ, cfg.sink.OnEvent)
		}
	}
	return svc
}
