package engine

import (
	"context"
	"errors"
	"log/slog"

	"hotboard/core"
)

// HotboardService wires one backend, the event bus and the three aggregates
// into the operation set the request layer calls.
type HotboardService struct {
	backend  Backend
	bus      *EventBus
	logger   *slog.Logger
	board    *Leaderboard
	demerits *DemeritTracker
	counters *CounterStore
}

// NewHotboardService builds the service. The backend handle is owned by the
// caller; Close only stops the event bus.
func NewHotboardService(backend Backend, bus *EventBus, logger *slog.Logger, opts ...LeaderboardOption) *HotboardService {
	if backend == nil || bus == nil {
		panic("NewHotboardService requires non-nil backend and bus")
	}
	if logger == nil {
		logger = slog.Default()
	}
	lbOpts := append([]LeaderboardOption{
		WithLeaderboardPublisher(bus),
		WithLeaderboardLogger(logger),
	}, opts...)
	return &HotboardService{
		backend:  backend,
		bus:      bus,
		logger:   logger,
		board:    NewLeaderboard(backend, lbOpts...),
		demerits: NewDemeritTracker(backend, bus, logger),
		counters: NewCounterStore(backend, bus, logger),
	}
}

func (s *HotboardService) Leaderboard() *Leaderboard { return s.board }
func (s *HotboardService) Demerits() *DemeritTracker { return s.demerits }
func (s *HotboardService) Counters() *CounterStore { return s.counters }
func (s *HotboardService) BackendKind() string { return s.backend.Kind() }

// Subscribe convenience method.
func (s *HotboardService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *HotboardService) RecordSearch(ctx context.Context, term string) error {
	return s.logged(ctx, "record search term", s.board.Record(ctx, term))
}

func (s *HotboardService) HotSearches(ctx context.Context, n int) ([]core.RankedEntry, error) {
	entries, err := s.board.TopN(ctx, n)
	return entries, s.logged(ctx, "fetch leaderboard", err)
}

func (s *HotboardService) DeleteSearch(ctx context.Context, term string) error {
	return s.logged(ctx, "delete search term", s.board.Delete(ctx, term))
}

func (s *HotboardService) ClearSearches(ctx context.Context) error {
	return s.logged(ctx, "clear leaderboard", s.board.Clear(ctx))
}

func (s *HotboardService) MarkInvalid(ctx context.Context, url string) error {
	_, err := s.demerits.MarkInvalid(ctx, url)
	return s.logged(ctx, "mark resource invalid", err)
}

func (s *HotboardService) InvalidStatus(ctx context.Context, urls []string) (map[string]bool, error) {
	status, err := s.demerits.BatchStatus(ctx, urls)
	return status, s.logged(ctx, "batch invalid status", err)
}

func (s *HotboardService) AllViews(ctx context.Context) (map[string]int64, error) {
	views, err := s.counters.GetAll(ctx)
	return views, s.logged(ctx, "fetch view counters", err)
}

func (s *HotboardService) CountView(ctx context.Context, id string) (int64, error) {
	n, err := s.counters.Increment(ctx, id)
	return n, s.logged(ctx, "count view", err)
}

// Ping checks the backend.
func (s *HotboardService) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *HotboardService) Close() { s.bus.Close() }

// logged records backend failures; validation and not-found outcomes are
// the caller's business and stay quiet.
func (s *HotboardService) logged(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrInvalidInput) || errors.Is(err, core.ErrNotFound) {
		return err
	}
	s.logger.ErrorContext(ctx, op+" failed", "backend", s.backend.Kind(), "error", err)
	return err
}
