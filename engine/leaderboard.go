package engine

import (
	"context"
	"fmt"
	"log/slog"

	"hotboard/core"
	"hotboard/termfilter"
)

// TermFilter gates which normalized terms are recorded.
type TermFilter interface {
	IsForbidden(term string) bool
}

// Leaderboard maintains the bounded hot-searches ranked set.
type Leaderboard struct {
	store  RankedSetStore
	del    ScalarStore
	filter TermFilter
	pub    Publisher
	logger *slog.Logger
	key    string
	limit  int64
}

// LeaderboardOption configures a Leaderboard.
type LeaderboardOption func(*Leaderboard)

// WithTermFilter replaces the default term filter.
func WithTermFilter(f TermFilter) LeaderboardOption {
	return func(l *Leaderboard) {
		if f != nil {
			l.filter = f
		}
	}
}

// WithLimit sets the maximum number of retained entries.
func WithLimit(n int) LeaderboardOption {
	return func(l *Leaderboard) {
		if n > 0 {
			l.limit = int64(n)
		}
	}
}

// WithLeaderboardPublisher routes leaderboard events to p.
func WithLeaderboardPublisher(p Publisher) LeaderboardOption {
	return func(l *Leaderboard) { l.pub = p }
}

// WithLeaderboardLogger sets the logger.
func WithLeaderboardLogger(lg *slog.Logger) LeaderboardOption {
	return func(l *Leaderboard) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLeaderboard builds the hot-searches leaderboard over backend.
func NewLeaderboard(backend Backend, opts ...LeaderboardOption) *Leaderboard {
	if backend == nil {
		panic("NewLeaderboard requires a non-nil backend")
	}
	l := &Leaderboard{
		store:  backend,
		del:    backend,
		filter: termfilter.New(),
		logger: slog.Default(),
		key:    core.KeyHotSearches,
		limit:  core.DefaultLeaderboardSize,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Limit returns the size bound.
func (l *Leaderboard) Limit() int64 { return l.limit }

// Record counts one search for term. Blank terms fail with core.ErrInvalidInput.
// Forbidden terms succeed without being stored.
func (l *Leaderboard) Record(ctx context.Context, term string) error {
	normalized, err := core.NormalizeTerm(term)
	if err != nil {
		return err
	}
	if l.filter.IsForbidden(normalized) {
		l.logger.DebugContext(ctx, "search term filtered", "term_len", len(normalized))
		return nil
	}

	if bi, ok := l.store.(BoundedIncrementer); ok {
		score, trimmed, err := bi.IncrementBounded(ctx, l.key, 1, normalized, l.limit)
		if err != nil {
			return fmt.Errorf("record search term: %w", err)
		}
		l.announce(ctx, score, trimmed, normalized)
		return nil
	}

	score, err := l.store.IncrementScore(ctx, l.key, 1, normalized)
	if err != nil {
		return fmt.Errorf("record search term: %w", err)
	}
	trimmed, err := l.trim(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "leaderboard may be oversized", "key", l.key, "error", err)
		l.announce(ctx, score, 0, normalized)
		return fmt.Errorf("record search term: %w: %w", core.ErrTrimFailed, err)
	}
	l.announce(ctx, score, trimmed, normalized)
	return nil
}

// trim removes the lowest-ranked entries beyond the limit. The negative stop
// rank keeps concurrent trims idempotent: each one removes whatever is
// below the top limit entries at the time it runs.
func (l *Leaderboard) trim(ctx context.Context) (int64, error) {
	n, err := l.store.Cardinality(ctx, l.key)
	if err != nil {
		return 0, err
	}
	if n <= l.limit {
		return 0, nil
	}
	return l.store.RemoveByRankRange(ctx, l.key, 0, -(l.limit + 1))
}

func (l *Leaderboard) announce(ctx context.Context, score float64, trimmed int64, term string) {
	if l.pub == nil {
		return
	}
	l.pub.Publish(ctx, core.NewTermRecorded(term, score))
	if trimmed > 0 {
		l.pub.Publish(ctx, core.NewLeaderboardTrimmed(trimmed))
	}
}

// TopN returns up to n entries by descending score. n <= 0 means core.DefaultTopN.
func (l *Leaderboard) TopN(ctx context.Context, n int) ([]core.RankedEntry, error) {
	if n <= 0 {
		n = core.DefaultTopN
	}
	entries, err := l.store.RangeByRank(ctx, l.key, 0, int64(n-1), core.RangeOptions{WithScores: true, Reverse: true})
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	if entries == nil {
		entries = []core.RankedEntry{}
	}
	return entries, nil
}

// Delete removes term. Absent terms fail with core.ErrNotFound.
func (l *Leaderboard) Delete(ctx context.Context, term string) error {
	normalized, err := core.NormalizeTerm(term)
	if err != nil {
		return err
	}
	removed, err := l.store.RemoveMember(ctx, l.key, normalized)
	if err != nil {
		return fmt.Errorf("delete search term: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: search term %q", core.ErrNotFound, normalized)
	}
	if l.pub != nil {
		l.pub.Publish(ctx, core.NewTermDeleted(normalized))
	}
	return nil
}

// Clear drops the whole leaderboard. Clearing an empty board succeeds.
func (l *Leaderboard) Clear(ctx context.Context) error {
	if err := l.del.DeleteKey(ctx, l.key); err != nil {
		return fmt.Errorf("clear leaderboard: %w", err)
	}
	if l.pub != nil {
		l.pub.Publish(ctx, core.NewLeaderboardCleared())
	}
	return nil
}

// Size returns the number of entries currently on the board.
func (l *Leaderboard) Size(ctx context.Context) (int64, error) {
	return l.store.Cardinality(ctx, l.key)
}
