package metrics

import (
	"context"
	"time"

	"hotboard/core"
	"hotboard/engine"
)

// InstrumentBackend wraps b so every operation is counted and timed. The
// wrapper keeps the optional bounded-increment capability of b.
func (m *Manager) InstrumentBackend(b engine.Backend) engine.Backend {
	ib := &instrumentedBackend{inner: b, m: m, kind: b.Kind()}
	if bounded, ok := b.(engine.BoundedIncrementer); ok {
		return &boundedBackend{instrumentedBackend: ib, bounded: bounded}
	}
	return ib
}

type instrumentedBackend struct {
	inner engine.Backend
	m     *Manager
	kind  string
}

func (b *instrumentedBackend) Kind() string { return b.kind }

func (b *instrumentedBackend) Ping(ctx context.Context) error {
	t := time.Now()
	err := b.inner.Ping(ctx)
	b.m.observeBackend(b.kind, "ping", t, err)
	return err
}

func (b *instrumentedBackend) Close() error { return b.inner.Close() }

func (b *instrumentedBackend) RangeByRank(ctx context.Context, key string, start, stop int64, opts core.RangeOptions) ([]core.RankedEntry, error) {
	t := time.Now()
	out, err := b.inner.RangeByRank(ctx, key, start, stop, opts)
	b.m.observeBackend(b.kind, "range_by_rank", t, err)
	return out, err
}

func (b *instrumentedBackend) IncrementScore(ctx context.Context, key string, delta float64, member string) (float64, error) {
	t := time.Now()
	score, err := b.inner.IncrementScore(ctx, key, delta, member)
	b.m.observeBackend(b.kind, "increment_score", t, err)
	return score, err
}

func (b *instrumentedBackend) Cardinality(ctx context.Context, key string) (int64, error) {
	t := time.Now()
	n, err := b.inner.Cardinality(ctx, key)
	b.m.observeBackend(b.kind, "cardinality", t, err)
	return n, err
}

func (b *instrumentedBackend) RemoveByRankRange(ctx context.Context, key string, start, stop int64) (int64, error) {
	t := time.Now()
	n, err := b.inner.RemoveByRankRange(ctx, key, start, stop)
	b.m.observeBackend(b.kind, "remove_by_rank_range", t, err)
	return n, err
}

func (b *instrumentedBackend) RemoveMember(ctx context.Context, key string, member string) (int64, error) {
	t := time.Now()
	n, err := b.inner.RemoveMember(ctx, key, member)
	b.m.observeBackend(b.kind, "remove_member", t, err)
	return n, err
}

func (b *instrumentedBackend) MultiScore(ctx context.Context, key string, members []string) ([]*float64, error) {
	t := time.Now()
	out, err := b.inner.MultiScore(ctx, key, members)
	b.m.observeBackend(b.kind, "multi_score", t, err)
	return out, err
}

func (b *instrumentedBackend) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	t := time.Now()
	keys, err := b.inner.ScanKeys(ctx, pattern)
	b.m.observeBackend(b.kind, "scan_keys", t, err)
	return keys, err
}

func (b *instrumentedBackend) GetScalar(ctx context.Context, key string) (string, bool, error) {
	t := time.Now()
	v, ok, err := b.inner.GetScalar(ctx, key)
	b.m.observeBackend(b.kind, "get_scalar", t, err)
	return v, ok, err
}

func (b *instrumentedBackend) IncrementScalar(ctx context.Context, key string, delta int64) (int64, error) {
	t := time.Now()
	n, err := b.inner.IncrementScalar(ctx, key, delta)
	b.m.observeBackend(b.kind, "increment_scalar", t, err)
	return n, err
}

func (b *instrumentedBackend) DeleteKey(ctx context.Context, key string) error {
	t := time.Now()
	err := b.inner.DeleteKey(ctx, key)
	b.m.observeBackend(b.kind, "delete_key", t, err)
	return err
}

type boundedBackend struct {
	*instrumentedBackend
	bounded engine.BoundedIncrementer
}

func (b *boundedBackend) IncrementBounded(ctx context.Context, key string, delta float64, member string, limit int64) (float64, int64, error) {
	t := time.Now()
	score, trimmed, err := b.bounded.IncrementBounded(ctx, key, delta, member, limit)
	b.m.observeBackend(b.kind, "increment_bounded", t, err)
	return score, trimmed, err
}

var (
	_ engine.Backend            = (*instrumentedBackend)(nil)
	_ engine.Backend            = (*boundedBackend)(nil)
	_ engine.BoundedIncrementer = (*boundedBackend)(nil)
)
