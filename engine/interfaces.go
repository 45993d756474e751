package engine

import (
	"context"

	"hotboard/core"
)

// RankedSetStore is the sorted-set capability of a backend.
// Ranks are zero-based, inclusive on both ends, and negative ranks count
// from the end. Out-of-range ranks yield empty results, never errors.
type RankedSetStore interface {
	RangeByRank(ctx context.Context, key string, start, stop int64, opts core.RangeOptions) ([]core.RankedEntry, error)
	IncrementScore(ctx context.Context, key string, delta float64, member string) (newScore float64, err error)
	Cardinality(ctx context.Context, key string) (int64, error)
	RemoveByRankRange(ctx context.Context, key string, start, stop int64) (removed int64, err error)
	RemoveMember(ctx context.Context, key string, member string) (removed int64, err error)
	// MultiScore returns one slot per member, nil where the member is absent.
	// A backend that cannot batch may return core.ErrDegradedCapability or
	// all nil slots; callers must then fall back to a full range scan.
	MultiScore(ctx context.Context, key string, members []string) ([]*float64, error)
}

// ScalarStore is the plain key/value capability of a backend.
type ScalarStore interface {
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	GetScalar(ctx context.Context, key string) (value string, ok bool, err error)
	IncrementScalar(ctx context.Context, key string, delta int64) (int64, error)
	// DeleteKey removes a key of any type; deleting an absent key is a no-op.
	DeleteKey(ctx context.Context, key string) error
}

// Backend is one key-value store behind the uniform capability set.
type Backend interface {
	RankedSetStore
	ScalarStore
	Kind() string
	Ping(ctx context.Context) error
	Close() error
}

// BoundedIncrementer is implemented by backends that can increment a member
// and trim the set to limit entries in one atomic step.
type BoundedIncrementer interface {
	IncrementBounded(ctx context.Context, key string, delta float64, member string, limit int64) (newScore float64, trimmed int64, err error)
}

// Publisher receives domain events.
type Publisher interface {
	Publish(ctx context.Context, ev core.Event)
}
