package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"hotboard/core"
)

// maxConcurrentReads bounds in-flight scalar reads during GetAll.
const maxConcurrentReads = 16

// CounterStore reads and bumps per-resource view counters kept under core.ViewsPrefix.
type CounterStore struct {
	store  ScalarStore
	pub    Publisher
	logger *slog.Logger
	prefix string
}

// NewCounterStore builds a counter store over store. A nil logger means slog.Default().
func NewCounterStore(store ScalarStore, pub Publisher, logger *slog.Logger) *CounterStore {
	if store == nil {
		panic("NewCounterStore requires a non-nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CounterStore{store: store, pub: pub, logger: logger, prefix: core.ViewsPrefix}
}

// GetAll returns every counter keyed by identifier. Unset or unreadable
// values count as zero. The scan is unbounded.
func (c *CounterStore) GetAll(ctx context.Context) (map[string]int64, error) {
	keys, err := c.store.ScanKeys(ctx, c.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("fetch view counters: %w", err)
	}

	var mu sync.Mutex
	out := make(map[string]int64, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for _, key := range keys {
		id := strings.TrimPrefix(key, c.prefix)
		g.Go(func() error {
			n, err := c.read(gctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch view counters: %w", err)
	}
	return out, nil
}

// Get returns one counter; unknown identifiers read as zero.
func (c *CounterStore) Get(ctx context.Context, id string) (int64, error) {
	id, err := core.NormalizeCounterID(id)
	if err != nil {
		return 0, err
	}
	n, err := c.read(ctx, c.prefix+id)
	if err != nil {
		return 0, fmt.Errorf("fetch view counter: %w", err)
	}
	return n, nil
}

// Increment adds one view to id and returns the new count.
func (c *CounterStore) Increment(ctx context.Context, id string) (int64, error) {
	id, err := core.NormalizeCounterID(id)
	if err != nil {
		return 0, err
	}
	n, err := c.store.IncrementScalar(ctx, c.prefix+id, 1)
	if err != nil {
		return 0, fmt.Errorf("count view: %w", err)
	}
	if c.pub != nil {
		c.pub.Publish(ctx, core.NewViewCounted(id, n))
	}
	return n, nil
}

func (c *CounterStore) read(ctx context.Context, key string) (int64, error) {
	raw, ok, err := c.store.GetScalar(ctx, key)
	if errors.Is(err, core.ErrWrongType) {
		c.logger.WarnContext(ctx, "view counter key holds a non-scalar value, treating as zero", "key", key)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// counters written by other tools may be float-formatted
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f < 0 {
			c.logger.WarnContext(ctx, "unreadable view counter, treating as zero", "key", key)
			return 0, nil
		}
		return int64(f), nil
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}
