package engine

import (
	"context"
	"errors"
	"sync"

	mem "hotboard/adapters/memory"
	"hotboard/core"
)

// twoStepBackend hides the memory store's bounded increment so the
// leaderboard takes its increment-then-trim path.
type twoStepBackend struct {
	Backend
	failTrim bool
}

func newTwoStep(failTrim bool) *twoStepBackend {
	return &twoStepBackend{Backend: mem.New(), failTrim: failTrim}
}

func (b *twoStepBackend) RemoveByRankRange(ctx context.Context, key string, start, stop int64) (int64, error) {
	if b.failTrim {
		return 0, core.NewOpError("fake", "zremrangebyrank", key, core.ErrBackendUnavailable, errors.New("connection reset"))
	}
	return b.Backend.RemoveByRankRange(ctx, key, start, stop)
}

func (b *twoStepBackend) Kind() string { return "two-step" }

// degradedBackend answers batch score lookups the way a backend without
// the capability does.
type degradedBackend struct {
	*mem.Store
	allNil    bool
	fullScans int
}

func (b *degradedBackend) MultiScore(_ context.Context, _ string, members []string) ([]*float64, error) {
	if b.allNil {
		return make([]*float64, len(members)), nil
	}
	return nil, core.NewOpError("fake", "zmscore", "", core.ErrDegradedCapability, errors.New("unknown command"))
}

func (b *degradedBackend) RangeByRank(ctx context.Context, key string, start, stop int64, opts core.RangeOptions) ([]core.RankedEntry, error) {
	if start == 0 && stop == -1 {
		b.fullScans++
	}
	return b.Store.RangeByRank(ctx, key, start, stop, opts)
}

// brokenBackend fails every call as an unreachable server would.
type brokenBackend struct{ *mem.Store }

var errDown = core.NewOpError("fake", "any", "", core.ErrBackendUnavailable, errors.New("dial tcp: connection refused"))

func (brokenBackend) RangeByRank(context.Context, string, int64, int64, core.RangeOptions) ([]core.RankedEntry, error) {
	return nil, errDown
}
func (brokenBackend) IncrementBounded(context.Context, string, float64, string, int64) (float64, int64, error) {
	return 0, 0, errDown
}
func (brokenBackend) MultiScore(context.Context, string, []string) ([]*float64, error) {
	return nil, errDown
}
func (brokenBackend) ScanKeys(context.Context, string) ([]string, error) { return nil, errDown }
func (brokenBackend) Ping(context.Context) error                        { return errDown }

// loadingBackend serves ranked sets but answers scalar reads the way a
// Redis replica still loading its dataset does.
type loadingBackend struct{ *mem.Store }

func (loadingBackend) GetScalar(_ context.Context, key string) (string, bool, error) {
	const reply = "LOADING Redis is loading the dataset in memory"
	return "", false, core.NewOpError("fake", "get", key, core.ReplyKind(reply), errors.New(reply))
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Publish(_ context.Context, ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) count(typ core.EventType) int {
	n := 0
	for _, t := range r.types() {
		if t == typ {
			n++
		}
	}
	return n
}

// blockAll forbids every term.
type blockAll struct{}

func (blockAll) IsForbidden(string) bool { return true }
