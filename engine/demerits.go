package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hotboard/core"
)

// DemeritTracker accumulates "invalid resource" reports in an unbounded
// ranked set and classifies resources against a threshold.
type DemeritTracker struct {
	store     RankedSetStore
	pub       Publisher
	logger    *slog.Logger
	key       string
	threshold float64
}

// NewDemeritTracker builds a tracker over store. A nil logger means slog.Default().
func NewDemeritTracker(store RankedSetStore, pub Publisher, logger *slog.Logger) *DemeritTracker {
	if store == nil {
		panic("NewDemeritTracker requires a non-nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DemeritTracker{
		store:     store,
		pub:       pub,
		logger:    logger,
		key:       core.KeyInvalidResources,
		threshold: core.InvalidThreshold,
	}
}

// MarkInvalid adds one demerit to url and returns its new score.
func (d *DemeritTracker) MarkInvalid(ctx context.Context, url string) (float64, error) {
	normalized, err := core.NormalizeURL(url)
	if err != nil {
		return 0, err
	}
	score, err := d.store.IncrementScore(ctx, d.key, 1, normalized)
	if err != nil {
		return 0, fmt.Errorf("mark resource invalid: %w", err)
	}
	if d.pub != nil {
		d.pub.Publish(ctx, core.NewResourceMarked(normalized, score))
		if score >= d.threshold && score-1 < d.threshold {
			d.pub.Publish(ctx, core.NewResourceInvalidated(normalized, score))
		}
	}
	return score, nil
}

// Score returns the demerit score of url, zero when it was never reported.
func (d *DemeritTracker) Score(ctx context.Context, url string) (float64, error) {
	normalized, err := core.NormalizeURL(url)
	if err != nil {
		return 0, err
	}
	scores, err := d.scores(ctx, []string{normalized})
	if err != nil {
		return 0, err
	}
	return scores[normalized], nil
}

// BatchStatus maps each invalid url to true, keyed by the url exactly as the
// caller sent it; lookups use the normalized form. Valid or unknown urls are
// absent from the result. An empty url list fails with core.ErrInvalidInput.
func (d *DemeritTracker) BatchStatus(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: an array of resource urls is required", core.ErrInvalidInput)
	}
	query := make([]string, 0, len(urls))
	inputs := make(map[string][]string, len(urls))
	for _, u := range urls {
		normalized, err := core.NormalizeURL(u)
		if err != nil {
			continue
		}
		if _, dup := inputs[normalized]; !dup {
			query = append(query, normalized)
		}
		inputs[normalized] = append(inputs[normalized], u)
	}

	status := make(map[string]bool)
	if len(query) == 0 {
		return status, nil
	}
	scores, err := d.scores(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("batch invalid status: %w", err)
	}
	for _, n := range query {
		if scores[n] < d.threshold {
			continue
		}
		for _, u := range inputs[n] {
			status[u] = true
		}
	}
	return status, nil
}

// scores looks members up with a batch score call. When the backend signals
// a degraded batch capability, or every slot comes back empty, it falls back
// to reading the whole set; an all-empty answer can mean "unsupported" just
// as well as "no data", so it is never trusted on its own.
func (d *DemeritTracker) scores(ctx context.Context, members []string) (map[string]float64, error) {
	slots, err := d.store.MultiScore(ctx, d.key, members)
	if err != nil && !errors.Is(err, core.ErrDegradedCapability) {
		return nil, err
	}
	if err == nil && len(slots) == len(members) && anyPresent(slots) {
		out := make(map[string]float64, len(members))
		for i, m := range members {
			if slots[i] != nil {
				out[m] = *slots[i]
			}
		}
		return out, nil
	}

	d.logger.DebugContext(ctx, "batch score lookup degraded, scanning full set", "key", d.key, "members", len(members))
	all, err := d.store.RangeByRank(ctx, d.key, 0, -1, core.RangeOptions{WithScores: true})
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(members))
	for _, m := range members {
		wanted[m] = struct{}{}
	}
	out := make(map[string]float64, len(members))
	for _, e := range all {
		if _, ok := wanted[e.Member]; ok {
			out[e.Member] = e.Score
		}
	}
	return out, nil
}

func anyPresent(slots []*float64) bool {
	for _, s := range slots {
		if s != nil {
			return true
		}
	}
	return false
}
