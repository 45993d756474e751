package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "hotboard/adapters/memory"
	"hotboard/core"
)

func TestDemeritThreshold(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	d := NewDemeritTracker(mem.New(), rec, nil)

	for i := 0; i < 3; i++ {
		_, err := d.MarkInvalid(ctx, "https://example.com/a")
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := d.MarkInvalid(ctx, "https://example.com/b")
		require.NoError(t, err)
	}

	status, err := d.BatchStatus(ctx, []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"https://example.com/a": true}, status)

	// the crossing is announced once, not on every later report
	score, err := d.MarkInvalid(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, 4.0, score)
	assert.Equal(t, 1, rec.count(core.EventResourceInvalidated))
	assert.Equal(t, 6, rec.count(core.EventResourceMarked))
}

func TestDemeritValidation(t *testing.T) {
	ctx := context.Background()
	d := NewDemeritTracker(mem.New(), nil, nil)

	_, err := d.MarkInvalid(ctx, "   ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = d.BatchStatus(ctx, nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = d.BatchStatus(ctx, []string{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	// blank entries are skipped, not rejected
	status, err := d.BatchStatus(ctx, []string{"", " "})
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestDemeritBatchStatusDeduplicates(t *testing.T) {
	ctx := context.Background()
	d := NewDemeritTracker(mem.New(), nil, nil)
	for i := 0; i < 3; i++ {
		_, err := d.MarkInvalid(ctx, "https://x")
		require.NoError(t, err)
	}

	status, err := d.BatchStatus(ctx, []string{"https://x", " https://x ", "https://x", "https://y"})
	require.NoError(t, err)
	// results are keyed by what the caller sent
	assert.Equal(t, map[string]bool{"https://x": true, " https://x ": true}, status)
	assert.True(t, status[" https://x "])
}

func TestDemeritDegradedFallback(t *testing.T) {
	tests := []struct {
		name   string
		allNil bool
	}{
		{"capability error", false},
		{"all-nil answer", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := &degradedBackend{Store: mem.New(), allNil: tt.allNil}
			d := NewDemeritTracker(b, nil, nil)

			for i := 0; i < 3; i++ {
				_, err := d.MarkInvalid(ctx, "https://a")
				require.NoError(t, err)
			}
			_, err := d.MarkInvalid(ctx, "https://b")
			require.NoError(t, err)

			status, err := d.BatchStatus(ctx, []string{"https://a", "https://b", "https://c"})
			require.NoError(t, err)
			assert.Equal(t, map[string]bool{"https://a": true}, status)
			assert.Equal(t, 1, b.fullScans)

			score, err := d.Score(ctx, "https://b")
			require.NoError(t, err)
			assert.Equal(t, 1.0, score)
		})
	}
}

func TestDemeritAllNilWithoutData(t *testing.T) {
	ctx := context.Background()
	b := &degradedBackend{Store: mem.New(), allNil: true}
	d := NewDemeritTracker(b, nil, nil)

	status, err := d.BatchStatus(ctx, []string{"https://never-reported"})
	require.NoError(t, err)
	assert.Empty(t, status)
	assert.Equal(t, 1, b.fullScans)
}

func TestDemeritScore(t *testing.T) {
	ctx := context.Background()
	d := NewDemeritTracker(mem.New(), nil, nil)

	score, err := d.Score(ctx, "https://unknown")
	require.NoError(t, err)
	assert.Zero(t, score)

	_, err = d.MarkInvalid(ctx, "https://known")
	require.NoError(t, err)
	score, err = d.Score(ctx, "https://known")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestDemeritBackendFailure(t *testing.T) {
	ctx := context.Background()
	d := NewDemeritTracker(brokenBackend{mem.New()}, nil, nil)

	_, err := d.BatchStatus(ctx, []string{"https://a"})
	assert.True(t, core.IsBackendUnavailable(err))
}
