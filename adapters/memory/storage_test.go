package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotboard/core"
)

func seed(t *testing.T, s *Store, key string, scores map[string]float64) {
	t.Helper()
	for m, sc := range scores {
		_, err := s.IncrementScore(context.Background(), key, sc, m)
		require.NoError(t, err)
	}
}

func members(entries []core.RankedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Member
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	s := New()
	ctx := context.Background()

	score, err := s.IncrementScore(ctx, "k", 5, "u")
	require.NoError(t, err)
	assert.Equal(t, 5.0, score)

	score, err = s.IncrementScore(ctx, "k", -2, "u")
	require.NoError(t, err)
	assert.Equal(t, 3.0, score)

	n, err := s.Cardinality(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRangeByRankOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "k", map[string]float64{"a": 10, "b": 20, "c": 15, "d": 15})

	asc, err := s.RangeByRank(ctx, "k", 0, -1, core.RangeOptions{WithScores: true})
	require.NoError(t, err)
	// equal scores order by member, ascending
	assert.Equal(t, []string{"a", "c", "d", "b"}, members(asc))
	assert.Equal(t, 10.0, asc[0].Score)

	desc, err := s.RangeByRank(ctx, "k", 0, 2, core.RangeOptions{WithScores: true, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "c"}, members(desc))
	assert.Equal(t, 20.0, desc[0].Score)

	noScores, err := s.RangeByRank(ctx, "k", 0, 0, core.RangeOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.RankedEntry{Member: "a"}, noScores[0])
}

func TestRangeByRankBounds(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "k", map[string]float64{"a": 1, "b": 2, "c": 3})

	tests := []struct {
		start, stop int64
		want        []string
	}{
		{0, 0, []string{"a"}},
		{-2, -1, []string{"b", "c"}},
		{1, 100, []string{"b", "c"}},
		{-100, 0, []string{"a"}},
		{3, 5, []string{}},
		{2, 1, []string{}},
	}
	for _, tt := range tests {
		got, err := s.RangeByRank(ctx, "k", tt.start, tt.stop, core.RangeOptions{})
		require.NoError(t, err)
		assert.Equal(t, tt.want, members(got), "range [%d, %d]", tt.start, tt.stop)
	}

	missing, err := s.RangeByRank(ctx, "nope", 0, -1, core.RangeOptions{})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRemoveByRankRange(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "k", map[string]float64{"a": 1, "b": 2, "c": 3, "d": 4})

	removed, err := s.RemoveByRankRange(ctx, "k", 0, -3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	rest, err := s.RangeByRank(ctx, "k", 0, -1, core.RangeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, members(rest))

	removed, err = s.RemoveByRankRange(ctx, "k", 5, 9)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRemoveMember(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "k", map[string]float64{"a": 1, "b": 2})

	n, err := s.RemoveMember(ctx, "k", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.RemoveMember(ctx, "k", "a")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.RemoveMember(ctx, "missing", "a")
	require.NoError(t, err)
	assert.Zero(t, n)

	// the last removal drops the key entirely
	_, err = s.RemoveMember(ctx, "k", "b")
	require.NoError(t, err)
	keys, err := s.ScanKeys(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMultiScore(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "k", map[string]float64{"a": 1, "b": 3})

	scores, err := s.MultiScore(ctx, "k", []string{"a", "x", "b"})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, 1.0, *scores[0])
	assert.Nil(t, scores[1])
	assert.Equal(t, 3.0, *scores[2])

	scores, err = s.MultiScore(ctx, "missing", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []*float64{nil}, scores)
}

func TestIncrementBounded(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		for j := 0; j <= i; j++ {
			_, _, err := s.IncrementBounded(ctx, "k", 1, fmt.Sprintf("m%02d", i), 5)
			require.NoError(t, err)
		}
	}
	top, err := s.RangeByRank(ctx, "k", 0, -1, core.RangeOptions{WithScores: true, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"m09", "m08", "m07", "m06", "m05"}, members(top))

	score, trimmed, err := s.IncrementBounded(ctx, "k", 1, "new", 5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, int64(1), trimmed)
}

func TestScalars(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, ok, err := s.GetScalar(ctx, "views:1")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.IncrementScalar(ctx, "views:1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	s.Set("views:2", "5")
	v, ok, err := s.GetScalar(ctx, "views:2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	s.Set("views:bad", "abc")
	_, err = s.IncrementScalar(ctx, "views:bad", 1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	require.NoError(t, s.DeleteKey(ctx, "views:1"))
	require.NoError(t, s.DeleteKey(ctx, "views:1"))
	_, ok, err = s.GetScalar(ctx, "views:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrongType(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Set("str", "1")
	_, err := s.IncrementScore(ctx, "str", 1, "m")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	seed(t, s, "set", map[string]float64{"a": 1})
	_, _, err = s.GetScalar(ctx, "set")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestScanKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Set("views:1", "1")
	s.Set("views:/posts/a", "2")
	s.Set("other", "3")
	seed(t, s, "hot-searches", map[string]float64{"a": 1})

	keys, err := s.ScanKeys(ctx, "views:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"views:/posts/a", "views:1"}, keys)

	keys, err = s.ScanKeys(ctx, "views:?")
	require.NoError(t, err)
	assert.Equal(t, []string{"views:1"}, keys)

	keys, err = s.ScanKeys(ctx, "[ho]*")
	require.NoError(t, err)
	assert.Equal(t, []string{"hot-searches", "other"}, keys)

	_, err = s.ScanKeys(ctx, "views:[")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = s.ScanKeys(ctx, `views:\`)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	s := New()
	ctx := context.Background()
	const workers, perWorker = 8, 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, _ = s.IncrementScore(ctx, "k", 1, "shared")
				_, _ = s.IncrementScalar(ctx, "views:x", 1)
			}
		}()
	}
	wg.Wait()

	scores, err := s.MultiScore(ctx, "k", []string{"shared"})
	require.NoError(t, err)
	assert.Equal(t, float64(workers*perWorker), *scores[0])
	v, _, err := s.GetScalar(ctx, "views:x")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(workers*perWorker), v)
}

func TestSkipListMatchesSortedOrder(t *testing.T) {
	sl := newSkipList()
	rng := rand.New(rand.NewPCG(1, 2))
	want := map[string]float64{}
	for i := 0; i < 500; i++ {
		m := fmt.Sprintf("m%d", rng.IntN(80))
		d := float64(rng.IntN(5) + 1)
		want[m] += d
		sl.incr(m, d)
		if i%7 == 0 {
			victim := fmt.Sprintf("m%d", rng.IntN(80))
			if sl.remove(victim) {
				delete(want, victim)
			}
		}
	}

	expected := make([]core.RankedEntry, 0, len(want))
	for m, sc := range want {
		expected = append(expected, core.RankedEntry{Member: m, Score: sc})
	}
	sort.Slice(expected, func(i, j int) bool {
		if expected[i].Score == expected[j].Score {
			return expected[i].Member < expected[j].Member
		}
		return expected[i].Score < expected[j].Score
	})

	assert.Equal(t, int64(len(expected)), sl.length)
	assert.Equal(t, expected, sl.rangeByRank(0, -1, false))

	reversed := sl.rangeByRank(0, -1, true)
	for i := range reversed {
		assert.Equal(t, expected[len(expected)-1-i], reversed[i])
	}
}
