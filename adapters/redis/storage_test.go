package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotboard/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return mr, client, cleanup
}

func TestStore_IncrementAndRange(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	for m, n := range map[string]int{"go": 3, "rust": 1, "zig": 2, "ada": 2} {
		for i := 0; i < n; i++ {
			_, err := store.IncrementScore(ctx, core.KeyHotSearches, 1, m)
			require.NoError(t, err)
		}
	}

	top, err := store.RangeByRank(ctx, core.KeyHotSearches, 0, -1, core.RangeOptions{WithScores: true, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []core.RankedEntry{
		{Member: "go", Score: 3},
		{Member: "zig", Score: 2},
		{Member: "ada", Score: 2},
		{Member: "rust", Score: 1},
	}, top)

	asc, err := store.RangeByRank(ctx, core.KeyHotSearches, 0, 1, core.RangeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []core.RankedEntry{{Member: "rust"}, {Member: "ada"}}, asc)

	n, err := store.Cardinality(ctx, core.KeyHotSearches)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	empty, err := store.RangeByRank(ctx, core.KeyHotSearches, 10, 20, core.RangeOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_IncrementBounded(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := store.IncrementScore(ctx, "k", float64(i), fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	score, trimmed, err := store.IncrementBounded(ctx, "k", 2.5, "m5", 3)
	require.NoError(t, err)
	assert.Equal(t, 2.5, score)
	assert.Equal(t, int64(2), trimmed)

	rest, err := store.RangeByRank(ctx, "k", 0, -1, core.RangeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []core.RankedEntry{{Member: "m5"}, {Member: "m3"}, {Member: "m4"}}, rest)

	score, trimmed, err = store.IncrementBounded(ctx, "k", 1, "m4", 3)
	require.NoError(t, err)
	assert.Equal(t, 5.0, score)
	assert.Zero(t, trimmed)
}

func TestStore_RemoveOperations(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := store.IncrementScore(ctx, "k", float64(i), fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	removed, err := store.RemoveByRankRange(ctx, "k", 0, -4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = store.RemoveMember(ctx, "k", "m2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = store.RemoveMember(ctx, "k", "m2")
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, store.DeleteKey(ctx, "k"))
	require.NoError(t, store.DeleteKey(ctx, "k"))
	n, err := store.Cardinality(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_MultiScore(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	_, err := store.IncrementScore(ctx, core.KeyInvalidResources, 3, "https://a")
	require.NoError(t, err)

	scores, err := store.MultiScore(ctx, core.KeyInvalidResources, []string{"https://a", "https://b"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.NotNil(t, scores[0])
	assert.Equal(t, 3.0, *scores[0])
	assert.Nil(t, scores[1])

	scores, err = store.MultiScore(ctx, "missing", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []*float64{nil}, scores)

	scores, err = store.MultiScore(ctx, "missing", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestStore_Scalars(t *testing.T) {
	mr, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, mr.Set("views:123", "5"))
	require.NoError(t, mr.Set("views:456", "7"))
	require.NoError(t, mr.Set("other", "1"))

	keys, err := store.ScanKeys(ctx, core.ViewsPrefix+"*")
	require.NoError(t, err)
	assert.Equal(t, []string{"views:123", "views:456"}, keys)

	v, ok, err := store.GetScalar(ctx, "views:123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	_, ok, err = store.GetScalar(ctx, "views:none")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.IncrementScalar(ctx, "views:123", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestStore_ErrorClassification(t *testing.T) {
	mr, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, mr.Set("str", "x"))
	_, err := store.IncrementScore(ctx, "str", 1, "m")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	var opErr *core.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "redis", opErr.Backend)
	assert.Equal(t, "zincrby", opErr.Op)

	mr.Close()
	_, err = store.Cardinality(ctx, "k")
	assert.ErrorIs(t, err, core.ErrBackendUnavailable)
	assert.True(t, core.IsBackendUnavailable(store.Ping(ctx)))
}

func TestStore_ServerReplyErrors(t *testing.T) {
	tests := []struct {
		reply string
		want  error
	}{
		{"LOADING Redis is loading the dataset in memory", core.ErrBackendUnavailable},
		{"READONLY You can't write against a read only replica.", core.ErrBackendUnavailable},
		{"MASTERDOWN Link with MASTER is down", core.ErrBackendUnavailable},
		{"OOM command not allowed when used memory > 'maxmemory'.", core.ErrBackendUnavailable},
		{"NOAUTH Authentication required.", core.ErrBackendUnavailable},
		{"ERR syntax error", core.ErrInvalidArgument},
		{"WRONGTYPE Operation against a key holding the wrong kind of value", core.ErrWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
			defer client.Close()
			store := NewWithClient(client)
			ctx := context.Background()

			mr.SetError(tt.reply)
			_, err := store.RangeByRank(ctx, core.KeyHotSearches, 0, -1, core.RangeOptions{Reverse: true})
			assert.ErrorIs(t, err, tt.want)
			_, _, err = store.GetScalar(ctx, "views:123")
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.reply)
		})
	}
}

func TestStore_LoadingIsNotAnArgumentError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewWithClient(client)

	mr.SetError("LOADING Redis is loading the dataset in memory")
	_, _, err := store.GetScalar(context.Background(), "views:123")
	assert.True(t, core.IsBackendUnavailable(err))
	assert.NotErrorIs(t, err, core.ErrInvalidArgument)
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.IncrementBounded(ctx, "k", 1, "shared", 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	scores, err := store.MultiScore(ctx, "k", []string{"shared"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, *scores[0])
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := New(context.Background(), Config{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "redis", store.Kind())
	assert.NoError(t, store.Ping(context.Background()))

	_, err = New(context.Background(), Config{URL: "://bad"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	_, err = New(context.Background(), cfg)
	assert.ErrorIs(t, err, core.ErrBackendUnavailable)
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
}
