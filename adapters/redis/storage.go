package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"hotboard/core"
)

const kind = "redis"

// Config holds Redis connection configuration
type Config struct {
	// URL, when set, is parsed with redis.ParseURL and takes precedence over Addr, Password and DB.
	URL          string        `json:"url" koanf:"url" env:"REDIS_URL"`
	Addr         string        `json:"addr" koanf:"addr" env:"HOTBOARD_REDIS_ADDR"`
	Password     string        `json:"password" koanf:"password" env:"HOTBOARD_REDIS_PASSWORD"`
	DB           int           `json:"db" koanf:"db" env:"HOTBOARD_REDIS_DB"`
	PoolSize     int           `json:"pool_size" koanf:"pool_size" env:"HOTBOARD_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" koanf:"min_idle_conns" env:"HOTBOARD_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" koanf:"dial_timeout" env:"HOTBOARD_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" koanf:"read_timeout" env:"HOTBOARD_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" koanf:"write_timeout" env:"HOTBOARD_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func (c Config) options() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		opts.MinIdleConns = c.MinIdleConns
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	return opts, nil
}

// Store implements engine.Backend on a Redis server.
// Data structure:
// - hot-searches -> sorted set of normalized terms scored by search count
// - invalid-resources -> sorted set of resource URLs scored by reports
// - views:{id} -> integer view counter
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, config Config) (*Store, error) {
	opts, err := config.options()
	if err != nil {
		return nil, core.NewOpError(kind, "connect", "", core.ErrInvalidArgument, err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.NewOpError(kind, "connect", "", core.ErrBackendUnavailable, err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Kind names the backend.
func (s *Store) Kind() string { return kind }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// classify maps a go-redis error onto the core error kinds. Server replies
// are sorted by core.ReplyKind; anything else means the server could not be
// reached or answered badly.
func classify(op, key string, err error) error {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return core.NewOpError(kind, op, key, core.ReplyKind(rerr.Error()), err)
	}
	return core.NewOpError(kind, op, key, core.ErrBackendUnavailable, err)
}

// Lua script for atomic increment-and-trim; keeps the limit highest members.
var incrementBoundedScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[3])
	local score = redis.call('ZINCRBY', key, ARGV[1], ARGV[2])
	local trimmed = 0
	if redis.call('ZCARD', key) > limit then
		trimmed = redis.call('ZREMRANGEBYRANK', key, 0, -(limit + 1))
	end
	return {score, trimmed}
`)

// IncrementBounded increments member and trims key to limit entries in one script call.
func (s *Store) IncrementBounded(ctx context.Context, key string, delta float64, member string, limit int64) (float64, int64, error) {
	res, err := incrementBoundedScript.Run(ctx, s.client, []string{key},
		strconv.FormatFloat(delta, 'f', -1, 64), member, limit).Slice()
	if err != nil {
		return 0, 0, classify("zincrby-bounded", key, err)
	}
	if len(res) != 2 {
		return 0, 0, core.NewOpError(kind, "zincrby-bounded", key, core.ErrBackendUnavailable,
			fmt.Errorf("unexpected script reply %v", res))
	}
	raw, _ := res[0].(string)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, 0, core.NewOpError(kind, "zincrby-bounded", key, core.ErrBackendUnavailable, err)
	}
	trimmed, _ := res[1].(int64)
	return score, trimmed, nil
}

func (s *Store) RangeByRank(ctx context.Context, key string, start, stop int64, opts core.RangeOptions) ([]core.RankedEntry, error) {
	args := redis.ZRangeArgs{Key: key, Start: start, Stop: stop, Rev: opts.Reverse}
	if !opts.WithScores {
		members, err := s.client.ZRangeArgs(ctx, args).Result()
		if err != nil {
			return nil, classify("zrange", key, err)
		}
		out := make([]core.RankedEntry, len(members))
		for i, m := range members {
			out[i] = core.RankedEntry{Member: m}
		}
		return out, nil
	}

	zs, err := s.client.ZRangeArgsWithScores(ctx, args).Result()
	if err != nil {
		return nil, classify("zrange", key, err)
	}
	out := make([]core.RankedEntry, len(zs))
	for i, z := range zs {
		out[i] = core.RankedEntry{Member: fmt.Sprint(z.Member), Score: z.Score}
	}
	return out, nil
}

func (s *Store) IncrementScore(ctx context.Context, key string, delta float64, member string) (float64, error) {
	score, err := s.client.ZIncrBy(ctx, key, delta, member).Result()
	if err != nil {
		return 0, classify("zincrby", key, err)
	}
	return score, nil
}

func (s *Store) Cardinality(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, classify("zcard", key, err)
	}
	return n, nil
}

func (s *Store) RemoveByRankRange(ctx context.Context, key string, start, stop int64) (int64, error) {
	n, err := s.client.ZRemRangeByRank(ctx, key, start, stop).Result()
	if err != nil {
		return 0, classify("zremrangebyrank", key, err)
	}
	return n, nil
}

func (s *Store) RemoveMember(ctx context.Context, key string, member string) (int64, error) {
	n, err := s.client.ZRem(ctx, key, member).Result()
	if err != nil {
		return 0, classify("zrem", key, err)
	}
	return n, nil
}

// MultiScore pipelines one ZSCORE per member. ZMSCORE would be a single
// round trip, but go-redis reports its missing members as 0.
func (s *Store) MultiScore(ctx context.Context, key string, members []string) ([]*float64, error) {
	out := make([]*float64, len(members))
	if len(members) == 0 {
		return out, nil
	}
	cmds := make([]*redis.FloatCmd, len(members))
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = p.ZScore(ctx, key, m)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, classify("zscore", key, err)
	}
	for i, cmd := range cmds {
		score, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, classify("zscore", key, err)
		}
		out[i] = &score
	}
	return out, nil
}

// ScanKeys walks the keyspace with SCAN. Keys seen twice during a rehash are reported once.
func (s *Store) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	seen := map[string]struct{}{}
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		seen[iter.Val()] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, classify("scan", pattern, err)
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) GetScalar(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("get", key, err)
	}
	return v, true, nil
}

func (s *Store) IncrementScalar(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, classify("incrby", key, err)
	}
	return n, nil
}

func (s *Store) DeleteKey(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return classify("del", key, err)
	}
	return nil
}
