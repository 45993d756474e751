package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"hotboard/core"
)

const kind = "memory"

var errWrongType = errors.New("WRONGTYPE operation against a key holding the wrong kind of value")

// Store is a process-local, best-effort backend. Every key has its own
// mutex; all reads and writes of a key run under it.
type Store struct {
	mu   sync.Mutex
	keys map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	set     *skipList
	scalar  *string
	deleted bool
}

func New() *Store { return &Store{keys: map[string]*entry{}} }

// Kind names the backend.
func (s *Store) Kind() string { return kind }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops all data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = map[string]*entry{}
	return nil
}

// lockEntry returns the locked entry for key, creating it when create is set.
// It returns nil when the key is absent and create is false.
func (s *Store) lockEntry(key string, create bool) *entry {
	for {
		s.mu.Lock()
		e, ok := s.keys[key]
		if !ok {
			if !create {
				s.mu.Unlock()
				return nil
			}
			e = &entry{}
			s.keys[key] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.deleted {
			return e
		}
		// lost a race with DeleteKey; look again
		e.mu.Unlock()
	}
}

func (s *Store) dropIfEmpty(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[key]
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set != nil && e.set.length == 0 {
		e.deleted = true
		delete(s.keys, key)
	}
}

func opErr(op, key string, kindErr, err error) error {
	if errors.Is(err, errWrongType) {
		kindErr = core.ErrWrongType
	}
	return core.NewOpError(kind, op, key, kindErr, err)
}

// setFor returns the sorted set held by e, creating it when allowed.
func setFor(e *entry, create bool) (*skipList, error) {
	if e.scalar != nil {
		return nil, errWrongType
	}
	if e.set == nil && create {
		e.set = newSkipList()
	}
	return e.set, nil
}

func (s *Store) RangeByRank(_ context.Context, key string, start, stop int64, opts core.RangeOptions) ([]core.RankedEntry, error) {
	e := s.lockEntry(key, false)
	if e == nil {
		return []core.RankedEntry{}, nil
	}
	defer e.mu.Unlock()
	set, err := setFor(e, false)
	if err != nil {
		return nil, opErr("zrange", key, core.ErrInvalidArgument, err)
	}
	if set == nil {
		return []core.RankedEntry{}, nil
	}
	out := set.rangeByRank(start, stop, opts.Reverse)
	if out == nil {
		out = []core.RankedEntry{}
	}
	if !opts.WithScores {
		for i := range out {
			out[i].Score = 0
		}
	}
	return out, nil
}

func (s *Store) IncrementScore(_ context.Context, key string, delta float64, member string) (float64, error) {
	e := s.lockEntry(key, true)
	defer e.mu.Unlock()
	set, err := setFor(e, true)
	if err != nil {
		return 0, opErr("zincrby", key, core.ErrInvalidArgument, err)
	}
	return set.incr(member, delta), nil
}

// IncrementBounded increments member and trims the set to limit entries
// under a single lock.
func (s *Store) IncrementBounded(_ context.Context, key string, delta float64, member string, limit int64) (float64, int64, error) {
	e := s.lockEntry(key, true)
	defer e.mu.Unlock()
	set, err := setFor(e, true)
	if err != nil {
		return 0, 0, opErr("zincrby", key, core.ErrInvalidArgument, err)
	}
	score := set.incr(member, delta)
	return score, set.trim(limit), nil
}

func (s *Store) Cardinality(_ context.Context, key string) (int64, error) {
	e := s.lockEntry(key, false)
	if e == nil {
		return 0, nil
	}
	defer e.mu.Unlock()
	set, err := setFor(e, false)
	if err != nil {
		return 0, opErr("zcard", key, core.ErrInvalidArgument, err)
	}
	if set == nil {
		return 0, nil
	}
	return set.length, nil
}

func (s *Store) RemoveByRankRange(_ context.Context, key string, start, stop int64) (int64, error) {
	e := s.lockEntry(key, false)
	if e == nil {
		return 0, nil
	}
	set, err := setFor(e, false)
	if err != nil {
		e.mu.Unlock()
		return 0, opErr("zremrangebyrank", key, core.ErrInvalidArgument, err)
	}
	var removed int64
	if set != nil {
		removed = set.removeRangeByRank(start, stop)
	}
	e.mu.Unlock()
	if removed > 0 {
		s.dropIfEmpty(key)
	}
	return removed, nil
}

func (s *Store) RemoveMember(_ context.Context, key string, member string) (int64, error) {
	e := s.lockEntry(key, false)
	if e == nil {
		return 0, nil
	}
	set, err := setFor(e, false)
	if err != nil {
		e.mu.Unlock()
		return 0, opErr("zrem", key, core.ErrInvalidArgument, err)
	}
	removed := set != nil && set.remove(member)
	e.mu.Unlock()
	if !removed {
		return 0, nil
	}
	s.dropIfEmpty(key)
	return 1, nil
}

func (s *Store) MultiScore(_ context.Context, key string, members []string) ([]*float64, error) {
	out := make([]*float64, len(members))
	e := s.lockEntry(key, false)
	if e == nil {
		return out, nil
	}
	defer e.mu.Unlock()
	set, err := setFor(e, false)
	if err != nil {
		return nil, opErr("zmscore", key, core.ErrInvalidArgument, err)
	}
	if set == nil {
		return out, nil
	}
	for i, m := range members {
		if score, ok := set.score(m); ok {
			out[i] = &score
		}
	}
	return out, nil
}

// ScanKeys matches keys against a Redis-style glob (*, ?, [...], \ escapes).
func (s *Store) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, opErr("scan", pattern, core.ErrInvalidArgument, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0)
	for k := range s.keys {
		if re.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) GetScalar(_ context.Context, key string) (string, bool, error) {
	e := s.lockEntry(key, false)
	if e == nil {
		return "", false, nil
	}
	defer e.mu.Unlock()
	if e.set != nil {
		return "", false, opErr("get", key, core.ErrInvalidArgument, errWrongType)
	}
	if e.scalar == nil {
		return "", false, nil
	}
	return *e.scalar, true, nil
}

func (s *Store) IncrementScalar(_ context.Context, key string, delta int64) (int64, error) {
	e := s.lockEntry(key, true)
	defer e.mu.Unlock()
	if e.set != nil {
		return 0, opErr("incrby", key, core.ErrInvalidArgument, errWrongType)
	}
	var cur int64
	if e.scalar != nil {
		n, err := strconv.ParseInt(*e.scalar, 10, 64)
		if err != nil {
			return 0, opErr("incrby", key, core.ErrInvalidArgument, errors.New("value is not an integer"))
		}
		cur = n
	}
	next := strconv.FormatInt(cur+delta, 10)
	e.scalar = &next
	return cur + delta, nil
}

// Set stores a raw scalar value, replacing whatever key held.
func (s *Store) Set(key, value string) {
	e := s.lockEntry(key, true)
	defer e.mu.Unlock()
	e.set = nil
	e.scalar = &value
}

func (s *Store) DeleteKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[key]
	if !ok {
		return nil
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// globToRegexp translates a Redis glob pattern into an anchored regexp.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString("(?s:.*)")
		case '?':
			b.WriteString("(?s:.)")
		case '\\':
			if i+1 == len(pattern) {
				return nil, fmt.Errorf("pattern %q ends with a dangling escape", pattern)
			}
			i++
			b.WriteString(regexp.QuoteMeta(string(pattern[i])))
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("pattern %q has an unterminated character class", pattern)
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "^") {
				class = "^" + regexp.QuoteMeta(class[1:])
			} else {
				class = regexp.QuoteMeta(class)
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

var _ interface {
	RangeByRank(context.Context, string, int64, int64, core.RangeOptions) ([]core.RankedEntry, error)
	IncrementScore(context.Context, string, float64, string) (float64, error)
	IncrementBounded(context.Context, string, float64, string, int64) (float64, int64, error)
	Cardinality(context.Context, string) (int64, error)
	RemoveByRankRange(context.Context, string, int64, int64) (int64, error)
	RemoveMember(context.Context, string, string) (int64, error)
	MultiScore(context.Context, string, []string) ([]*float64, error)
	ScanKeys(context.Context, string) ([]string, error)
	GetScalar(context.Context, string) (string, bool, error)
	IncrementScalar(context.Context, string, int64) (int64, error)
	DeleteKey(context.Context, string) error
} = (*Store)(nil)
