package memory

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"

	"hotboard/core"
)

// A skip list keyed by (score asc, member asc), the same order Redis uses for
// sorted sets, giving O(log n) updates. Not safe for concurrent use; the
// owning Store serializes access per key.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	member string
	score  float64
	prev   *node
	next   [maxLevel]*node
}

type skipList struct {
	head     *node
	tail     *node
	lvl      int
	length   int64
	byMember map[string]*node
	rng      *rand.Rand
}

func newSkipList() *skipList {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &skipList{
		head:     &node{},
		lvl:      1,
		byMember: map[string]*node{},
		rng:      rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *skipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

// before reports whether n sorts strictly before (score, member).
func before(n *node, score float64, member string) bool {
	if n.score == score {
		return n.member < member
	}
	return n.score < score
}

func (s *skipList) score(member string) (float64, bool) {
	if n, ok := s.byMember[member]; ok {
		return n.score, true
	}
	return 0, false
}

// incr adds delta to member's score, inserting it at delta when absent.
func (s *skipList) incr(member string, delta float64) float64 {
	score := delta
	if old, ok := s.byMember[member]; ok {
		score += old.score
		s.unlink(old)
	}
	s.insert(member, score)
	return score
}

func (s *skipList) insert(member string, score float64) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && before(cur.next[i], score, member) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{member: member, score: score}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	if update[0] != s.head {
		n.prev = update[0]
	}
	if n.next[0] != nil {
		n.next[0].prev = n
	} else {
		s.tail = n
	}
	s.byMember[member] = n
	s.length++
}

func (s *skipList) unlink(target *node) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && before(cur.next[i], target.score, target.member) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	if update[0].next[0] != target {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	if target.next[0] != nil {
		target.next[0].prev = target.prev
	} else {
		s.tail = target.prev
	}
	delete(s.byMember, target.member)
	s.length--
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *skipList) remove(member string) bool {
	n, ok := s.byMember[member]
	if !ok {
		return false
	}
	s.unlink(n)
	return true
}

// clampRange resolves Redis-style inclusive ranks against the current length.
func clampRange(start, stop, length int64) (int64, int64, bool) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if start > stop || start >= length {
		return 0, 0, false
	}
	if stop >= length {
		stop = length - 1
	}
	return start, stop, true
}

func (s *skipList) rangeByRank(start, stop int64, reverse bool) []core.RankedEntry {
	start, stop, ok := clampRange(start, stop, s.length)
	if !ok {
		return nil
	}
	out := make([]core.RankedEntry, 0, stop-start+1)
	var cur *node
	if reverse {
		cur = s.tail
	} else {
		cur = s.head.next[0]
	}
	for rank := int64(0); cur != nil && rank <= stop; rank++ {
		if rank >= start {
			out = append(out, core.RankedEntry{Member: cur.member, Score: cur.score})
		}
		if reverse {
			cur = cur.prev
		} else {
			cur = cur.next[0]
		}
	}
	return out
}

func (s *skipList) removeRangeByRank(start, stop int64) int64 {
	victims := s.rangeByRank(start, stop, false)
	for _, v := range victims {
		s.remove(v.Member)
	}
	return int64(len(victims))
}

// trim keeps the limit highest-ranked members and returns how many it dropped.
func (s *skipList) trim(limit int64) int64 {
	if s.length <= limit {
		return 0
	}
	return s.removeRangeByRank(0, s.length-limit-1)
}
