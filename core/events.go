package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventTermRecorded        EventType = "term_recorded"
	EventTermDeleted         EventType = "term_deleted"
	EventLeaderboardTrimmed  EventType = "leaderboard_trimmed"
	EventLeaderboardCleared  EventType = "leaderboard_cleared"
	EventResourceMarked      EventType = "resource_marked"
	EventResourceInvalidated EventType = "resource_invalidated"
	EventViewCounted         EventType = "view_counted"
)

// Valid reports whether t names a known event.
func (t EventType) Valid() bool {
	switch t {
	case EventTermRecorded, EventTermDeleted, EventLeaderboardTrimmed, EventLeaderboardCleared,
		EventResourceMarked, EventResourceInvalidated, EventViewCounted:
		return true
	}
	return false
}

// Event represents an immutable domain event.
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	Key      string         `json:"key"`
	Member   string         `json:"member,omitempty"`
	Score    float64        `json:"score,omitempty"`
	Count    int64          `json:"count,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, key string) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), Key: key}
}

func NewTermRecorded(term string, score float64) Event {
	ev := newEvent(EventTermRecorded, KeyHotSearches)
	ev.Member, ev.Score = term, score
	return ev
}

func NewTermDeleted(term string) Event {
	ev := newEvent(EventTermDeleted, KeyHotSearches)
	ev.Member = term
	return ev
}

func NewLeaderboardTrimmed(removed int64) Event {
	ev := newEvent(EventLeaderboardTrimmed, KeyHotSearches)
	ev.Count = removed
	return ev
}

func NewLeaderboardCleared() Event {
	return newEvent(EventLeaderboardCleared, KeyHotSearches)
}

func NewResourceMarked(url string, score float64) Event {
	ev := newEvent(EventResourceMarked, KeyInvalidResources)
	ev.Member, ev.Score = url, score
	return ev
}

// NewResourceInvalidated is emitted once, when a resource's demerit score first reaches InvalidThreshold.
func NewResourceInvalidated(url string, score float64) Event {
	ev := newEvent(EventResourceInvalidated, KeyInvalidResources)
	ev.Member, ev.Score = url, score
	return ev
}

func NewViewCounted(id string, count int64) Event {
	ev := newEvent(EventViewCounted, ViewsKey(id))
	ev.Member, ev.Count = id, count
	return ev
}
