package core

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Well-known keys in the backing store.
const (
	KeyHotSearches      = "hot-searches"
	KeyInvalidResources = "invalid-resources"
	ViewsPrefix         = "views:"
)

const (
	// DefaultLeaderboardSize is the maximum number of hot-search entries retained.
	DefaultLeaderboardSize = 50
	// DefaultTopN is the number of entries returned when the caller does not ask for a size.
	DefaultTopN = 30
	// InvalidThreshold is the demerit score at which a resource counts as invalid.
	InvalidThreshold = 3
)

// RankedEntry is a member of a ranked set together with its score.
type RankedEntry struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// RangeOptions tunes a rank range query.
// Without Reverse, ranks are ordered by ascending score.
type RangeOptions struct {
	WithScores bool
	Reverse    bool
}

// NormalizeTerm canonicalizes a search term so that visually identical input
// maps to a single leaderboard member: NFKC, lower case, trimmed, and inner
// whitespace runs collapsed to one space.
func NormalizeTerm(term string) (string, error) {
	s := norm.NFKC.String(term)
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	if s == "" {
		return "", fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}
	// Casers carry state and must not be shared across goroutines.
	return cases.Lower(language.Und).String(s), nil
}

// NormalizeURL trims a resource URL; URLs are otherwise stored verbatim.
func NormalizeURL(url string) (string, error) {
	s := strings.TrimSpace(url)
	if s == "" {
		return "", fmt.Errorf("%w: resource url is required", ErrInvalidInput)
	}
	return s, nil
}

// NormalizeCounterID validates a view counter identifier.
func NormalizeCounterID(id string) (string, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return "", fmt.Errorf("%w: counter id is required", ErrInvalidInput)
	}
	if strings.ContainsAny(s, "*?[]") {
		return "", fmt.Errorf("%w: counter id %q contains pattern characters", ErrInvalidInput, s)
	}
	return s, nil
}

// ViewsKey returns the scalar key for a view counter identifier.
func ViewsKey(id string) string { return ViewsPrefix + id }
