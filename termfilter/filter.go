// Package termfilter decides which search terms may be recorded on the leaderboard.
package termfilter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"hotboard/core"
)

// MaxTermRunes bounds the length of a recordable term.
const MaxTermRunes = 64

// defaultBlocklist holds substrings that disqualify a term. Entries are
// already normalized (lower case, single spaces).
var defaultBlocklist = []string{
	"porn",
	"casino",
	"gambling",
	"viagra",
	"free bitcoin",
	"crack download",
	"色情",
	"赌博",
	"博彩",
	"代开发票",
}

var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
	regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`),
	regexp.MustCompile(`(?i)<\s*/?\s*script`),
	// long digit runs look like phone numbers or card numbers
	regexp.MustCompile(`\d{9,}`),
}

// Filter is an immutable blocklist and pattern set.
type Filter struct {
	blocklist []string
	patterns  []*regexp.Regexp
	maxRunes  int
}

// New builds a Filter from the defaults plus extra blocklist entries.
// Extra entries go through core.NormalizeTerm, the same as recorded terms;
// blanks are ignored.
func New(extra ...string) *Filter {
	f := &Filter{
		blocklist: append([]string{}, defaultBlocklist...),
		patterns:  defaultPatterns,
		maxRunes:  MaxTermRunes,
	}
	for _, e := range extra {
		if normalized, err := core.NormalizeTerm(e); err == nil {
			f.blocklist = append(f.blocklist, normalized)
		}
	}
	return f
}

// IsForbidden reports whether a normalized term must not be recorded.
func (f *Filter) IsForbidden(term string) bool {
	if utf8.RuneCountInString(term) > f.maxRunes {
		return true
	}
	for _, r := range term {
		if unicode.IsControl(r) {
			return true
		}
	}
	for _, b := range f.blocklist {
		if strings.Contains(term, b) {
			return true
		}
	}
	for _, p := range f.patterns {
		if p.MatchString(term) {
			return true
		}
	}
	return false
}

var defaultFilter = New()

// IsForbidden checks term against the default filter.
func IsForbidden(term string) bool { return defaultFilter.IsForbidden(term) }
