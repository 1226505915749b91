package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// oldestLimit caps result counts for oldest-direction queries. "The first
// thing we discussed" is a handful of turns; reusing a recency-sized page
// here buries the answer.
const oldestLimit = 5

// newestLimit is the default cap for newest-direction queries.
const newestLimit = 10

// TemporalDetector decides whether a query wants chronological recall rather
// than similarity search, and in which direction. It runs before category
// classification and its verdict overrides every other signal: answering
// "what was the first thing we discussed" with a similarity search is
// always wrong.
type TemporalDetector struct {
	oldestPhrases []string
	newestPhrases []string
	relativeRe    *regexp.Regexp
	allTimeRe     *regexp.Regexp
}

// NewTemporalDetector creates a detector with the built-in phrase sets.
func NewTemporalDetector() *TemporalDetector {
	return &TemporalDetector{
		oldestPhrases: []string{
			"first", "earliest", "initial", "originally",
			"when did we start", "in the beginning", "at the start",
			"how did we begin", "when we first",
		},
		newestPhrases: []string{
			"last", "latest", "most recent", "recently", "just now",
			"moments ago", "a moment ago", "a second ago",
		},
		relativeRe: regexp.MustCompile(`\b(yesterday|(\d+|a|an)\s+(minute|hour|day|week)s?\s+ago)\b`),
		allTimeRe:  regexp.MustCompile(`\b(ever|all time|always|of all)\b`),
	}
}

// Detect classifies the query's temporal intent. When isTemporal is false
// the returned window is the zero value and must be ignored.
func (d *TemporalDetector) Detect(q types.Query) (bool, types.TemporalWindow) {
	text := strings.ToLower(q.Text)

	scope := types.ScopeSession
	if d.allTimeRe.MatchString(text) {
		scope = types.ScopeAllTime
	}

	// Explicit relative markers take precedence: "yesterday" pins a range
	// and always reads newest-first within it.
	if loc := d.relativeRe.FindString(text); loc != "" {
		after, before := relativeRange(loc, q.At())
		return true, types.TemporalWindow{
			Direction: types.DirectionNewest,
			Scope:     types.ScopeAllTime,
			Limit:     newestLimit,
			After:     after,
			Before:    before,
		}
	}

	if matchesPhrase(text, d.oldestPhrases) {
		return true, types.TemporalWindow{
			Direction: types.DirectionOldest,
			Scope:     scope,
			Limit:     oldestLimit,
		}
	}

	if matchesPhrase(text, d.newestPhrases) {
		return true, types.TemporalWindow{
			Direction: types.DirectionNewest,
			Scope:     scope,
			Limit:     newestLimit,
		}
	}

	return false, types.TemporalWindow{}
}

// matchesPhrase reports whether text contains any phrase on a word boundary.
// Single-word phrases must match a whole token so "last" does not fire on
// "blastoff".
func matchesPhrase(text string, phrases []string) bool {
	tokens := tokenize(text)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	for _, p := range phrases {
		if strings.ContainsRune(p, ' ') {
			if strings.Contains(text, p) {
				return true
			}
			continue
		}
		if tokenSet[p] {
			return true
		}
	}
	return false
}

// relativeRange converts a matched relative marker to an [after, before)
// window anchored at the reference time.
func relativeRange(marker string, at time.Time) (time.Time, time.Time) {
	if marker == "yesterday" {
		startOfToday := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
		return startOfToday.AddDate(0, 0, -1), startOfToday
	}

	fields := strings.Fields(marker)
	if len(fields) != 3 {
		return time.Time{}, time.Time{}
	}

	n := 1
	if fields[0] != "a" && fields[0] != "an" {
		if parsed, err := strconv.Atoi(fields[0]); err == nil {
			n = parsed
		}
	}

	var unit time.Duration
	switch strings.TrimSuffix(fields[1], "s") {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	default:
		return time.Time{}, time.Time{}
	}

	return at.Add(-time.Duration(n) * unit), at
}
