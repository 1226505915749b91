package knowledge

import "strings"

// DiscoverySimilarityFloor is the minimum trigram similarity for a
// similar_to edge to be created between two entities of the same type.
const DiscoverySimilarityFloor = 0.3

// TrigramSimilarity computes Jaccard similarity over character trigrams of
// the two names, case-insensitively. Names shorter than three characters
// fall back to exact comparison. Returns a value in [0,1].
func TrigramSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}

	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for t := range ta {
		if tb[t] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// trigrams returns the set of character trigrams of s, padded with spaces
// the way pg_trgm does so short words still share boundary trigrams.
func trigrams(s string) map[string]bool {
	padded := "  " + s + " "
	runes := []rune(padded)
	set := make(map[string]bool, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = true
	}
	return set
}
