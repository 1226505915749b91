package knowledge

import (
	"time"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// confidenceTieBand is the confidence delta within which two opposing facts
// are considered tied. Ties resolve toward the more recent mention.
const confidenceTieBand = 0.05

// opposingTypes maps each relationship type to the types it contradicts.
// The table is symmetric: likes↔dislikes means a stored "likes" blocks a
// weaker "dislikes" and vice versa. Without this check the graph would
// happily believe "user likes pizza" and "user hates pizza" at once.
var opposingTypes = map[string][]string{
	types.RelLikes:      {types.RelDislikes, types.RelHates, types.RelAvoids},
	types.RelLoves:      {types.RelDislikes, types.RelHates, types.RelAvoids},
	types.RelFavorite:   {types.RelDislikes, types.RelHates, types.RelAvoids},
	types.RelEnjoys:     {types.RelDislikes, types.RelHates, types.RelAvoids},
	types.RelDislikes:   {types.RelLikes, types.RelLoves, types.RelFavorite, types.RelEnjoys},
	types.RelHates:      {types.RelLikes, types.RelLoves, types.RelFavorite, types.RelEnjoys},
	types.RelAvoids:     {types.RelLikes, types.RelLoves, types.RelFavorite, types.RelEnjoys},
	types.RelWantsToTry: {types.RelAvoids},
}

// OpposingTypes returns the relationship types that contradict relType.
// An empty slice means the type participates in no contradiction pair.
func OpposingTypes(relType string) []string {
	return opposingTypes[relType]
}

// Opposes reports whether a and b are a contradiction pair.
func Opposes(a, b string) bool {
	for _, o := range opposingTypes[a] {
		if o == b {
			return true
		}
	}
	return false
}

// Resolution is the outcome of resolving a new fact against an existing
// opposing fact.
type Resolution int

const (
	// NewFactWins supersedes the existing fact; the new fact is stored live.
	NewFactWins Resolution = iota

	// ExistingFactWins keeps the existing fact live; the new fact is
	// stored flagged as superseded so the contradiction is auditable,
	// never silently dropped.
	ExistingFactWins
)

// Resolve decides between an existing fact and a new opposing mention.
// Higher confidence wins outright; confidence within the tie band resolves
// toward the more recent mention, which deterministically favors the new
// fact (its mention time is the current turn).
func Resolve(existing types.Fact, newConfidence float64, newMentionedAt time.Time) Resolution {
	delta := newConfidence - existing.Confidence
	if delta > confidenceTieBand {
		return NewFactWins
	}
	if delta < -confidenceTieBand {
		return ExistingFactWins
	}
	if newMentionedAt.Before(existing.LastMentioned) {
		return ExistingFactWins
	}
	return NewFactWins
}
