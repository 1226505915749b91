// Package classifier scores natural-language queries against weighted
// keyword tables to produce a category and a vector fusion strategy in one
// pass. Classification is a pure function of the query and the tuning
// tables: no I/O, no hidden state, well under a millisecond.
package classifier

import (
	"sort"
	"strings"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/config"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// Pattern match weights. Categories are scored independently, not as a
// probability distribution: a query can legitimately belong to more than
// one category, and token collisions across pattern sets are what make
// secondary categories possible.
const (
	exactMatchWeight   = 2.0
	partialMatchWeight = 1.0
	entityTypeWeight   = 1.5
)

// hintAffinityScale converts an authoritative emotion hint's confidence
// into a raw affinity score comparable to two or three keyword hits.
const hintAffinityScale = 5.0

// Classifier scores queries against category and vector-affinity tables.
// The tuning tables are copied at construction and never mutated, so one
// classifier is safe for concurrent use and parallel test instances never
// share state.
type Classifier struct {
	tuning   config.Tuning
	detector *TemporalDetector
}

// New creates a classifier with the given tuning tables.
func New(tuning config.Tuning) *Classifier {
	return &Classifier{
		tuning:   tuning,
		detector: NewTemporalDetector(),
	}
}

// Classify produces a Classification for the query. The temporal detector
// runs first; a temporal verdict forces the category regardless of keyword
// scores. Otherwise the highest-scoring category wins, with categories
// within the secondary ratio included as secondaries, and the vector
// affinity tables pick the fusion strategy.
func (c *Classifier) Classify(q types.Query) types.Classification {
	strategy := c.chooseStrategy(q)

	if isTemporal, window := c.detector.Detect(q); isTemporal {
		return types.Classification{
			Category:   types.CategoryTemporal,
			Confidence: 0.95,
			Strategy:   strategy,
			Temporal:   &window,
		}
	}

	tokens := tokenize(strings.ToLower(q.Text))
	if len(tokens) == 0 {
		return types.Classification{
			Category:   types.CategoryGeneral,
			Confidence: 0.3,
			Strategy:   types.BalancedStrategy(),
		}
	}

	scores := c.scoreCategories(strings.ToLower(q.Text), tokens)

	primary, primaryScore := bestCategory(scores)
	if primaryScore < c.tuning.Thresholds.MinCategoryScore {
		return types.Classification{
			Category:   types.CategoryGeneral,
			Confidence: 0.3,
			Strategy:   strategy,
		}
	}

	var secondaries []types.Category
	for name, score := range scores {
		if name == string(primary) {
			continue
		}
		if score >= c.tuning.Thresholds.SecondaryRatio*primaryScore &&
			score >= c.tuning.Thresholds.MinCategoryScore {
			secondaries = append(secondaries, types.Category(name))
		}
	}
	sort.Slice(secondaries, func(i, j int) bool {
		if scores[string(secondaries[i])] != scores[string(secondaries[j])] {
			return scores[string(secondaries[i])] > scores[string(secondaries[j])]
		}
		return secondaries[i] < secondaries[j]
	})

	entityTypes, relTypes := c.factScope(tokens)

	return types.Classification{
		Category:            primary,
		Confidence:          primaryScore / (primaryScore + 2.0),
		SecondaryCategories: secondaries,
		Strategy:            strategy,
		EntityTypes:         entityTypes,
		RelationshipTypes:   relTypes,
	}
}

// verbRelTypes maps preference verbs to the relationship types they imply.
// "Do I like X" should match stored likes, loves, favorite, and enjoys
// facts, not only the literal verb.
var verbRelTypes = []struct {
	verb string
	rels []string
}{
	{"like", []string{types.RelLikes, types.RelLoves, types.RelFavorite, types.RelEnjoys}},
	{"love", []string{types.RelLoves, types.RelLikes, types.RelFavorite}},
	{"favorite", []string{types.RelFavorite, types.RelLikes, types.RelLoves}},
	{"enjoy", []string{types.RelEnjoys, types.RelLikes}},
	{"dislike", []string{types.RelDislikes, types.RelHates, types.RelAvoids}},
	{"hate", []string{types.RelHates, types.RelDislikes, types.RelAvoids}},
	{"avoid", []string{types.RelAvoids, types.RelDislikes}},
	{"fear", []string{types.RelFears}},
	{"own", []string{types.RelOwns}},
	{"know", []string{types.RelKnows}},
	{"visit", []string{types.RelVisited}},
}

// factScope extracts the entity types the query names and the relationship
// types its preference verbs imply, so the fact store can be read with a
// scoped filter instead of returning every fact the user has.
func (c *Classifier) factScope(tokens []string) (entityTypes, relTypes []string) {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	seenTypes := make(map[string]bool)
	for _, patterns := range c.tuning.Categories {
		for _, et := range patterns.EntityTypes {
			if seenTypes[et] {
				continue
			}
			if tokenSet[et] || tokenSet[et+"s"] || tokenSet[et+"es"] {
				seenTypes[et] = true
				entityTypes = append(entityTypes, et)
			}
		}
	}
	sort.Strings(entityTypes)

	seenRels := make(map[string]bool)
	for _, entry := range verbRelTypes {
		if !matchesVerb(tokenSet, entry.verb) {
			continue
		}
		for _, rel := range entry.rels {
			if seenRels[rel] {
				continue
			}
			seenRels[rel] = true
			relTypes = append(relTypes, rel)
		}
	}
	return entityTypes, relTypes
}

// matchesVerb checks the verb and its common inflections against the
// query's tokens ("like", "likes", "liked").
func matchesVerb(tokenSet map[string]bool, verb string) bool {
	return tokenSet[verb] || tokenSet[verb+"s"] || tokenSet[verb+"d"] || tokenSet[verb+"ed"]
}

// scoreCategories computes the independent per-category pattern scores.
func (c *Classifier) scoreCategories(text string, tokens []string) map[string]float64 {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	scores := make(map[string]float64, len(c.tuning.Categories))
	for name, patterns := range c.tuning.Categories {
		score := 0.0
		for _, kw := range patterns.Keywords {
			score += matchScore(text, tokenSet, tokens, kw)
		}
		for _, et := range patterns.EntityTypes {
			if tokenSet[et] || tokenSet[et+"s"] || tokenSet[et+"es"] {
				score += entityTypeWeight
			}
		}
		scores[name] = score
	}
	return scores
}

// matchScore scores one keyword against the query: exact token (or whole
// phrase) matches score 2.0, substring matches 1.0, misses 0.
func matchScore(text string, tokenSet map[string]bool, tokens []string, keyword string) float64 {
	if strings.ContainsRune(keyword, ' ') {
		if strings.Contains(text, keyword) {
			return exactMatchWeight
		}
		return 0
	}
	if tokenSet[keyword] {
		return exactMatchWeight
	}
	for _, t := range tokens {
		if strings.Contains(t, keyword) {
			return partialMatchWeight
		}
	}
	return 0
}

// chooseStrategy scores the query against the three vector-affinity keyword
// sets, normalizes the scores to sum to 1, and maps the dominant share to a
// strategy. A pre-computed emotion hint above the override floor replaces
// keyword emotion scoring entirely: an authoritative signal beats a
// heuristic one.
func (c *Classifier) chooseStrategy(q types.Query) types.VectorStrategy {
	text := strings.ToLower(q.Text)
	tokens := tokenize(text)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	raw := make(map[string]float64, len(types.NamedVectors))
	for _, vec := range types.NamedVectors {
		score := 0.0
		for _, kw := range c.tuning.VectorAffinity[vec] {
			score += matchScore(text, tokenSet, tokens, kw)
		}
		raw[vec] = score
	}

	if q.Emotion != nil && q.Emotion.Confidence > c.tuning.Thresholds.EmotionHintFloor {
		raw[types.VectorEmotion] = q.Emotion.Confidence * hintAffinityScale
	}

	total := 0.0
	for _, s := range raw {
		total += s
	}
	if total == 0 {
		return types.BalancedStrategy()
	}

	weights := make(map[string]float64, len(raw))
	maxVec, maxShare := "", 0.0
	for vec, s := range raw {
		share := s / total
		weights[vec] = share
		if share > maxShare {
			maxVec, maxShare = vec, share
		}
	}

	switch {
	case maxShare > c.tuning.Thresholds.PrimaryVectorShare:
		switch maxVec {
		case types.VectorEmotion:
			return types.VectorStrategy{Kind: types.StrategyEmotionPrimary}
		case types.VectorSemantic:
			return types.VectorStrategy{Kind: types.StrategySemanticPrimary}
		default:
			return types.VectorStrategy{Kind: types.StrategyContentOnly}
		}
	case maxShare > c.tuning.Thresholds.WeightedVectorShare:
		return types.VectorStrategy{Kind: types.StrategyWeighted, Weights: weights}
	default:
		return types.BalancedStrategy()
	}
}

// bestCategory returns the highest-scoring category, breaking ties by name
// for determinism.
func bestCategory(scores map[string]float64) (types.Category, float64) {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestScore := types.CategoryGeneral, 0.0
	for _, name := range names {
		if scores[name] > bestScore {
			best, bestScore = types.Category(name), scores[name]
		}
	}
	return best, bestScore
}

// tokenize splits lowercase text into alphanumeric tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '\'')
	})
}
