package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the classifier's keyword tables and decision thresholds.
// It is loaded once at startup (plus hot reloads, see watcher.go) and passed
// into the classifier as an immutable value; the classifier never consults
// global state.
type Tuning struct {
	// Categories maps category name → weighted pattern set.
	Categories map[string]CategoryPatterns `yaml:"categories"`

	// VectorAffinity maps named vector → keyword list used to pick a
	// fusion strategy.
	VectorAffinity map[string][]string `yaml:"vector_affinity"`

	Thresholds Thresholds `yaml:"thresholds"`
}

// CategoryPatterns is the weighted pattern set for one category.
type CategoryPatterns struct {
	// Keywords score 2.0 on exact token match and 1.0 on substring match.
	Keywords []string `yaml:"keywords"`

	// EntityTypes score 1.5 when a token names a known entity type.
	EntityTypes []string `yaml:"entity_types"`
}

// Thresholds are the classifier decision constants.
type Thresholds struct {
	// MinCategoryScore is the floor below which a query is General.
	MinCategoryScore float64 `yaml:"min_category_score"`

	// SecondaryRatio is the fraction of the primary score a category must
	// reach to be included as secondary.
	SecondaryRatio float64 `yaml:"secondary_ratio"`

	// PrimaryVectorShare selects a single-vector strategy when one
	// normalized affinity score exceeds it.
	PrimaryVectorShare float64 `yaml:"primary_vector_share"`

	// WeightedVectorShare selects a weighted combination when the max
	// normalized affinity score exceeds it (but not PrimaryVectorShare).
	WeightedVectorShare float64 `yaml:"weighted_vector_share"`

	// EmotionHintFloor is the hint confidence above which a pre-computed
	// emotion label overrides keyword emotion scoring.
	EmotionHintFloor float64 `yaml:"emotion_hint_floor"`
}

// DefaultTuning returns the built-in keyword tables and thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		Categories: map[string]CategoryPatterns{
			"factual": {
				Keywords: []string{
					"what", "which", "do i", "did i", "my favorite", "favorite",
					"like", "love", "hate", "prefer", "own", "know about",
					"foods", "hobbies", "remember about",
				},
				EntityTypes: []string{"food", "hobby", "person", "place", "media", "animal"},
			},
			"emotional": {
				Keywords: []string{
					"feel", "feeling", "felt", "mood", "happy", "sad", "angry",
					"excited", "anxious", "upset", "worried", "love", "miss",
					"emotion", "emotional",
				},
			},
			"conversational": {
				Keywords: []string{
					"you said", "we talked", "we discussed", "you told me",
					"our conversation", "you mentioned", "i asked", "reply",
					"chat", "talk",
				},
			},
			"temporal": {
				Keywords: []string{
					"first", "earliest", "last", "recent", "recently", "yesterday",
					"today", "ago", "when did", "start", "began", "before", "after",
				},
			},
		},
		VectorAffinity: map[string][]string{
			"content": {
				"what", "explain", "define", "describe", "tell me", "how does",
				"details", "information", "about",
			},
			"emotion": {
				"feel", "feeling", "felt", "mood", "happy", "sad", "angry",
				"excited", "scared", "anxious", "emotion",
			},
			"semantic": {
				"similar", "like that", "pattern", "relate", "related",
				"connection", "compare", "reminds", "theme",
			},
		},
		Thresholds: Thresholds{
			MinCategoryScore:    1.0,
			SecondaryRatio:      0.7,
			PrimaryVectorShare:  0.45,
			WeightedVectorShare: 0.35,
			EmotionHintFloor:    0.6,
		},
	}
}

// LoadTuning reads a tuning YAML file and overlays it on the defaults.
// Sections absent from the file keep their default values, so a deployment
// can tune a single threshold without restating the keyword tables.
// An empty path returns the defaults unchanged.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, fmt.Errorf("config: read tuning file %s: %w", path, err)
	}

	var overlay Tuning
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return tuning, fmt.Errorf("config: parse tuning file %s: %w", path, err)
	}

	if len(overlay.Categories) > 0 {
		tuning.Categories = overlay.Categories
	}
	if len(overlay.VectorAffinity) > 0 {
		tuning.VectorAffinity = overlay.VectorAffinity
	}
	if overlay.Thresholds.MinCategoryScore > 0 {
		tuning.Thresholds.MinCategoryScore = overlay.Thresholds.MinCategoryScore
	}
	if overlay.Thresholds.SecondaryRatio > 0 {
		tuning.Thresholds.SecondaryRatio = overlay.Thresholds.SecondaryRatio
	}
	if overlay.Thresholds.PrimaryVectorShare > 0 {
		tuning.Thresholds.PrimaryVectorShare = overlay.Thresholds.PrimaryVectorShare
	}
	if overlay.Thresholds.WeightedVectorShare > 0 {
		tuning.Thresholds.WeightedVectorShare = overlay.Thresholds.WeightedVectorShare
	}
	if overlay.Thresholds.EmotionHintFloor > 0 {
		tuning.Thresholds.EmotionHintFloor = overlay.Thresholds.EmotionHintFloor
	}

	return tuning, nil
}
