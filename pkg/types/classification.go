package types

// Category is the high-level intent of a query.
type Category string

const (
	// CategoryFactual seeks stored knowledge about the user ("what foods do I like").
	CategoryFactual Category = "factual"

	// CategoryEmotional seeks affective recall ("how did we feel about that").
	CategoryEmotional Category = "emotional"

	// CategoryConversational references the dialogue itself ("what did you say").
	CategoryConversational Category = "conversational"

	// CategoryTemporal seeks chronological position ("what was the first thing").
	CategoryTemporal Category = "temporal"

	// CategoryGeneral is the fallback when no category scores above the floor.
	CategoryGeneral Category = "general"
)

// StrategyKind identifies how named-vector searches are combined.
type StrategyKind string

const (
	StrategyContentOnly     StrategyKind = "content_only"
	StrategyEmotionPrimary  StrategyKind = "emotion_primary"
	StrategySemanticPrimary StrategyKind = "semantic_primary"
	StrategyWeighted        StrategyKind = "weighted_combination"
	StrategyBalanced        StrategyKind = "balanced_fusion"
)

// Named vector identifiers. Each memory record carries one embedding per
// named vector; the names are a frozen contract with the external writers.
const (
	VectorContent  = "content"
	VectorEmotion  = "emotion"
	VectorSemantic = "semantic"
)

// NamedVectors lists every named vector a memory record carries.
var NamedVectors = []string{VectorContent, VectorEmotion, VectorSemantic}

// VectorStrategy selects which named vectors to search and how to weight them.
// Weights is populated for StrategyWeighted and StrategyBalanced and always
// sums to 1.0; for single-vector strategies it is nil.
type VectorStrategy struct {
	Kind    StrategyKind       `json:"kind"`
	Weights map[string]float64 `json:"weights,omitempty"`
}

// PrimaryVector returns the named vector a single-vector strategy targets.
// For fusion strategies it returns the content vector, which doubles as the
// degraded-mode fallback.
func (s VectorStrategy) PrimaryVector() string {
	switch s.Kind {
	case StrategyEmotionPrimary:
		return VectorEmotion
	case StrategySemanticPrimary:
		return VectorSemantic
	default:
		return VectorContent
	}
}

// IsFusion reports whether the strategy searches more than one named vector.
func (s VectorStrategy) IsFusion() bool {
	return s.Kind == StrategyWeighted || s.Kind == StrategyBalanced
}

// BalancedStrategy returns the equal-weight fusion strategy.
func BalancedStrategy() VectorStrategy {
	return VectorStrategy{
		Kind: StrategyBalanced,
		Weights: map[string]float64{
			VectorContent:  1.0 / 3.0,
			VectorEmotion:  1.0 / 3.0,
			VectorSemantic: 1.0 / 3.0,
		},
	}
}

// Classification is the ephemeral result of classifying one query.
// It is produced fresh per request and never persisted.
type Classification struct {
	// Category is the highest-scoring (or forced) primary category.
	Category Category `json:"category"`

	// Confidence is the primary category's normalized confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// SecondaryCategories lists categories scoring within the inclusion
	// threshold of the primary, strongest first.
	SecondaryCategories []Category `json:"secondary_categories,omitempty"`

	// Strategy is the vector fusion strategy chosen for this query.
	Strategy VectorStrategy `json:"strategy"`

	// EntityTypes are the entity types the query named ("foods" → food),
	// sorted, used to scope fact retrieval.
	EntityTypes []string `json:"entity_types,omitempty"`

	// RelationshipTypes are the relationship types the query's preference
	// verbs imply ("like" → likes, loves, favorite, enjoys).
	RelationshipTypes []string `json:"relationship_types,omitempty"`

	// Temporal carries the detected temporal window when Category is
	// CategoryTemporal; nil otherwise.
	Temporal *TemporalWindow `json:"temporal,omitempty"`
}

// Includes reports whether c's primary or secondary categories contain cat.
func (c Classification) Includes(cat Category) bool {
	if c.Category == cat {
		return true
	}
	for _, s := range c.SecondaryCategories {
		if s == cat {
			return true
		}
	}
	return false
}
