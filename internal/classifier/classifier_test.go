package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/config"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

func newTestClassifier() *Classifier {
	return New(config.DefaultTuning())
}

func TestClassifyFactual(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "What foods do I like?"})
	assert.Equal(t, types.CategoryFactual, cls.Category)
	assert.Greater(t, cls.Confidence, 0.5)
}

func TestClassifyExtractsFactScope(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "What foods do I like?"})
	assert.Equal(t, []string{types.EntityTypeFood}, cls.EntityTypes)
	assert.Contains(t, cls.RelationshipTypes, types.RelLikes)
	assert.Contains(t, cls.RelationshipTypes, types.RelLoves)
	assert.Contains(t, cls.RelationshipTypes, types.RelFavorite)
	assert.Contains(t, cls.RelationshipTypes, types.RelEnjoys)
	assert.NotContains(t, cls.RelationshipTypes, types.RelHates)
}

func TestClassifyFactScopeMultipleEntityTypes(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "What foods and hobbies do I enjoy?"})
	assert.Equal(t, []string{types.EntityTypeFood, types.EntityTypeHobby}, cls.EntityTypes)
	assert.Contains(t, cls.RelationshipTypes, types.RelEnjoys)
}

func TestClassifyFactScopeNegativeVerb(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "Which foods did I say I hated?"})
	assert.Equal(t, []string{types.EntityTypeFood}, cls.EntityTypes)
	assert.Contains(t, cls.RelationshipTypes, types.RelHates)
	assert.Contains(t, cls.RelationshipTypes, types.RelDislikes)
	assert.NotContains(t, cls.RelationshipTypes, types.RelLikes)
}

func TestClassifyEmotional(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "How was I feeling about the move, was I anxious?"})
	assert.Equal(t, types.CategoryEmotional, cls.Category)
}

func TestClassifyConversational(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "You said something about a trip in our conversation"})
	assert.Equal(t, types.CategoryConversational, cls.Category)
}

func TestClassifyTemporalOverridesKeywords(t *testing.T) {
	c := newTestClassifier()

	// "favorite" scores factual, but the temporal detector fires on
	// "first" and must win.
	cls := c.Classify(types.Query{Text: "What was the first favorite food I mentioned?"})
	require.Equal(t, types.CategoryTemporal, cls.Category)
	require.NotNil(t, cls.Temporal)
	assert.Equal(t, types.DirectionOldest, cls.Temporal.Direction)
	assert.InDelta(t, 0.95, cls.Confidence, 0.001)
}

func TestClassifyGeneralFallback(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "zucchini parachute"})
	assert.Equal(t, types.CategoryGeneral, cls.Category)
	assert.InDelta(t, 0.3, cls.Confidence, 0.001)
}

func TestClassifyEmptyQuery(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "   "})
	assert.Equal(t, types.CategoryGeneral, cls.Category)
	assert.Equal(t, types.StrategyBalanced, cls.Strategy.Kind)
}

func TestClassifySecondaryCategories(t *testing.T) {
	c := newTestClassifier()

	// Factual and emotional vocabulary in the same query: the weaker
	// category should surface as a secondary, not vanish.
	cls := c.Classify(types.Query{Text: "Do I love my hobbies, and do they make me feel happy or sad?"})
	assert.Contains(t, []types.Category{types.CategoryFactual, types.CategoryEmotional}, cls.Category)
	secondary := types.CategoryEmotional
	if cls.Category == types.CategoryEmotional {
		secondary = types.CategoryFactual
	}
	assert.True(t, cls.Includes(secondary), "expected %s as secondary, got %v", secondary, cls.SecondaryCategories)
}

func TestStrategyEmotionPrimary(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "happy sad angry excited mood feelings"})
	assert.Equal(t, types.StrategyEmotionPrimary, cls.Strategy.Kind)
}

func TestStrategyContentForInformational(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "explain the details and describe the information"})
	assert.Equal(t, types.StrategyContentOnly, cls.Strategy.Kind)
}

func TestStrategyBalancedWhenNoAffinity(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{Text: "zucchini parachute tuesday"})
	assert.Equal(t, types.StrategyBalanced, cls.Strategy.Kind)
	assert.InDelta(t, 1.0/3.0, cls.Strategy.Weights[types.VectorContent], 0.001)
}

func TestEmotionHintOverridesKeywords(t *testing.T) {
	c := newTestClassifier()

	// No emotion vocabulary in the text, but a high-confidence hint
	// should still pull the strategy toward the emotion vector.
	cls := c.Classify(types.Query{
		Text:    "zucchini parachute tuesday",
		Emotion: &types.EmotionHint{Label: "sadness", Confidence: 0.9},
	})
	assert.Equal(t, types.StrategyEmotionPrimary, cls.Strategy.Kind)
}

func TestEmotionHintBelowFloorIgnored(t *testing.T) {
	c := newTestClassifier()

	cls := c.Classify(types.Query{
		Text:    "zucchini parachute tuesday",
		Emotion: &types.EmotionHint{Label: "sadness", Confidence: 0.4},
	})
	assert.Equal(t, types.StrategyBalanced, cls.Strategy.Kind)
}

func TestWeightedStrategySumsToOne(t *testing.T) {
	c := newTestClassifier()

	// Mixed affinity vocabulary with no dominant vector should land in
	// weighted fusion with normalized weights.
	cls := c.Classify(types.Query{Text: "describe the details of a happy and sad moment similar to that"})
	require.Equal(t, types.StrategyWeighted, cls.Strategy.Kind)
	sum := 0.0
	for _, w := range cls.Strategy.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 0.001)
}

func TestClassifierIsDeterministic(t *testing.T) {
	c := newTestClassifier()
	q := types.Query{Text: "What foods do I like and how do I feel about them?"}

	first := c.Classify(q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(q))
	}
}
