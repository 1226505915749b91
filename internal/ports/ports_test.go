package ports

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

func TestStubEmbedderDeterministic(t *testing.T) {
	e := StubEmbedder{}

	a, err := e.Embed(context.Background(), "pizza and hiking")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "pizza and hiking")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStubEmbedderDimensionAndNorm(t *testing.T) {
	e := StubEmbedder{}

	vec, err := e.Embed(context.Background(), "some text")
	require.NoError(t, err)
	require.Len(t, vec, types.EmbeddingDim)

	norm := 0.0
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 0.001)
}

func TestStubEmbedderDifferentTexts(t *testing.T) {
	e := StubEmbedder{}

	a, _ := e.Embed(context.Background(), "pizza")
	b, _ := e.Embed(context.Background(), "kayaking")
	assert.NotEqual(t, a, b)
}

func TestStubEmotionClassifierLexicon(t *testing.T) {
	c := StubEmotionClassifier{}

	hint, err := c.ClassifyEmotion(context.Background(), "I am so happy today")
	require.NoError(t, err)
	assert.Equal(t, "joy", hint.Label)
	assert.Greater(t, hint.Confidence, 0.5)
}

func TestStubEmotionClassifierNeutralFallback(t *testing.T) {
	c := StubEmotionClassifier{}

	hint, err := c.ClassifyEmotion(context.Background(), "the meeting is at noon")
	require.NoError(t, err)
	assert.Equal(t, "neutral", hint.Label)
}

type countingEmbedder struct {
	calls int
	fail  bool
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("embedder offline")
	}
	return make([]float32, types.EmbeddingDim), nil
}

func TestCachingEmbedderMemoizes(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachingEmbedder(inner, 8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := cached.Embed(context.Background(), "same text")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.calls)

	_, err = cached.Embed(context.Background(), "other text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	cached, err := NewCachingEmbedder(inner, 8)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "text")
	require.Error(t, err)

	inner.fail = false
	_, err = cached.Embed(context.Background(), "text")
	assert.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
