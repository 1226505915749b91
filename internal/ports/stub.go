package ports

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// StubEmbedder produces deterministic unit-length embeddings from token
// hashes. Texts sharing tokens get correlated vectors, which is enough
// signal for tests and local development without a model server.
type StubEmbedder struct{}

// Embed hashes each token into a handful of dimensions and normalizes the
// accumulated vector.
func (StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, types.EmbeddingDim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		seed := h.Sum64()
		for i := 0; i < 8; i++ {
			idx := int((seed >> (i * 8)) % types.EmbeddingDim)
			vec[idx] += 1.0
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1.0
		return vec, nil
	}
	scale := float32(1.0 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// StubEmotionClassifier labels text from a small lexicon. Unmatched text
// reports "neutral" with low confidence so callers fall back to keyword
// scoring.
type StubEmotionClassifier struct{}

var stubLexicon = map[string]string{
	"happy": "joy", "glad": "joy", "excited": "joy", "love": "joy",
	"sad": "sadness", "miss": "sadness", "lonely": "sadness",
	"angry": "anger", "furious": "anger", "annoyed": "anger",
	"scared": "fear", "afraid": "fear", "worried": "fear", "anxious": "fear",
}

// ClassifyEmotion returns the first lexicon label found in the text.
func (StubEmotionClassifier) ClassifyEmotion(_ context.Context, text string) (types.EmotionHint, error) {
	for _, token := range strings.Fields(strings.ToLower(text)) {
		if label, ok := stubLexicon[strings.Trim(token, ".,!?")]; ok {
			return types.EmotionHint{Label: label, Confidence: 0.85}, nil
		}
	}
	return types.EmotionHint{Label: "neutral", Confidence: 0.3}, nil
}
