// Package ports defines the boundaries to the external model services the
// router consumes but does not implement: embedding generation and emotion
// classification. Production deployments wire real clients; tests and dev
// mode use the deterministic stubs in stub.go.
package ports

import (
	"context"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// Embedder converts text into a 384-dimensional embedding. The same
// embedding is used to search every named vector space: the spaces differ
// in what was embedded at write time, not in the query-side encoding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmotionClassifier labels text with a primary emotion and a confidence.
// The router treats it as a black box.
type EmotionClassifier interface {
	ClassifyEmotion(ctx context.Context, text string) (types.EmotionHint, error)
}
