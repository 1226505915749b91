package ports

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingEmbedder memoizes embeddings by exact query text. The hot path is
// per-turn retrieval for the same conversation, where the classifier and
// the fusion engine would otherwise embed identical text repeatedly.
type CachingEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachingEmbedder wraps inner with an LRU cache of the given size.
func NewCachingEmbedder(inner Embedder, size int) (*CachingEmbedder, error) {
	if size < 1 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached embedding for text, computing and storing it on
// a miss. Cached slices are shared; callers must not mutate them.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}
