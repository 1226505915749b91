// Package fusion executes vector similarity searches according to a chosen
// strategy and merges per-vector result lists into one ranked list.
package fusion

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/ports"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// overfetchFactor is how many extra candidates each per-vector search
// returns during fusion. Records often appear in more than one list, so
// fetching exactly limit per vector would under-fill the merged result.
const overfetchFactor = 2

// Engine runs named-vector searches and fuses the results.
type Engine struct {
	store    memory.VectorSearcher
	embedder ports.Embedder
	breaker  *Breaker
	logger   *log.Logger
}

// NewEngine creates a fusion engine over the given store and embedder.
func NewEngine(store memory.VectorSearcher, embedder ports.Embedder) *Engine {
	return &Engine{
		store:    store,
		embedder: embedder,
		breaker:  NewBreaker(),
		logger:   log.WithPrefix("fusion"),
	}
}

// Search embeds the query once and executes the strategy against the
// memory store.
//
// Single-vector strategies return the top-limit hits for that vector.
// Fusion strategies search each weighted vector independently (limit×2
// each), merge by final_score = Σ(weight×cosine) for records appearing in
// multiple lists, re-sort descending, and truncate to limit. Ties break
// toward the more recent record.
//
// A failed vector never hard-fails the query on its own: when a
// single-vector strategy's primary vector fails, or every per-vector search
// of a fusion strategy fails, Search degrades once to a plain content-only
// search before reporting an error; partial per-vector failures degrade to
// the surviving lists with a warning.
func (e *Engine) Search(ctx context.Context, q types.Query, strategy types.VectorStrategy, limit int) ([]types.RankedMemory, error) {
	if limit < 1 {
		limit = 10
	}

	queryVec, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("fusion: embed query: %w", err)
	}

	if !strategy.IsFusion() {
		primary := strategy.PrimaryVector()
		hits, err := e.searchOne(ctx, q.UserID, primary, queryVec, limit)
		if err != nil && primary != types.VectorContent {
			e.logger.Warn("primary vector search failed, degrading to content-only",
				"user", q.UserID, "vector", primary, "err", err)
			hits, err = e.searchOne(ctx, q.UserID, types.VectorContent, queryVec, limit)
		}
		if err != nil {
			return nil, err
		}
		return singleVectorRanking(hits, limit), nil
	}

	perVector, failed := e.searchWeighted(ctx, q.UserID, strategy.Weights, queryVec, limit*overfetchFactor)
	if len(perVector) == 0 {
		e.logger.Warn("all fusion searches failed, degrading to content-only",
			"user", q.UserID, "failed_vectors", failed)
		hits, err := e.searchOne(ctx, q.UserID, types.VectorContent, queryVec, limit)
		if err != nil {
			return nil, fmt.Errorf("fusion: degraded content-only search: %w", err)
		}
		return singleVectorRanking(hits, limit), nil
	}
	if len(failed) > 0 {
		e.logger.Warn("partial fusion results", "user", q.UserID, "failed_vectors", failed)
	}

	return mergeWeighted(perVector, strategy.Weights, limit), nil
}

// searchOne runs one named-vector search through the circuit breaker.
func (e *Engine) searchOne(ctx context.Context, userID, vectorName string, queryVec []float32, limit int) ([]memory.VectorHit, error) {
	result, err := e.breaker.Execute(ctx, func() (interface{}, error) {
		return e.store.SearchVector(ctx, userID, vectorName, queryVec, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("fusion: search %s vector: %w", vectorName, err)
	}
	hits, _ := result.([]memory.VectorHit)
	return hits, nil
}

// searchWeighted fans out one search per weighted vector and collects the
// per-vector hit lists. Failed vectors are returned by name rather than
// failing the whole search.
func (e *Engine) searchWeighted(ctx context.Context, userID string, weights map[string]float64, queryVec []float32, perVectorLimit int) (map[string][]memory.VectorHit, []string) {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		perVector = make(map[string][]memory.VectorHit, len(weights))
		failed    []string
	)

	for vectorName, weight := range weights {
		if weight <= 0 {
			continue
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			hits, err := e.searchOne(ctx, userID, name, queryVec, perVectorLimit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, name)
				return
			}
			perVector[name] = hits
		}(vectorName)
	}
	wg.Wait()

	sort.Strings(failed)
	return perVector, failed
}

// mergeWeighted fuses per-vector hit lists into one ranked list. A record
// appearing in several lists accumulates weight×score from each; a record
// in only one list carries just that term, which is what keeps broadly
// relevant records above narrowly relevant ones.
func mergeWeighted(perVector map[string][]memory.VectorHit, weights map[string]float64, limit int) []types.RankedMemory {
	type fused struct {
		record       types.MemoryRecord
		score        float64
		vectorScores map[string]float64
	}
	merged := make(map[string]*fused)

	for vectorName, hits := range perVector {
		weight := weights[vectorName]
		for _, hit := range hits {
			entry, ok := merged[hit.Record.ID]
			if !ok {
				entry = &fused{
					record:       hit.Record,
					vectorScores: make(map[string]float64, len(perVector)),
				}
				merged[hit.Record.ID] = entry
			}
			entry.score += weight * hit.Score
			entry.vectorScores[vectorName] = hit.Score
		}
	}

	results := make([]types.RankedMemory, 0, len(merged))
	for _, entry := range merged {
		results = append(results, types.RankedMemory{
			Memory:       entry.record,
			Score:        entry.score,
			VectorScores: entry.vectorScores,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.Timestamp.After(results[j].Memory.Timestamp)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// singleVectorRanking converts raw hits to ranked memories, preserving the
// store's score ordering.
func singleVectorRanking(hits []memory.VectorHit, limit int) []types.RankedMemory {
	if len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]types.RankedMemory, 0, len(hits))
	for _, hit := range hits {
		results = append(results, types.RankedMemory{Memory: hit.Record, Score: hit.Score})
	}
	return results
}
