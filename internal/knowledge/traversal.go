package knowledge

import (
	"context"
	"sort"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// MaxTraversalHops caps graph traversal depth. similar_to chains longer
// than this carry no useful signal and unbounded traversal has no
// predictable latency.
const MaxTraversalHops = 3

// NeighborFunc fetches the similar_to adjacency for one BFS level: given a
// frontier of entity IDs it returns the neighboring entities per frontier
// ID. Backends implement it with a single IN-clause query per level.
type NeighborFunc func(ctx context.Context, entityIDs []string) (map[string][]types.Entity, error)

// TraverseSimilar performs a bounded breadth-first traversal from the seed
// entity, following similar_to edges up to maxHops levels. Entities are
// scored 1/hops and deduplicated by ID; a visited set makes the walk
// cycle-safe regardless of graph density. The traversal runs in
// application code with one adjacency query per level — never as a
// recursive query against the relational store.
func TraverseSimilar(ctx context.Context, seed types.Entity, maxHops int, neighbors NeighborFunc) ([]types.RelatedEntity, error) {
	if maxHops < 1 {
		maxHops = 1
	}
	if maxHops > MaxTraversalHops {
		maxHops = MaxTraversalHops
	}

	visited := map[string]bool{seed.ID: true}
	frontier := []string{seed.ID}
	var results []types.RelatedEntity

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		adjacency, err := neighbors(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []string
		for _, frontierID := range frontier {
			for _, entity := range adjacency[frontierID] {
				if visited[entity.ID] {
					continue
				}
				visited[entity.ID] = true
				results = append(results, types.RelatedEntity{
					Entity: entity,
					Hops:   hop,
					Score:  1.0 / float64(hop),
				})
				next = append(next, entity.ID)
			}
		}
		frontier = next
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.Name < results[j].Entity.Name
	})
	return results, nil
}
