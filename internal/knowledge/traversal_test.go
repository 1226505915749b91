package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// graphNeighbors builds a NeighborFunc over a static undirected adjacency
// map of entity IDs.
func graphNeighbors(adj map[string][]string) NeighborFunc {
	return func(_ context.Context, entityIDs []string) (map[string][]types.Entity, error) {
		out := make(map[string][]types.Entity)
		for _, id := range entityIDs {
			for _, n := range adj[id] {
				out[id] = append(out[id], types.Entity{ID: n, Name: n})
			}
		}
		return out, nil
	}
}

func TestTraverseSimilarScoresByHops(t *testing.T) {
	// pizza - pasta - risotto, pizza - calzone
	adj := map[string][]string{
		"pizza":   {"pasta", "calzone"},
		"pasta":   {"pizza", "risotto"},
		"risotto": {"pasta"},
		"calzone": {"pizza"},
	}

	got, err := TraverseSimilar(context.Background(), types.Entity{ID: "pizza"}, 3, graphNeighbors(adj))
	require.NoError(t, err)
	require.Len(t, got, 3)

	byID := make(map[string]types.RelatedEntity)
	for _, r := range got {
		byID[r.Entity.ID] = r
	}
	assert.Equal(t, 1, byID["pasta"].Hops)
	assert.Equal(t, 1.0, byID["pasta"].Score)
	assert.Equal(t, 1, byID["calzone"].Hops)
	assert.Equal(t, 2, byID["risotto"].Hops)
	assert.Equal(t, 0.5, byID["risotto"].Score)

	// One-hop entities sort before two-hop ones.
	assert.Equal(t, 2, got[2].Hops)
}

func TestTraverseSimilarRespectsMaxHops(t *testing.T) {
	adj := map[string][]string{
		"a": {"b"},
		"b": {"a", "c"},
		"c": {"b", "d"},
		"d": {"c"},
	}

	got, err := TraverseSimilar(context.Background(), types.Entity{ID: "a"}, 2, graphNeighbors(adj))
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.NotEqual(t, "d", r.Entity.ID)
	}
}

func TestTraverseSimilarCycleSafe(t *testing.T) {
	adj := map[string][]string{
		"a": {"b", "c"},
		"b": {"a", "c"},
		"c": {"a", "b"},
	}

	got, err := TraverseSimilar(context.Background(), types.Entity{ID: "a"}, 3, graphNeighbors(adj))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTraverseSimilarCapsDepth(t *testing.T) {
	// A 5-node chain: the hop cap must stop traversal at 3 even when the
	// caller asks for more.
	adj := map[string][]string{
		"a": {"b"}, "b": {"a", "c"}, "c": {"b", "d"}, "d": {"c", "e"}, "e": {"d"},
	}

	got, err := TraverseSimilar(context.Background(), types.Entity{ID: "a"}, 10, graphNeighbors(adj))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestTraverseSimilarNeighborError(t *testing.T) {
	boom := func(_ context.Context, _ []string) (map[string][]types.Entity, error) {
		return nil, errors.New("backend down")
	}

	_, err := TraverseSimilar(context.Background(), types.Entity{ID: "a"}, 2, boom)
	assert.Error(t, err)
}

func TestTraverseSimilarIsolatedSeed(t *testing.T) {
	got, err := TraverseSimilar(context.Background(), types.Entity{ID: "lonely"}, 3, graphNeighbors(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}
