package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// axisVector returns a 384-dim unit vector along the given axis so cosine
// scores in tests are exact.
func axisVector(axis int) []float32 {
	v := make([]float32, types.EmbeddingDim)
	v[axis] = 1
	return v
}

func seedRecord(t *testing.T, store *Store, id, user, session string, ts time.Time, vectors map[string][]float32) {
	t.Helper()
	err := store.StoreRecord(context.Background(), &types.MemoryRecord{
		ID:        id,
		UserID:    user,
		Content:   "content-" + id,
		Vectors:   vectors,
		Timestamp: ts,
		SessionID: session,
	})
	require.NoError(t, err)
}

func TestSearchVectorRanksByCosine(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedRecord(t, store, "exact", "u1", "s1", now, map[string][]float32{
		types.VectorContent: axisVector(0),
	})
	seedRecord(t, store, "orthogonal", "u1", "s1", now, map[string][]float32{
		types.VectorContent: axisVector(1),
	})

	hits, err := store.SearchVector(context.Background(), "u1", types.VectorContent, axisVector(0), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "exact", hits[0].Record.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 0.001)
	assert.InDelta(t, 0.0, hits[1].Score, 0.001)
}

func TestSearchVectorUnknownVector(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SearchVector(context.Background(), "u1", "bogus", axisVector(0), 10)
	assert.ErrorIs(t, err, memory.ErrUnknownVector)
}

func TestSearchVectorDimensionCheck(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SearchVector(context.Background(), "u1", types.VectorContent, []float32{1, 2, 3}, 10)
	assert.ErrorIs(t, err, memory.ErrInvalidInput)
}

func TestSearchVectorScopedToUser(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedRecord(t, store, "mine", "u1", "s1", now, map[string][]float32{
		types.VectorContent: axisVector(0),
	})
	seedRecord(t, store, "theirs", "u2", "s1", now, map[string][]float32{
		types.VectorContent: axisVector(0),
	})

	hits, err := store.SearchVector(context.Background(), "u1", types.VectorContent, axisVector(0), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "mine", hits[0].Record.ID)
}

func TestListChronologicalOldest(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	for i, id := range []string{"first", "second", "third"} {
		seedRecord(t, store, id, "u1", "s1", base.Add(time.Duration(i)*time.Minute), nil)
	}

	records, err := store.ListChronological(context.Background(), "u1", "s1", types.TemporalWindow{
		Direction: types.DirectionOldest,
		Scope:     types.ScopeSession,
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].ID)
	assert.Equal(t, "second", records[1].ID)
}

func TestListChronologicalNewest(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	for i, id := range []string{"first", "second", "third"} {
		seedRecord(t, store, id, "u1", "s1", base.Add(time.Duration(i)*time.Minute), nil)
	}

	records, err := store.ListChronological(context.Background(), "u1", "s1", types.TemporalWindow{
		Direction: types.DirectionNewest,
		Scope:     types.ScopeAllTime,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "third", records[0].ID)
}

func TestListChronologicalSessionScope(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	seedRecord(t, store, "current", "u1", "s2", now, nil)
	seedRecord(t, store, "earlier-session", "u1", "s1", now.Add(-time.Minute), nil)

	records, err := store.ListChronological(context.Background(), "u1", "s2", types.TemporalWindow{
		Direction: types.DirectionOldest,
		Scope:     types.ScopeSession,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "current", records[0].ID)
}

func TestListChronologicalBoundedWindow(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	seedRecord(t, store, "old", "u1", "s1", now.Add(-3*time.Hour), nil)
	seedRecord(t, store, "inside", "u1", "s1", now.Add(-30*time.Minute), nil)
	seedRecord(t, store, "fresh", "u1", "s1", now, nil)

	records, err := store.ListChronological(context.Background(), "u1", "s1", types.TemporalWindow{
		Direction: types.DirectionNewest,
		Scope:     types.ScopeAllTime,
		Limit:     10,
		After:     now.Add(-time.Hour),
		Before:    now,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "inside", records[0].ID)
}

func TestStoreRecordRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now().Truncate(time.Second)

	err := store.StoreRecord(context.Background(), &types.MemoryRecord{
		ID:               "r1",
		UserID:           "u1",
		Content:          "we talked about pizza",
		Vectors:          map[string][]float32{types.VectorContent: axisVector(3)},
		EmotionLabel:     "joy",
		EmotionIntensity: 0.7,
		Timestamp:        ts,
		SessionID:        "s1",
	})
	require.NoError(t, err)

	hits, err := store.SearchVector(context.Background(), "u1", types.VectorContent, axisVector(3), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	rec := hits[0].Record
	assert.Equal(t, "we talked about pizza", rec.Content)
	assert.Equal(t, "joy", rec.EmotionLabel)
	assert.InDelta(t, 0.7, rec.EmotionIntensity, 0.001)
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, ts.UTC().Unix(), rec.Timestamp.Unix())
	assert.Equal(t, "pending", rec.Status)
}

func TestStoreRecordRequiresIDAndUser(t *testing.T) {
	store := newTestStore(t)

	err := store.StoreRecord(context.Background(), &types.MemoryRecord{UserID: "u1"})
	assert.ErrorIs(t, err, memory.ErrInvalidInput)
}

func TestEmbeddingSerializationRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 0, 3.75}
	out, err := deserializeEmbedding(serializeEmbedding(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
