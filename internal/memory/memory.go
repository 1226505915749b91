// Package memory provides the storage interfaces for conversation memory
// records and their named embeddings.
//
// The layer is split into small, focused interfaces that backends implement
// independently: similarity search over one named vector, chronological
// listing for temporal queries, and the write path used by the external
// turn logger. Two backends exist: postgres (pgvector, production) and
// sqlite (in-process cosine scan, single-node deployments and tests).
package memory

import (
	"context"
	"errors"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("memory record not found")

	// ErrBackendUnavailable indicates the backing store cannot be reached.
	// Callers degrade to partial results rather than failing the query.
	ErrBackendUnavailable = errors.New("memory backend unavailable")

	// ErrUnknownVector indicates a search named a vector the store does
	// not carry.
	ErrUnknownVector = errors.New("unknown named vector")

	// ErrInvalidInput indicates invalid parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// VectorHit is one similarity-search result before fusion.
type VectorHit struct {
	Record types.MemoryRecord

	// Score is the cosine similarity against the searched named vector,
	// in [-1, 1] (in practice [0, 1] for normalized text embeddings).
	Score float64
}

// VectorSearcher performs similarity search against one named vector.
type VectorSearcher interface {
	// SearchVector returns the top-limit records for the user by cosine
	// similarity of the query embedding against the named vector.
	// An empty result is not an error.
	SearchVector(ctx context.Context, userID, vectorName string, query []float32, limit int) ([]VectorHit, error)
}

// ChronoLister retrieves records in chronological order for temporal queries.
type ChronoLister interface {
	// ListChronological returns records ordered by the window's direction:
	// ascending timestamps for DirectionOldest, descending for
	// DirectionNewest. Session scope restricts to sessionID when non-empty;
	// bounded windows filter by [After, Before).
	ListChronological(ctx context.Context, userID, sessionID string, window types.TemporalWindow) ([]types.MemoryRecord, error)
}

// Writer is the ingest path used by the external turn logger. The router
// itself never writes records; the interface exists so both backends share
// one contract and tests can seed fixtures.
type Writer interface {
	// StoreRecord inserts a record with all named vectors. Records are
	// immutable once written.
	StoreRecord(ctx context.Context, record *types.MemoryRecord) error
}

// Store is the full memory backend contract.
type Store interface {
	VectorSearcher
	ChronoLister
	Writer

	// Close releases any resources held by the store.
	Close() error
}

// ValidVector reports whether name is one of the named vectors every
// record carries.
func ValidVector(name string) bool {
	for _, v := range types.NamedVectors {
		if v == name {
			return true
		}
	}
	return false
}
