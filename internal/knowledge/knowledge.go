// Package knowledge provides the user fact graph: entities, user→entity
// relationships with confidence scores, and discovered entity↔entity
// similarity edges.
//
// The package holds the backend-independent pieces — the store contract,
// the opposing-relationship table, trigram similarity, and the bounded
// graph traversal — while internal/knowledge/postgres and
// internal/knowledge/sqlite implement persistence.
package knowledge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

var (
	// ErrNotFound indicates the requested entity or fact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates invalid parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackendUnavailable indicates the relational store cannot be
	// reached. Callers degrade to empty fact lists rather than failing
	// the whole query.
	ErrBackendUnavailable = errors.New("knowledge backend unavailable")
)

// DefaultMinConfidence is the confidence floor applied to fact reads when
// the caller does not specify one.
const DefaultMinConfidence = 0.5

// FactInput is one extracted fact arriving from the external fact extractor.
type FactInput struct {
	UserID           string
	EntityName       string
	EntityType       string
	RelationshipType string

	// Confidence is the extractor's confidence in [0,1].
	Confidence float64

	// EmotionalContext is the emotion label active during extraction.
	EmotionalContext string

	// MentionedAt is the conversation-turn time; zero means "now".
	MentionedAt time.Time
}

// Validate checks the required fields and ranges.
func (in FactInput) Validate() error {
	if in.UserID == "" || in.EntityName == "" || in.EntityType == "" || in.RelationshipType == "" {
		return errors.Join(ErrInvalidInput, errors.New("user_id, entity_name, entity_type, relationship_type are required"))
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return errors.Join(ErrInvalidInput, errors.New("confidence must be in [0,1]"))
	}
	return nil
}

// At returns the effective mention time.
func (in FactInput) At() time.Time {
	if in.MentionedAt.IsZero() {
		return time.Now()
	}
	return in.MentionedAt
}

// NormalizeEntityName canonicalizes an entity name for storage and lookup
// so "Pizza" and "pizza " land on the same entity row.
func NormalizeEntityName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FactFilter narrows GetUserFacts results.
type FactFilter struct {
	// EntityType restricts to one entity type ("food"). Empty means all.
	EntityType string

	// RelationshipTypes restricts to the given relationship types.
	// Empty means all.
	RelationshipTypes []string

	// MinConfidence is the confidence floor; zero means
	// DefaultMinConfidence.
	MinConfidence float64

	// Limit caps the result count; zero means 20.
	Limit int

	// IncludeSuperseded includes facts that lost a contradiction
	// resolution. Off by default: retrieval wants the live belief,
	// audits want history.
	IncludeSuperseded bool
}

// Normalize applies defaults.
func (f *FactFilter) Normalize() {
	if f.MinConfidence <= 0 {
		f.MinConfidence = DefaultMinConfidence
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

// Store is the knowledge graph contract.
type Store interface {
	// GetUserFacts returns the user's facts ordered by confidence
	// descending, then last_mentioned descending.
	GetUserFacts(ctx context.Context, userID string, filter FactFilter) ([]types.Fact, error)

	// StoreFact upserts the entity and the fact, resolving contradictions
	// against opposing relationship types and refreshing similar_to
	// discovery edges. The whole operation is one transaction: readers
	// never observe a half-resolved contradiction.
	StoreFact(ctx context.Context, input FactInput) error

	// GetRelatedEntities returns entities reachable from the named seed
	// entity via similar_to edges within maxHops, scored by 1/hops.
	GetRelatedEntities(ctx context.Context, entityName string, maxHops int) ([]types.RelatedEntity, error)

	// Close releases any resources held by the store.
	Close() error
}
