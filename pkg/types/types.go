// Package types defines the core data structures for the whisper-router
// retrieval subsystem. These types represent queries, classifications,
// memory records, and user facts shared across the classifier, fusion,
// knowledge-graph, and routing layers.
package types

// Entity type constants for the knowledge graph. The fact extractor is free
// to introduce new types; these cover the common conversational domains.
const (
	EntityTypeFood     = "food"
	EntityTypeHobby    = "hobby"
	EntityTypePerson   = "person"
	EntityTypePlace    = "place"
	EntityTypeMedia    = "media"
	EntityTypeAnimal   = "animal"
	EntityTypeActivity = "activity"
	EntityTypeTopic    = "topic"
)

// Relationship type constants for user→entity facts.
const (
	RelLikes      = "likes"
	RelLoves      = "loves"
	RelFavorite   = "favorite"
	RelEnjoys     = "enjoys"
	RelDislikes   = "dislikes"
	RelHates      = "hates"
	RelAvoids     = "avoids"
	RelFears      = "fears"
	RelOwns       = "owns"
	RelWantsToTry = "wants_to_try"
	RelKnows      = "knows"
	RelVisited    = "visited"
)

// RelSimilarTo is the advisory entity↔entity edge type produced by
// relationship discovery. It is never user-authored and is safe to
// delete and regenerate.
const RelSimilarTo = "similar_to"

// ValidEntityTypes lists the entity types recognized by default.
var ValidEntityTypes = []string{
	EntityTypeFood,
	EntityTypeHobby,
	EntityTypePerson,
	EntityTypePlace,
	EntityTypeMedia,
	EntityTypeAnimal,
	EntityTypeActivity,
	EntityTypeTopic,
}

// ValidRelationshipTypes lists the user-fact relationship types recognized
// by default.
var ValidRelationshipTypes = []string{
	RelLikes,
	RelLoves,
	RelFavorite,
	RelEnjoys,
	RelDislikes,
	RelHates,
	RelAvoids,
	RelFears,
	RelOwns,
	RelWantsToTry,
	RelKnows,
	RelVisited,
}

// IsValidEntityType checks if the given entity type is recognized.
func IsValidEntityType(entityType string) bool {
	for _, validType := range ValidEntityTypes {
		if validType == entityType {
			return true
		}
	}
	return false
}

// IsValidRelationshipType checks if the given relationship type is recognized.
func IsValidRelationshipType(relType string) bool {
	for _, validType := range ValidRelationshipTypes {
		if validType == relType {
			return true
		}
	}
	return false
}
