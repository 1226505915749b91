package types

import "time"

// Entity is a named thing the user has facts about (a food, a hobby, a
// person). The (Name, Type) pair is unique across the knowledge graph.
type Entity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Fact is a confidence-scored relationship between a user and an entity,
// e.g. "user likes pizza". The (UserID, EntityID, RelationshipType) triple
// is the primary key; repeated mentions raise MentionCount and keep the
// highest confidence observed.
type Fact struct {
	UserID           string `json:"user_id"`
	EntityID         string `json:"entity_id"`
	EntityName       string `json:"entity_name"`
	EntityType       string `json:"entity_type"`
	RelationshipType string `json:"relationship_type"`

	// Confidence is in [0,1]. Upserts keep max(old, new).
	Confidence float64 `json:"confidence"`

	// EmotionalContext is the emotion label active when the fact was
	// extracted, when known.
	EmotionalContext string `json:"emotional_context,omitempty"`

	LastMentioned time.Time `json:"last_mentioned"`
	MentionCount  int       `json:"mention_count"`

	// SupersededBy names the relationship type that won a contradiction
	// against this fact. Empty for live facts. Superseded facts are kept
	// for audit but excluded from retrieval by default.
	SupersededBy string `json:"superseded_by,omitempty"`
}

// Superseded reports whether this fact lost a contradiction resolution.
func (f Fact) Superseded() bool {
	return f.SupersededBy != ""
}
