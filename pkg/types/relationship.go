package types

import "time"

// EntityRelationship is a discovered entity↔entity edge, currently always
// of type similar_to. These edges are advisory: they are regenerated from
// name similarity and may be dropped without data loss.
type EntityRelationship struct {
	EntityAID string  `json:"entity_a_id"`
	EntityBID string  `json:"entity_b_id"`
	Type      string  `json:"type"`
	Weight    float64 `json:"weight"`

	CreatedAt time.Time `json:"created_at"`
}

// RelatedEntity is an entity reached by graph traversal from a seed entity,
// scored by proximity (1/hops).
type RelatedEntity struct {
	Entity Entity  `json:"entity"`
	Hops   int     `json:"hops"`
	Score  float64 `json:"score"`
}
