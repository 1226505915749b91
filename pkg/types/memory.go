package types

import "time"

// EmbeddingDim is the dimensionality of every named vector. It is fixed by
// the external embedding model and frozen in the storage contract.
const EmbeddingDim = 384

// MemoryRecord is one stored conversation turn with its named embeddings.
// Records are written once by the external turn logger and are read-only
// from the router's perspective; only the enrichment worker mutates the
// Status tag afterwards.
type MemoryRecord struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// Content is the raw turn text.
	Content string `json:"content"`

	// Vectors maps named vector → 384-dim embedding. Keys are the
	// VectorContent/VectorEmotion/VectorSemantic constants.
	Vectors map[string][]float32 `json:"vectors,omitempty"`

	// EmotionLabel and EmotionIntensity are produced by the emotion
	// service at write time.
	EmotionLabel     string  `json:"emotion_label,omitempty"`
	EmotionIntensity float64 `json:"emotion_intensity,omitempty"`

	// Timestamp is the conversation-turn time (unix seconds in storage).
	Timestamp time.Time `json:"timestamp"`

	// SessionID groups records belonging to one conversation session.
	SessionID string `json:"session_id,omitempty"`

	// Status is the enrichment tag maintained by the external worker
	// ("pending", "processed"). The router never writes it.
	Status string `json:"status,omitempty"`
}

// RankedMemory is a memory record with its retrieval score attached.
type RankedMemory struct {
	Memory MemoryRecord `json:"memory"`

	// Score is the fused similarity score. For chronological retrieval
	// it is a rank-derived value; position carries the meaning there.
	Score float64 `json:"score"`

	// VectorScores breaks the fused score down per searched named vector.
	// Only populated for fusion strategies.
	VectorScores map[string]float64 `json:"vector_scores,omitempty"`
}
