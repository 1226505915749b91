package types

import "time"

// EmotionHint carries a pre-computed emotion classification for a query,
// produced by the external emotion service. When Confidence is above the
// classifier's override threshold the hint is treated as authoritative and
// replaces keyword-based emotion scoring.
type EmotionHint struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Query is a single retrieval request against a user's memory.
type Query struct {
	// Text is the raw natural-language query.
	Text string `json:"text"`

	// UserID scopes retrieval to one user's memories and facts.
	UserID string `json:"user_id"`

	// SessionID identifies the current conversation session. Session-scoped
	// temporal queries ("what was the first thing we talked about") are
	// restricted to it; empty means no session restriction is possible.
	SessionID string `json:"session_id,omitempty"`

	// Emotion is an optional pre-computed emotion hint. Nil when the
	// emotion service was not consulted for this turn.
	Emotion *EmotionHint `json:"emotion,omitempty"`

	// TurnTimestamp is the conversation-turn time, used to anchor
	// relative temporal markers ("yesterday", "two hours ago").
	// Zero value means "now".
	TurnTimestamp time.Time `json:"turn_timestamp,omitempty"`
}

// At returns the effective reference time for the query.
func (q Query) At() time.Time {
	if q.TurnTimestamp.IsZero() {
		return time.Now()
	}
	return q.TurnTimestamp
}
