package types

import "time"

// TemporalDirection is the chronological ordering a temporal query wants.
type TemporalDirection string

const (
	// DirectionOldest orders ascending by timestamp ("first", "earliest").
	DirectionOldest TemporalDirection = "oldest"

	// DirectionNewest orders descending by timestamp ("last", "recent").
	DirectionNewest TemporalDirection = "newest"
)

// TemporalScope bounds which memories a temporal query considers.
type TemporalScope string

const (
	// ScopeSession restricts recall to the current conversation session.
	ScopeSession TemporalScope = "session"

	// ScopeAllTime considers the user's full history.
	ScopeAllTime TemporalScope = "all_time"
)

// TemporalWindow describes a chronological retrieval request.
type TemporalWindow struct {
	Direction TemporalDirection `json:"direction"`
	Scope     TemporalScope     `json:"scope"`

	// Limit caps the result count. Oldest-direction queries keep this
	// small (3–5): the first things discussed are a handful of turns,
	// not a page of them.
	Limit int `json:"limit"`

	// After and Before bound the window when the query carried an explicit
	// relative marker ("yesterday", "3 hours ago"). Zero values mean the
	// bound is unconstrained.
	After  time.Time `json:"after,omitempty"`
	Before time.Time `json:"before,omitempty"`
}

// Bounded reports whether the window carries an explicit time range.
func (w TemporalWindow) Bounded() bool {
	return !w.After.IsZero() || !w.Before.IsZero()
}
