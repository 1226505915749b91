package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

func TestDetectOldestDirection(t *testing.T) {
	d := NewTemporalDetector()

	queries := []string{
		"What was the first thing we talked about?",
		"What did I say earliest in our chat?",
		"When did we start discussing my job?",
		"What was our initial topic?",
	}
	for _, text := range queries {
		isTemporal, window := d.Detect(types.Query{Text: text})
		require.True(t, isTemporal, "query: %s", text)
		assert.Equal(t, types.DirectionOldest, window.Direction, "query: %s", text)
		assert.LessOrEqual(t, window.Limit, 5, "query: %s", text)
	}
}

func TestDetectNewestDirection(t *testing.T) {
	d := NewTemporalDetector()

	queries := []string{
		"What did we just now cover?",
		"What was the last thing I mentioned?",
		"What have we discussed recently?",
		"What is the most recent topic?",
	}
	for _, text := range queries {
		isTemporal, window := d.Detect(types.Query{Text: text})
		require.True(t, isTemporal, "query: %s", text)
		assert.Equal(t, types.DirectionNewest, window.Direction, "query: %s", text)
	}
}

func TestDetectFirstThingSessionScoped(t *testing.T) {
	d := NewTemporalDetector()

	isTemporal, window := d.Detect(types.Query{Text: "What was the first thing we talked about?"})
	require.True(t, isTemporal)
	assert.Equal(t, types.DirectionOldest, window.Direction)
	assert.Equal(t, types.ScopeSession, window.Scope)
	assert.LessOrEqual(t, window.Limit, 5)
}

func TestDetectAllTimeScope(t *testing.T) {
	d := NewTemporalDetector()

	isTemporal, window := d.Detect(types.Query{Text: "What is the first thing I ever told you?"})
	require.True(t, isTemporal)
	assert.Equal(t, types.DirectionOldest, window.Direction)
	assert.Equal(t, types.ScopeAllTime, window.Scope)
}

func TestDetectYesterday(t *testing.T) {
	d := NewTemporalDetector()
	at := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

	isTemporal, window := d.Detect(types.Query{
		Text:          "What did we talk about yesterday?",
		TurnTimestamp: at,
	})
	require.True(t, isTemporal)
	assert.Equal(t, types.DirectionNewest, window.Direction)
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), window.After)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), window.Before)
}

func TestDetectRelativeHoursAgo(t *testing.T) {
	d := NewTemporalDetector()
	at := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	isTemporal, window := d.Detect(types.Query{
		Text:          "What did I mention 2 hours ago?",
		TurnTimestamp: at,
	})
	require.True(t, isTemporal)
	assert.Equal(t, at.Add(-2*time.Hour), window.After)
	assert.Equal(t, at, window.Before)
}

func TestDetectRelativeArticle(t *testing.T) {
	d := NewTemporalDetector()
	at := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	isTemporal, window := d.Detect(types.Query{
		Text:          "What did I say an hour ago?",
		TurnTimestamp: at,
	})
	require.True(t, isTemporal)
	assert.Equal(t, at.Add(-time.Hour), window.After)
}

func TestDetectNonTemporal(t *testing.T) {
	d := NewTemporalDetector()

	queries := []string{
		"What foods do I like?",
		"How am I feeling about work?",
		"Tell me about my hobbies",
	}
	for _, text := range queries {
		isTemporal, _ := d.Detect(types.Query{Text: text})
		assert.False(t, isTemporal, "query: %s", text)
	}
}

func TestPhraseWholeWordMatch(t *testing.T) {
	d := NewTemporalDetector()

	// "blastoff" must not trigger the "last" phrase.
	isTemporal, _ := d.Detect(types.Query{Text: "Tell me about the blastoff"})
	assert.False(t, isTemporal)
}
