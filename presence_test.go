package loqui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresenceTrackerUnknownPeerIsOffline(t *testing.T) {
	tracker := NewPresenceTracker()
	assert.Equal(t, PresenceOffline, tracker.Status("stranger").Status)
	assert.False(t, tracker.Online("stranger"))
}

func TestPresenceTrackerTransitions(t *testing.T) {
	assert := assert.New(t)
	tracker := NewPresenceTracker()

	online := at(10)
	tracker.Apply(PresenceEvent{UserID: "bob", Status: PresenceOnline, At: online})
	assert.True(tracker.Online("bob"))
	assert.True(tracker.Status("bob").LastSeenAt.Equal(online))

	offline := at(20)
	tracker.Apply(PresenceEvent{UserID: "bob", Status: PresenceOffline, At: offline})
	assert.False(tracker.Online("bob"))
	// Last seen survives the disconnect.
	assert.True(tracker.Status("bob").LastSeenAt.Equal(offline))
}

func TestPresenceTrackerNormalizesUnknownStatus(t *testing.T) {
	tracker := NewPresenceTracker()
	tracker.Apply(PresenceEvent{UserID: "bob", Status: "away", At: at(1)})
	assert.Equal(t, PresenceOffline, tracker.Status("bob").Status)
}

func TestPresenceTrackerIgnoresEmptyUserID(t *testing.T) {
	tracker := NewPresenceTracker()
	tracker.Apply(PresenceEvent{Status: PresenceOnline, At: at(1)})
	assert.False(t, tracker.Online(""))
}

func TestPresenceTrackerStampsMissingTimestamp(t *testing.T) {
	tracker := NewPresenceTracker()
	before := time.Now().UTC()
	tracker.Apply(PresenceEvent{UserID: "bob", Status: PresenceOnline})

	st := tracker.Status("bob")
	assert.False(t, st.LastSeenAt.Before(before))
}
