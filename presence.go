package loqui

import (
	"sync"
	"time"
)

// PresenceStatus is a peer's availability.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceEvent is a realtime presence change notification.
type PresenceEvent struct {
	UserID string         `json:"user_id"`
	Status PresenceStatus `json:"status"`
	At     time.Time      `json:"at"`
}

// PresenceState is the tracked state for one peer.
type PresenceState struct {
	Status     PresenceStatus
	LastSeenAt time.Time
}

// PresenceTracker keeps per-peer online/offline state, fed by presence
// events from a Subscription. It is independent of the message list: peers
// with no recorded event report offline.
type PresenceTracker struct {
	mu    sync.RWMutex
	peers map[string]PresenceState
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{peers: make(map[string]PresenceState)}
}

// Apply records a presence transition. Going offline stamps LastSeenAt from
// the event so "last seen" survives the disconnect.
func (t *PresenceTracker) Apply(ev PresenceEvent) {
	if ev.UserID == "" {
		return
	}
	status := ev.Status
	if status != PresenceOnline {
		status = PresenceOffline
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	t.mu.Lock()
	t.peers[ev.UserID] = PresenceState{Status: status, LastSeenAt: at}
	t.mu.Unlock()
}

// Status returns the tracked state for userID; unknown peers are offline.
func (t *PresenceTracker) Status(userID string) PresenceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if st, ok := t.peers[userID]; ok {
		return st
	}
	return PresenceState{Status: PresenceOffline}
}

// Online reports whether userID is currently online.
func (t *PresenceTracker) Online(userID string) bool {
	return t.Status(userID).Status == PresenceOnline
}
