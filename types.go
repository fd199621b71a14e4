package loqui

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageStatus tracks the delivery state of a locally originated message.
// Messages obtained from the server or cache carry no status (implicitly sent).
type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

// localIDPrefix tags placeholder ids so they are distinguishable from
// server-assigned ids until the insert is confirmed.
const localIDPrefix = "local-"

// Message is one unit of communication between two participants.
// The conversation is identified by the unordered (SenderID, ReceiverID) pair.
type Message struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	SenderID   string        `json:"sender_id"`
	ReceiverID string        `json:"receiver_id"`
	CreatedAt  time.Time     `json:"created_at"`
	ReadAt     *time.Time    `json:"read_at,omitempty"`
	Status     MessageStatus `json:"status,omitempty"`
}

// IsLocal reports whether the message carries a locally generated placeholder id.
func (m Message) IsLocal() bool {
	return strings.HasPrefix(m.ID, localIDPrefix)
}

// NewMessage is the payload for an insert request.
type NewMessage struct {
	Content    string `json:"content"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

// Session identifies the authenticated user. The token itself is opaque to
// this SDK; the backend owns the auth protocol.
type Session struct {
	UserID string `json:"user_id"`
}

// Contact is a peer the current user can converse with.
type Contact struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Status      string     `json:"status,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
}

// APIError is an error reported by the backend.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// apiResult is the generic response envelope of the backend.
type apiResult struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// decode unmarshals the Data field into the provided type.
func (r *apiResult) decode(v interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
