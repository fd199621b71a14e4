package loqui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// Send submits content to the active conversation with immediate optimistic
// feedback: a pending placeholder appears in the list before the insert
// completes, then is replaced by the server record on success or marked
// errored on failure. On failure the returned *AppError carries the composed
// text so the caller can restore the input field.
//
// Sends from one synchronizer are serialized; a second Send while one is in
// flight is rejected rather than double-fired.
func (s *Synchronizer) Send(ctx context.Context, content string) (*Message, error) {
	text := strings.TrimSpace(content)

	s.mu.Lock()
	conversationID := s.conversationID
	currentUserID := s.currentUserID
	epoch := s.epoch
	if conversationID == "" || currentUserID == "" {
		s.mu.Unlock()
		log.Errorf("send: no active conversation")
		return nil, errInvalidConversation("no active conversation")
	}
	if text == "" {
		s.mu.Unlock()
		return nil, errSend(content, "content is empty", nil)
	}
	if s.sending {
		s.mu.Unlock()
		return nil, errSendInFlight()
	}
	s.sending = true

	placeholder := Message{
		ID:         localIDPrefix + uuid.NewString(),
		Content:    text,
		SenderID:   currentUserID,
		ReceiverID: conversationID,
		CreatedAt:  time.Now().UTC(),
		Status:     StatusPending,
	}
	s.mergeLocked([]Message{placeholder}, false)
	// Persist the pending state so a process kill mid-send keeps the visible
	// attempt; it will surface as unresolved on restart.
	s.persistLocked()
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	confirmed, err := s.performSend(ctx, currentUserID, conversationID, text)
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.setStatusLocked(placeholder.ID, StatusError)
			s.persistLocked()
		}
		s.mu.Unlock()
		s.notify()
		log.Errorf("send to %s failed: %v", conversationID, err)
		return nil, errSend(content, "sending message", err)
	}

	confirmed.Status = StatusSent
	s.mu.Lock()
	if s.epoch == epoch {
		s.replaceLocked(placeholder.ID, *confirmed)
		s.persistLocked()
	}
	s.mu.Unlock()
	s.notify()
	return confirmed, nil
}

// performSend validates the sender identity against the live session, then
// issues the insert. Identity recovery is whatever the client performs
// internally; there is no retry here beyond that single pass.
func (s *Synchronizer) performSend(ctx context.Context, senderID, receiverID, text string) (*Message, error) {
	session, err := s.remote.GetCurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	if session.UserID != senderID {
		return nil, fmt.Errorf("authenticated user %s does not match sender %s", session.UserID, senderID)
	}

	return s.remote.InsertMessage(ctx, NewMessage{
		Content:    text,
		SenderID:   senderID,
		ReceiverID: receiverID,
	})
}

// Retry re-sends a failed placeholder as a brand-new send. The errored entry
// is discarded; the content goes through the full Send path again.
func (s *Synchronizer) Retry(ctx context.Context, localID string) (*Message, error) {
	s.mu.Lock()
	var content string
	found := false
	for _, m := range s.messages {
		if m.ID == localID && m.Status == StatusError {
			content = m.Content
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return nil, errSend("", "no failed message with id "+localID, nil)
	}

	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ID != localID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	s.persistLocked()
	s.mu.Unlock()
	s.notify()

	return s.Send(ctx, content)
}
