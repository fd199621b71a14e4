package loqui

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
)

// MarkRead flags every message in msgs that is addressed to the current user
// and still unread, using one batched update. An empty matched set issues no
// round trip. Failures are logged and reported but have no user-visible
// effect; the next fetch re-derives the authoritative read state.
func (s *Synchronizer) MarkRead(ctx context.Context, msgs []Message) error {
	s.mu.Lock()
	currentUserID := s.currentUserID
	epoch := s.epoch
	s.mu.Unlock()
	if currentUserID == "" {
		return nil
	}

	var ids []string
	for _, m := range msgs {
		if m.ReceiverID == currentUserID && m.ReadAt == nil && !m.IsLocal() {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	readAt := time.Now().UTC()
	if err := s.remote.UpdateReadReceipts(ctx, ids, readAt); err != nil {
		log.Errorf("read receipts for %d messages failed: %v", len(ids), err)
		return errReceipt(err)
	}

	s.mu.Lock()
	if s.epoch == epoch {
		marked := make(map[string]bool, len(ids))
		for _, id := range ids {
			marked[id] = true
		}
		for i := range s.messages {
			if marked[s.messages[i].ID] && s.messages[i].ReadAt == nil {
				at := readAt
				s.messages[i].ReadAt = &at
			}
		}
		s.persistLocked()
	}
	s.mu.Unlock()
	s.notify()
	return nil
}
