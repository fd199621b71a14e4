package loqui

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

// Remote is the backend surface the synchronizer depends on. *Client
// implements it; tests substitute fakes.
type Remote interface {
	FetchMessages(ctx context.Context, userA, userB string) ([]Message, error)
	InsertMessage(ctx context.Context, msg NewMessage) (*Message, error)
	UpdateReadReceipts(ctx context.Context, ids []string, readAt time.Time) error
	GetCurrentSession(ctx context.Context) (*Session, error)
}

// EventStream is a conversation-scoped realtime feed with an explicit
// lifecycle. *Subscription implements it.
type EventStream interface {
	OnInsert(func(Message))
	Start(ctx context.Context) error
	Stop() error
}

// StreamOpener creates an EventStream for the conversation with peerID.
// Client.OpenStream satisfies it; a nil opener disables realtime updates.
type StreamOpener func(peerID string) EventStream

// Synchronizer owns the live message list for one conversation at a time. It
// merges the cache, the authoritative fetch, realtime inserts, and optimistic
// placeholders into a single list that is always unique by id and sorted
// ascending by creation time.
//
// All list mutations run as atomic read-modify-write steps under one mutex;
// callbacks from a previous activation are discarded by an epoch check, so
// switching conversations can never leak a stale event into the new list.
type Synchronizer struct {
	remote Remote
	cache  *ConversationCache
	open   StreamOpener

	mu             sync.Mutex
	conversationID string
	currentUserID  string
	epoch          int
	messages       []Message
	loading        bool
	syncing        bool
	sending        bool
	stream         EventStream

	onUpdate func([]Message)
}

// NewSynchronizer creates a synchronizer over the given collaborators.
func NewSynchronizer(remote Remote, cache *ConversationCache, open StreamOpener) *Synchronizer {
	return &Synchronizer{
		remote: remote,
		cache:  cache,
		open:   open,
	}
}

// OnUpdate registers the callback invoked with a fresh snapshot after every
// visible change to the list. Register before Activate.
func (s *Synchronizer) OnUpdate(h func([]Message)) {
	s.mu.Lock()
	s.onUpdate = h
	s.mu.Unlock()
}

// Messages returns a sorted snapshot of the current list.
func (s *Synchronizer) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Loading reports whether the initial load (no cache, fetch outstanding) is
// still in progress.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Syncing reports whether a background refresh is outstanding.
func (s *Synchronizer) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Activate binds the synchronizer to a conversation: it publishes the cached
// list immediately, reconciles against a fresh fetch, marks received unread
// messages as read, and opens the realtime subscription. A previous
// activation is torn down first.
//
// A fetch failure leaves the cached list intact; it never clears the list.
func (s *Synchronizer) Activate(ctx context.Context, conversationID, currentUserID string) error {
	if conversationID == "" || currentUserID == "" {
		log.Errorf("activate: invalid conversation (peer=%q user=%q)", conversationID, currentUserID)
		return errInvalidConversation("conversation and user ids are required")
	}

	s.mu.Lock()
	s.teardownLocked()
	s.epoch++
	epoch := s.epoch
	s.conversationID = conversationID
	s.currentUserID = currentUserID

	cached := s.cache.Load(conversationID)
	s.messages = cached
	sortMessages(s.messages)
	s.loading = len(cached) == 0
	s.syncing = true
	s.mu.Unlock()
	s.notify()

	fetched, err := s.remote.FetchMessages(ctx, currentUserID, conversationID)
	if err != nil {
		log.Errorf("fetch for %s failed, keeping cached list: %v", conversationID, err)
		s.mu.Lock()
		if s.epoch == epoch {
			s.loading = false
			s.syncing = false
		}
		s.mu.Unlock()
		s.notify()
	} else {
		s.mu.Lock()
		if s.epoch == epoch {
			s.mergeLocked(fetched, true)
			s.loading = false
			s.syncing = false
			s.persistLocked()
		}
		s.mu.Unlock()
		s.notify()

		if err := s.MarkRead(ctx, fetched); err != nil {
			log.Errorf("marking fetched messages read: %v", err)
		}
	}

	if s.open != nil {
		stream := s.open(conversationID)
		stream.OnInsert(func(m Message) {
			s.onRemoteEvent(epoch, m)
		})
		if err := stream.Start(ctx); err != nil {
			log.Errorf("subscription for %s failed to start: %v", conversationID, err)
			return nil
		}

		s.mu.Lock()
		if s.epoch == epoch {
			s.stream = stream
		} else {
			// Re-activated while we were connecting.
			s.mu.Unlock()
			stream.Stop()
			return nil
		}
		s.mu.Unlock()
	}

	return nil
}

// Deactivate tears down the subscription. No state is mutated afterwards;
// late callbacks from the closed stream are discarded by the epoch guard.
func (s *Synchronizer) Deactivate() {
	s.mu.Lock()
	s.teardownLocked()
	s.epoch++
	s.conversationID = ""
	s.currentUserID = ""
	s.mu.Unlock()
}

// onRemoteEvent merges a realtime insert into the live list. Events from a
// stale activation or another conversation are dropped.
func (s *Synchronizer) onRemoteEvent(epoch int, msg Message) {
	s.mu.Lock()
	if s.epoch != epoch || !s.belongsLocked(msg) {
		s.mu.Unlock()
		return
	}

	s.mergeLocked([]Message{msg}, false)
	s.persistLocked()
	currentUser := s.currentUserID
	s.mu.Unlock()
	s.notify()

	if msg.ReceiverID == currentUser && msg.ReadAt == nil {
		if err := s.MarkRead(context.Background(), []Message{msg}); err != nil {
			log.Errorf("marking realtime message read: %v", err)
		}
	}
}

// belongsLocked reports whether msg is part of the active conversation.
func (s *Synchronizer) belongsLocked(msg Message) bool {
	a, b := s.currentUserID, s.conversationID
	return (msg.SenderID == a && msg.ReceiverID == b) ||
		(msg.SenderID == b && msg.ReceiverID == a)
}

// mergeLocked folds batch into the list by id. Authoritative batches (server
// fetches) overwrite existing entries with the same id; non-authoritative
// ones (realtime, cache) are idempotent no-ops on conflict. Placeholders are
// never removed by a merge.
func (s *Synchronizer) mergeLocked(batch []Message, authoritative bool) {
	index := make(map[string]int, len(s.messages))
	for i, m := range s.messages {
		index[m.ID] = i
	}

	for _, m := range batch {
		if i, ok := index[m.ID]; ok {
			if authoritative {
				s.messages[i] = m
			}
			continue
		}
		index[m.ID] = len(s.messages)
		s.messages = append(s.messages, m)
	}

	sortMessages(s.messages)
}

// replaceLocked swaps the placeholder identified by localID for the
// authoritative server record.
func (s *Synchronizer) replaceLocked(localID string, confirmed Message) {
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ID != localID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	s.mergeLocked([]Message{confirmed}, true)
}

// setStatusLocked updates the status of the message with the given id.
func (s *Synchronizer) setStatusLocked(id string, status MessageStatus) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Status = status
			return
		}
	}
}

func (s *Synchronizer) persistLocked() {
	if s.conversationID == "" {
		return
	}
	if err := s.cache.Save(s.conversationID, s.messages); err != nil {
		log.Errorf("persisting conversation %s: %v", s.conversationID, err)
	}
}

func (s *Synchronizer) snapshotLocked() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Synchronizer) teardownLocked() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	h := s.onUpdate
	var snap []Message
	if h != nil {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()
	if h != nil {
		h(snap)
	}
}

// sortMessages orders by CreatedAt ascending; equal timestamps keep their
// relative insertion order.
func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
