package loqui

import (
	"encoding/json"

	"github.com/labstack/gommon/log"
)

const cacheKeyPrefix = "messages:"

// ConversationCache persists one ordered message list per conversation,
// keyed by the peer's id. Entries are overwritten wholesale on each save;
// there is no eviction.
type ConversationCache struct {
	storage Storage
}

// NewConversationCache wraps a Storage backend.
func NewConversationCache(storage Storage) *ConversationCache {
	return &ConversationCache{storage: storage}
}

// Load returns the cached messages for a conversation. A missing entry, a
// storage error, or a corrupt payload all yield an empty list; corruption is
// never fatal to the caller.
func (c *ConversationCache) Load(conversationID string) []Message {
	raw, ok, err := c.storage.GetItem(cacheKeyPrefix + conversationID)
	if err != nil {
		log.Errorf("cache load for %s: %v", conversationID, err)
		return nil
	}
	if !ok {
		return nil
	}

	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		log.Errorf("cache entry for %s is corrupt, treating as empty: %v", conversationID, err)
		return nil
	}
	return msgs
}

// Save overwrites the conversation's cache entry with msgs.
func (c *ConversationCache) Save(conversationID string, msgs []Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return errCache("encoding messages", err)
	}
	if err := c.storage.SetItem(cacheKeyPrefix+conversationID, string(data)); err != nil {
		return errCache("writing cache entry", err)
	}
	return nil
}
