package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fic-recs-bot/internal/domain"
)

// ErrNotTracked означает, что сообщение не управляется реакциями.
var ErrNotTracked = errors.New("message is not tracked")

// MessageTracker запоминает сообщения бота, которые можно листать реакциями.
type MessageTracker struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewMessageTracker создаёт трекер поверх TTL-кэша.
func NewMessageTracker(cache domain.Cache, ttl time.Duration) *MessageTracker {
	return &MessageTracker{cache: cache, ttl: ttl}
}

func trackerKey(messageID string) string {
	return "tracked:" + messageID
}

// Track сохраняет владельца и вид сообщения.
func (t *MessageTracker) Track(ref domain.MessageRef, entry domain.TrackedMessage) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal tracked message: %w", err)
	}
	return t.cache.Set(trackerKey(ref.MessageID), payload, t.ttl)
}

// Lookup возвращает запись о сообщении или ErrNotTracked.
func (t *MessageTracker) Lookup(ref domain.MessageRef) (domain.TrackedMessage, error) {
	data, err := t.cache.Get(trackerKey(ref.MessageID))
	if err != nil || len(data) == 0 {
		return domain.TrackedMessage{}, ErrNotTracked
	}
	var entry domain.TrackedMessage
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.TrackedMessage{}, fmt.Errorf("decode tracked message: %w", err)
	}
	return entry, nil
}
