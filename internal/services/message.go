package services

import (
	"errors"
	"time"

	"github.com/chatrelay/relay/backend/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrMessageNotFound is returned for ids outside the history window.
	ErrMessageNotFound = errors.New("message not found")
	// ErrMessageDeleted is returned when editing, reacting to or deleting a tombstone.
	ErrMessageDeleted = errors.New("message deleted")
)

// MessageStore is the bounded history window: a fixed-capacity circular
// buffer indexed by message id. Once full, each append evicts the oldest
// message.
//
// MessageStore is not safe for concurrent use; the hub owns it and calls it
// from its event loop only.
type MessageStore struct {
	ring  []*models.Message
	head  int // index of the oldest message
	count int
	byID  map[string]*models.Message

	now   func() time.Time
	newID func() string
}

// NewMessageStore creates a store holding at most capacity messages.
func NewMessageStore(capacity int) *MessageStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MessageStore{
		ring:  make([]*models.Message, capacity),
		byID:  make(map[string]*models.Message, capacity),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// Len returns the number of messages in the window.
func (s *MessageStore) Len() int { return s.count }

// Cap returns the window capacity.
func (s *MessageStore) Cap() int { return len(s.ring) }

// Append stores msg at the end of the window and returns the stored copy.
// The caller's id is kept unless it is empty or already in the window, in
// which case a fresh one is generated. The timestamp is always server time.
func (s *MessageStore) Append(msg models.Message) models.Message {
	for msg.ID == "" || s.byID[msg.ID] != nil {
		msg.ID = s.newID()
	}
	msg.Timestamp = s.now()
	msg.Edited = false
	msg.EditedAt = nil
	msg.Deleted = false
	if msg.Reactions == nil {
		msg.Reactions = []models.Reaction{}
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}

	stored := &msg
	if s.count == len(s.ring) {
		delete(s.byID, s.ring[s.head].ID)
		s.ring[s.head] = stored
		s.head = (s.head + 1) % len(s.ring)
	} else {
		s.ring[(s.head+s.count)%len(s.ring)] = stored
		s.count++
	}
	s.byID[stored.ID] = stored
	return stored.Clone()
}

// Find returns a copy of the message with the given id.
func (s *MessageStore) Find(id string) (models.Message, error) {
	msg, ok := s.byID[id]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return msg.Clone(), nil
}

// Edit replaces the body of a message and stamps it as edited.
// Mentions stay as they were at creation.
func (s *MessageStore) Edit(id, body string) (models.Message, error) {
	msg, ok := s.byID[id]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	if msg.Deleted {
		return models.Message{}, ErrMessageDeleted
	}
	now := s.now()
	msg.Body = body
	msg.Edited = true
	msg.EditedAt = &now
	return msg.Clone(), nil
}

// Delete turns a message into a tombstone. The id and position in the window
// are kept so replies and read receipts still resolve. Deleting a tombstone
// again changes nothing and returns ErrMessageDeleted.
func (s *MessageStore) Delete(id string) (models.Message, error) {
	msg, ok := s.byID[id]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	if msg.Deleted {
		return models.Message{}, ErrMessageDeleted
	}
	msg.Deleted = true
	msg.Body = models.DeletedPlaceholder
	msg.File = nil
	return msg.Clone(), nil
}

// React toggles (username, emoji) on a message and returns the resulting
// reaction list.
func (s *MessageStore) React(id, username, emoji string) ([]models.Reaction, error) {
	msg, ok := s.byID[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	if msg.Deleted {
		return nil, ErrMessageDeleted
	}
	for i, r := range msg.Reactions {
		if r.Username == username && r.Emoji == emoji {
			msg.Reactions = append(msg.Reactions[:i:i], msg.Reactions[i+1:]...)
			return append([]models.Reaction{}, msg.Reactions...), nil
		}
	}
	msg.Reactions = append(msg.Reactions, models.Reaction{Username: username, Emoji: emoji})
	return append([]models.Reaction{}, msg.Reactions...), nil
}

// MarkRead adds username to the readers of a message. changed is false when
// the user had already read it.
func (s *MessageStore) MarkRead(id, username string) (readers []string, changed bool, err error) {
	msg, ok := s.byID[id]
	if !ok {
		return nil, false, ErrMessageNotFound
	}
	for _, r := range msg.ReadBy {
		if r == username {
			return append([]string{}, msg.ReadBy...), false, nil
		}
	}
	msg.ReadBy = append(msg.ReadBy, username)
	return append([]string{}, msg.ReadBy...), true, nil
}

// Snapshot returns the window oldest first.
func (s *MessageStore) Snapshot() []models.Message {
	out := make([]models.Message, 0, s.count)
	for i := 0; i < s.count; i++ {
		out = append(out, s.ring[(s.head+i)%len(s.ring)].Clone())
	}
	return out
}

// After returns the messages created strictly after t, oldest first.
// A zero t returns the whole window.
func (s *MessageStore) After(t time.Time) []models.Message {
	if t.IsZero() {
		return s.Snapshot()
	}
	out := []models.Message{}
	for i := 0; i < s.count; i++ {
		msg := s.ring[(s.head+i)%len(s.ring)]
		if msg.Timestamp.After(t) {
			out = append(out, msg.Clone())
		}
	}
	return out
}

// Sweep evicts messages older than maxAge from the front of the window.
// It only runs while the window is more than half full and returns the
// number of evicted messages.
func (s *MessageStore) Sweep(maxAge time.Duration) int {
	if s.count <= len(s.ring)/2 {
		return 0
	}
	cutoff := s.now().Add(-maxAge)
	evicted := 0
	for s.count > 0 {
		oldest := s.ring[s.head]
		if !oldest.Timestamp.Before(cutoff) {
			break
		}
		delete(s.byID, oldest.ID)
		s.ring[s.head] = nil
		s.head = (s.head + 1) % len(s.ring)
		s.count--
		evicted++
	}
	return evicted
}
