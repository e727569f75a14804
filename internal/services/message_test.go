package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/chatrelay/relay/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store with a controllable clock and predictable ids.
func newTestStore(capacity int) (*MessageStore, *time.Time) {
	s := NewMessageStore(capacity)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("gen-%d", seq)
	}
	return s, &clock
}

func bodies(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}

func TestMessageStore_AppendEviction(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		appends  int
		want     []string
	}{
		{name: "empty", capacity: 3, appends: 0, want: []string{}},
		{name: "below capacity", capacity: 3, appends: 2, want: []string{"m0", "m1"}},
		{name: "exactly full", capacity: 3, appends: 3, want: []string{"m0", "m1", "m2"}},
		{name: "wraps twice", capacity: 3, appends: 8, want: []string{"m5", "m6", "m7"}},
		{name: "capacity one", capacity: 1, appends: 4, want: []string{"m3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(tt.capacity)
			for i := 0; i < tt.appends; i++ {
				s.Append(models.Message{Username: "alice", Body: fmt.Sprintf("m%d", i)})
			}
			assert.Equal(t, tt.want, bodies(s.Snapshot()))
			assert.Equal(t, len(tt.want), s.Len())
			assert.Equal(t, tt.capacity, s.Cap())
		})
	}
}

func TestMessageStore_EvictedIDsNoLongerResolve(t *testing.T) {
	s, _ := newTestStore(2)
	first := s.Append(models.Message{Body: "a"})
	s.Append(models.Message{Body: "b"})
	s.Append(models.Message{Body: "c"})

	_, err := s.Find(first.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	_, err = s.Edit(first.ID, "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageStore_AppendAssignsIdentity(t *testing.T) {
	s, clock := newTestStore(5)

	kept := s.Append(models.Message{ID: "client-1", Body: "hi", Timestamp: time.Unix(0, 0)})
	assert.Equal(t, "client-1", kept.ID)
	assert.Equal(t, *clock, kept.Timestamp, "timestamp is server time")
	assert.NotNil(t, kept.Reactions)
	assert.NotNil(t, kept.ReadBy)

	generated := s.Append(models.Message{Body: "no id"})
	assert.Equal(t, "gen-1", generated.ID)

	collision := s.Append(models.Message{ID: "client-1", Body: "dup"})
	assert.Equal(t, "gen-2", collision.ID)

	found, err := s.Find("client-1")
	require.NoError(t, err)
	assert.Equal(t, "hi", found.Body, "original message is untouched")
}

func TestMessageStore_AppendResetsClientFlags(t *testing.T) {
	s, _ := newTestStore(2)
	now := time.Now()
	msg := s.Append(models.Message{Body: "x", Edited: true, EditedAt: &now, Deleted: true})
	assert.False(t, msg.Edited)
	assert.Nil(t, msg.EditedAt)
	assert.False(t, msg.Deleted)
}

func TestMessageStore_Edit(t *testing.T) {
	s, clock := newTestStore(5)
	msg := s.Append(models.Message{Body: "hello @bob", Mentions: []string{"bob"}})

	*clock = clock.Add(time.Minute)
	edited, err := s.Edit(msg.ID, "hello @carol")
	require.NoError(t, err)
	assert.Equal(t, "hello @carol", edited.Body)
	assert.True(t, edited.Edited)
	require.NotNil(t, edited.EditedAt)
	assert.Equal(t, *clock, *edited.EditedAt)
	assert.Equal(t, []string{"bob"}, edited.Mentions, "mentions are not recomputed")
	assert.Equal(t, msg.Timestamp, edited.Timestamp)

	_, err = s.Edit("missing", "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageStore_Delete(t *testing.T) {
	s, _ := newTestStore(5)
	msg := s.Append(models.Message{Body: "secret", File: &models.Attachment{Filename: "a.png"}})
	s.Append(models.Message{Body: "after"})

	deleted, err := s.Delete(msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, models.DeletedPlaceholder, deleted.Body)
	assert.Nil(t, deleted.File)

	// Position and count are kept
	assert.Equal(t, []string{models.DeletedPlaceholder, "after"}, bodies(s.Snapshot()))

	_, err = s.Delete(msg.ID)
	assert.ErrorIs(t, err, ErrMessageDeleted, "deleting a tombstone again reports it")
	assert.Equal(t, 2, s.Len())

	_, err = s.Edit(msg.ID, "back")
	assert.ErrorIs(t, err, ErrMessageDeleted)
	_, err = s.React(msg.ID, "bob", "👍")
	assert.ErrorIs(t, err, ErrMessageDeleted)

	readers, changed, err := s.MarkRead(msg.ID, "bob")
	require.NoError(t, err, "read receipts still resolve on tombstones")
	assert.True(t, changed)
	assert.Equal(t, []string{"bob"}, readers)

	_, err = s.Delete("missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageStore_ReactToggle(t *testing.T) {
	s, _ := newTestStore(5)
	msg := s.Append(models.Message{Body: "x"})

	steps := []struct {
		user  string
		emoji string
		want  []models.Reaction
	}{
		{"bob", "👍", []models.Reaction{{Username: "bob", Emoji: "👍"}}},
		{"carol", "👍", []models.Reaction{{Username: "bob", Emoji: "👍"}, {Username: "carol", Emoji: "👍"}}},
		{"bob", "🎉", []models.Reaction{{Username: "bob", Emoji: "👍"}, {Username: "carol", Emoji: "👍"}, {Username: "bob", Emoji: "🎉"}}},
		{"bob", "👍", []models.Reaction{{Username: "carol", Emoji: "👍"}, {Username: "bob", Emoji: "🎉"}}},
		{"carol", "👍", []models.Reaction{{Username: "bob", Emoji: "🎉"}}},
	}
	for i, step := range steps {
		got, err := s.React(msg.ID, step.user, step.emoji)
		require.NoError(t, err)
		assert.Equal(t, step.want, got, "step %d", i)
	}

	stored, err := s.Find(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, steps[len(steps)-1].want, stored.Reactions)

	_, err = s.React("missing", "bob", "👍")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageStore_MarkReadIdempotent(t *testing.T) {
	s, _ := newTestStore(5)
	msg := s.Append(models.Message{Body: "x"})

	readers, changed, err := s.MarkRead(msg.ID, "bob")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"bob"}, readers)

	readers, changed, err = s.MarkRead(msg.ID, "bob")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{"bob"}, readers)

	readers, _, err = s.MarkRead(msg.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, readers)

	_, _, err = s.MarkRead("missing", "bob")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageStore_SnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(5)
	msg := s.Append(models.Message{Body: "x"})
	_, err := s.React(msg.ID, "bob", "👍")
	require.NoError(t, err)

	snap := s.Snapshot()
	snap[0].Body = "mutated"
	snap[0].Reactions[0].Emoji = "👎"

	found, err := s.Find(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", found.Body)
	assert.Equal(t, "👍", found.Reactions[0].Emoji)
}

func TestMessageStore_After(t *testing.T) {
	s, clock := newTestStore(5)
	start := *clock
	s.Append(models.Message{Body: "a"})
	*clock = clock.Add(time.Second)
	s.Append(models.Message{Body: "b"})
	*clock = clock.Add(time.Second)
	s.Append(models.Message{Body: "c"})

	assert.Equal(t, []string{"a", "b", "c"}, bodies(s.After(time.Time{})))
	assert.Equal(t, []string{"b", "c"}, bodies(s.After(start)))
	assert.Empty(t, s.After(*clock))
}

func TestMessageStore_Sweep(t *testing.T) {
	tests := []struct {
		name        string
		capacity    int
		old         int
		fresh       int
		wantEvicted int
		want        []string
	}{
		{name: "at or below half full is left alone", capacity: 4, old: 2, wantEvicted: 0, want: []string{"old", "old"}},
		{name: "above half full evicts expired", capacity: 4, old: 3, wantEvicted: 3, want: []string{}},
		{name: "stops at first fresh message", capacity: 4, old: 2, fresh: 2, wantEvicted: 2, want: []string{"fresh", "fresh"}},
		{name: "nothing expired", capacity: 4, fresh: 4, wantEvicted: 0, want: []string{"fresh", "fresh", "fresh", "fresh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := newTestStore(tt.capacity)
			for i := 0; i < tt.old; i++ {
				s.Append(models.Message{Body: "old"})
			}
			*clock = clock.Add(48 * time.Hour)
			for i := 0; i < tt.fresh; i++ {
				s.Append(models.Message{Body: "fresh"})
			}

			assert.Equal(t, tt.wantEvicted, s.Sweep(24*time.Hour))
			assert.Equal(t, len(tt.want), s.Len())
			assert.Equal(t, tt.want, bodies(s.Snapshot()))
		})
	}
}

func TestMessageStore_SweepThenAppend(t *testing.T) {
	s, clock := newTestStore(3)
	for i := 0; i < 3; i++ {
		s.Append(models.Message{Body: fmt.Sprintf("old%d", i)})
	}
	*clock = clock.Add(time.Hour)
	require.Equal(t, 3, s.Sweep(time.Minute))

	for i := 0; i < 4; i++ {
		s.Append(models.Message{Body: fmt.Sprintf("new%d", i)})
	}
	assert.Equal(t, []string{"new1", "new2", "new3"}, bodies(s.Snapshot()))
}
