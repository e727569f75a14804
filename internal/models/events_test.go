package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	trequire "github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{
			name:  "join trims username",
			frame: `{"type":"join","username":"  alice "}`,
			want:  &JoinEvent{Username: "alice"},
		},
		{
			name:  "typing",
			frame: `{"type":"typing","isTyping":true}`,
			want:  &TypingEvent{IsTyping: true},
		},
		{
			name:  "read with numeric id",
			frame: `{"type":"read","messageId":1715000000123}`,
			want:  &ReadEvent{MessageID: "1715000000123"},
		},
		{
			name:  "message with optional fields",
			frame: `{"type":"message","message":"hi @bob","id":"c-1","format":"markdown","replyTo":7}`,
			want:  &MessageEvent{Message: "hi @bob", ID: "c-1", Format: FormatMarkdown, ReplyTo: "7"},
		},
		{
			name:  "message with null id",
			frame: `{"type":"message","message":"x","id":null}`,
			want:  &MessageEvent{Message: "x"},
		},
		{
			name:  "edit",
			frame: `{"type":"edit","messageId":"m1","newMessage":"fixed"}`,
			want:  &EditEvent{MessageID: "m1", NewMessage: "fixed"},
		},
		{
			name:  "reaction",
			frame: `{"type":"reaction","messageId":"m1","reaction":"👍"}`,
			want:  &ReactionEvent{MessageID: "m1", Reaction: "👍"},
		},
		{
			name:  "delete",
			frame: `{"type":"delete","messageId":"m1"}`,
			want:  &DeleteEvent{MessageID: "m1"},
		},
		{
			name:  "notification settings",
			frame: `{"type":"notificationSettings","enabled":true}`,
			want:  &NotificationSettingsEvent{Enabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.frame))
			trequire.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Type(), got.Type())
		})
	}
}

func TestDecodeEvent_File(t *testing.T) {
	frame := `{"type":"file","filename":"cat.png","content":"data:image/png;base64,AAAA","mime":"image/png","width":640,"height":480,"thumbnail":"t"}`
	ev, err := DecodeEvent([]byte(frame))
	trequire.NoError(t, err)

	file, ok := ev.(*FileEvent)
	trequire.True(t, ok)
	assert.Equal(t, "cat.png", file.Filename)
	assert.Equal(t, "image/png", file.Mime)
	trequire.NotNil(t, file.Width)
	assert.Equal(t, 640, *file.Width)
	trequire.NotNil(t, file.Height)
	assert.Equal(t, 480, *file.Height)
	assert.Nil(t, file.Duration)
	assert.Nil(t, file.PageCount)
}

func TestDecodeEvent_ProfileIsPartial(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"profile","status":"away"}`))
	trequire.NoError(t, err)

	profile, ok := ev.(*ProfileEvent)
	trequire.True(t, ok)
	trequire.NotNil(t, profile.Status)
	assert.Equal(t, StatusAway, *profile.Status)
	assert.Nil(t, profile.Avatar)
	assert.Nil(t, profile.AboutMe)
}

func TestDecodeEvent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{name: "not json", frame: `hello`, wantErr: ErrMalformedEvent},
		{name: "json array", frame: `[1,2]`, wantErr: ErrMalformedEvent},
		{name: "missing type", frame: `{"username":"alice"}`, wantErr: ErrMalformedEvent},
		{name: "unknown type", frame: `{"type":"shout"}`, wantErr: ErrUnknownEventType},
		{name: "wrong field type", frame: `{"type":"typing","isTyping":"yes"}`, wantErr: ErrMalformedEvent},
		{name: "bad id type", frame: `{"type":"read","messageId":{"a":1}}`, wantErr: ErrMalformedEvent},
		{name: "blank username", frame: `{"type":"join","username":"   "}`, wantErr: ErrMissingField},
		{name: "empty message", frame: `{"type":"message","message":""}`, wantErr: ErrMissingField},
		{name: "edit without id", frame: `{"type":"edit","newMessage":"x"}`, wantErr: ErrMissingField},
		{name: "edit without body", frame: `{"type":"edit","messageId":"m1"}`, wantErr: ErrMissingField},
		{name: "reaction without emoji", frame: `{"type":"reaction","messageId":"m1"}`, wantErr: ErrMissingField},
		{name: "file without content", frame: `{"type":"file","filename":"a.txt"}`, wantErr: ErrMissingField},
		{name: "delete without id", frame: `{"type":"delete"}`, wantErr: ErrMissingField},
		{name: "read without id", frame: `{"type":"read"}`, wantErr: ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.frame))
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMessageClone(t *testing.T) {
	width := 10
	orig := Message{
		ID:        "m1",
		Mentions:  []string{"bob"},
		Reactions: []Reaction{{Username: "bob", Emoji: "👍"}},
		ReadBy:    []string{"carol"},
		File:      &Attachment{Filename: "a.png", Width: &width},
	}

	c := orig.Clone()
	c.Mentions[0] = "x"
	c.Reactions[0].Emoji = "x"
	c.ReadBy[0] = "x"
	c.File.Filename = "x"

	assert.Equal(t, "bob", orig.Mentions[0])
	assert.Equal(t, "👍", orig.Reactions[0].Emoji)
	assert.Equal(t, "carol", orig.ReadBy[0])
	assert.Equal(t, "a.png", orig.File.Filename)
}

func TestWithoutContent(t *testing.T) {
	msgs := []Message{
		{ID: "m1", Body: "text"},
		{ID: "m2", Body: "a.png", File: &Attachment{Filename: "a.png", Content: "AAAA", Size: 4, Thumbnail: "t"}},
	}

	out := WithoutContent(msgs)
	trequire.Len(t, out, 2)
	assert.Nil(t, out[0].File)
	trequire.NotNil(t, out[1].File)
	assert.Empty(t, out[1].File.Content)
	assert.Equal(t, "t", out[1].File.Thumbnail)
	assert.Equal(t, 4, out[1].File.Size)
	assert.Equal(t, "AAAA", msgs[1].File.Content, "input is not modified")
}

func TestPayloadShapes(t *testing.T) {
	msg := Message{ID: "m1", Username: "alice", Body: "hi @bob"}

	data, err := json.Marshal(NewMessage(msg))
	trequire.NoError(t, err)
	var flat map[string]any
	trequire.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "message", flat["type"])
	assert.Equal(t, "m1", flat["id"], "message fields sit next to the type")
	assert.Equal(t, "hi @bob", flat["message"])

	users := NewUsers(nil)
	data, err = json.Marshal(users)
	trequire.NoError(t, err)
	assert.JSONEq(t, `{"type":"users","users":[]}`, string(data))

	push := NewPushNotification(msg, "/icon.png")
	assert.Equal(t, "alice mentioned you", push.Title)
	assert.Equal(t, "hi @bob", push.Body)
	assert.Equal(t, "m1", push.Data.MessageID)
}
