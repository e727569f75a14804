package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedEvent means the frame was not a JSON object with a type.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEventType means the type discriminator is not recognized.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrMissingField means a required field was absent or empty.
	ErrMissingField = errors.New("missing required field")
)

// EventType is the discriminator carried in every frame.
type EventType string

// Inbound event types.
const (
	EventJoin                 EventType = "join"
	EventTyping               EventType = "typing"
	EventRead                 EventType = "read"
	EventMessage              EventType = "message"
	EventEdit                 EventType = "edit"
	EventReaction             EventType = "reaction"
	EventFile                 EventType = "file"
	EventDelete               EventType = "delete"
	EventProfile              EventType = "profile"
	EventNotificationSettings EventType = "notificationSettings"
)

// Event is the closed set of inbound frames. Only types in this package
// implement it; the hub switches over the concrete types.
type Event interface {
	Type() EventType
	inbound()
}

// ID accepts either a JSON string or a JSON number and keeps its text form.
type ID string

// UnmarshalJSON accepts a string, a number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// JoinEvent names the connection and admits it to the conversation.
type JoinEvent struct {
	Username string `json:"username"`
}

// TypingEvent reports whether the sender is composing a message.
type TypingEvent struct {
	IsTyping bool `json:"isTyping"`
}

// ReadEvent acknowledges a message.
type ReadEvent struct {
	MessageID ID `json:"messageId"`
}

// MessageEvent posts a text message. ID is a client-suggested id.
type MessageEvent struct {
	Message string `json:"message"`
	ID      ID     `json:"id"`
	Format  Format `json:"format"`
	ReplyTo ID     `json:"replyTo"`
}

// EditEvent replaces the body of a message.
type EditEvent struct {
	MessageID  ID     `json:"messageId"`
	NewMessage string `json:"newMessage"`
}

// ReactionEvent toggles an emoji on a message.
type ReactionEvent struct {
	MessageID ID     `json:"messageId"`
	Reaction  string `json:"reaction"`
}

// FileEvent uploads an inline file with mime-specific metadata.
type FileEvent struct {
	ID        ID       `json:"id"`
	Filename  string   `json:"filename"`
	Content   string   `json:"content"`
	Mime      string   `json:"mime"`
	ReplyTo   ID       `json:"replyTo"`
	Width     *int     `json:"width"`
	Height    *int     `json:"height"`
	Thumbnail string   `json:"thumbnail"`
	Poster    string   `json:"poster"`
	Duration  *float64 `json:"duration"`
	PageCount *int     `json:"pageCount"`
	Snippet   string   `json:"snippet"`
}

// DeleteEvent turns a message into a tombstone.
type DeleteEvent struct {
	MessageID ID `json:"messageId"`
}

// ProfileEvent changes some of the sender's profile fields.
type ProfileEvent struct {
	ProfileUpdate
}

// NotificationSettingsEvent opts the sender in or out of push alerts.
type NotificationSettingsEvent struct {
	Enabled bool `json:"enabled"`
}

func (*JoinEvent) Type() EventType                 { return EventJoin }
func (*TypingEvent) Type() EventType               { return EventTyping }
func (*ReadEvent) Type() EventType                 { return EventRead }
func (*MessageEvent) Type() EventType              { return EventMessage }
func (*EditEvent) Type() EventType                 { return EventEdit }
func (*ReactionEvent) Type() EventType             { return EventReaction }
func (*FileEvent) Type() EventType                 { return EventFile }
func (*DeleteEvent) Type() EventType               { return EventDelete }
func (*ProfileEvent) Type() EventType              { return EventProfile }
func (*NotificationSettingsEvent) Type() EventType { return EventNotificationSettings }

func (*JoinEvent) inbound()                 {}
func (*TypingEvent) inbound()               {}
func (*ReadEvent) inbound()                 {}
func (*MessageEvent) inbound()              {}
func (*EditEvent) inbound()                 {}
func (*ReactionEvent) inbound()             {}
func (*FileEvent) inbound()                 {}
func (*DeleteEvent) inbound()               {}
func (*ProfileEvent) inbound()              {}
func (*NotificationSettingsEvent) inbound() {}

// DecodeEvent parses one frame into its concrete event type.
// Errors wrap ErrMalformedEvent, ErrUnknownEventType or ErrMissingField.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var ev Event
	switch envelope.Type {
	case EventJoin:
		ev = &JoinEvent{}
	case EventTyping:
		ev = &TypingEvent{}
	case EventRead:
		ev = &ReadEvent{}
	case EventMessage:
		ev = &MessageEvent{}
	case EventEdit:
		ev = &EditEvent{}
	case EventReaction:
		ev = &ReactionEvent{}
	case EventFile:
		ev = &FileEvent{}
	case EventDelete:
		ev = &DeleteEvent{}
	case EventProfile:
		ev = &ProfileEvent{}
	case EventNotificationSettings:
		ev = &NotificationSettingsEvent{}
	case "":
		return nil, fmt.Errorf("%w: no type", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, envelope.Type)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, envelope.Type, err)
	}
	if err := validate(ev); err != nil {
		return nil, fmt.Errorf("%s: %w", envelope.Type, err)
	}
	return ev, nil
}

func validate(ev Event) error {
	switch e := ev.(type) {
	case *JoinEvent:
		e.Username = strings.TrimSpace(e.Username)
		return require("username", e.Username)
	case *ReadEvent:
		return require("messageId", string(e.MessageID))
	case *MessageEvent:
		return require("message", e.Message)
	case *EditEvent:
		if err := require("messageId", string(e.MessageID)); err != nil {
			return err
		}
		return require("newMessage", e.NewMessage)
	case *ReactionEvent:
		if err := require("messageId", string(e.MessageID)); err != nil {
			return err
		}
		return require("reaction", e.Reaction)
	case *FileEvent:
		if err := require("filename", e.Filename); err != nil {
			return err
		}
		return require("content", e.Content)
	case *DeleteEvent:
		return require("messageId", string(e.MessageID))
	}
	return nil
}

func require(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return nil
}
