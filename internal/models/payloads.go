package models

import "time"

// Outbound payload types. Every payload is a flat JSON object with a "type"
// discriminator; the constructors below set it.
const (
	PayloadSystem           = "system"
	PayloadUsers            = "users"
	PayloadHistory          = "history"
	PayloadTyping           = "typing"
	PayloadMessage          = "message"
	PayloadMessageRead      = "messageRead"
	PayloadEdit             = "edit"
	PayloadReaction         = "reaction"
	PayloadDelete           = "delete"
	PayloadProfile          = "profile"
	PayloadNotification     = "notification"
	PayloadPushNotification = "pushNotification"
)

// SystemPayload is a plain notice such as a join or leave.
type SystemPayload struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// UsersPayload carries the full roster.
type UsersPayload struct {
	Type  string    `json:"type"`
	Users []Profile `json:"users"`
}

// HistoryPayload replays the window to a newly joined client.
type HistoryPayload struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

// TypingPayload relays a typing change.
type TypingPayload struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// MessagePayload flattens the stored message next to the discriminator.
type MessagePayload struct {
	Type string `json:"type"`
	Message
}

// MessageReadPayload carries every reader of a message.
type MessageReadPayload struct {
	Type      string   `json:"type"`
	MessageID string   `json:"messageId"`
	Readers   []string `json:"readers"`
}

// EditPayload announces a new body for a message.
type EditPayload struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"messageId"`
	NewMessage string    `json:"newMessage"`
	EditedAt   time.Time `json:"editedAt"`
}

// ReactionPayload carries the full reaction list of a message.
type ReactionPayload struct {
	Type      string     `json:"type"`
	MessageID string     `json:"messageId"`
	Reactions []Reaction `json:"reactions"`
}

// DeletePayload announces a tombstone.
type DeletePayload struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

// ProfilePayload flattens an updated profile next to the discriminator.
type ProfilePayload struct {
	Type string `json:"type"`
	Profile
}

// NotificationPayload tells a client it was mentioned.
type NotificationPayload struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	MessageID string    `json:"messageId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PushNotificationPayload is the richer alert for clients that opted in.
type PushNotificationPayload struct {
	Type  string           `json:"type"`
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Icon  string           `json:"icon"`
	Data  PushNotification `json:"data"`
}

// PushNotification is the data attached to a push alert.
type PushNotification struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
}

// NewSystem builds a notice stamped with now.
func NewSystem(text string, now time.Time) SystemPayload {
	return SystemPayload{Type: PayloadSystem, Message: text, Timestamp: now}
}

func NewUsers(users []Profile) UsersPayload {
	if users == nil {
		users = []Profile{}
	}
	return UsersPayload{Type: PayloadUsers, Users: users}
}

func NewHistory(messages []Message) HistoryPayload {
	if messages == nil {
		messages = []Message{}
	}
	return HistoryPayload{Type: PayloadHistory, Messages: messages}
}

func NewTyping(username string, isTyping bool) TypingPayload {
	return TypingPayload{Type: PayloadTyping, Username: username, IsTyping: isTyping}
}

func NewMessage(msg Message) MessagePayload {
	return MessagePayload{Type: PayloadMessage, Message: msg}
}

func NewMessageRead(id string, readers []string) MessageReadPayload {
	return MessageReadPayload{Type: PayloadMessageRead, MessageID: id, Readers: readers}
}

func NewEdit(msg Message) EditPayload {
	p := EditPayload{Type: PayloadEdit, MessageID: msg.ID, NewMessage: msg.Body}
	if msg.EditedAt != nil {
		p.EditedAt = *msg.EditedAt
	}
	return p
}

func NewReaction(id string, reactions []Reaction) ReactionPayload {
	return ReactionPayload{Type: PayloadReaction, MessageID: id, Reactions: reactions}
}

func NewDelete(id string) DeletePayload {
	return DeletePayload{Type: PayloadDelete, MessageID: id}
}

func NewProfile(p Profile) ProfilePayload {
	return ProfilePayload{Type: PayloadProfile, Profile: p}
}

func NewNotification(msg Message) NotificationPayload {
	return NotificationPayload{
		Type:      PayloadNotification,
		From:      msg.Username,
		MessageID: msg.ID,
		Message:   msg.Body,
		Timestamp: msg.Timestamp,
	}
}

func NewPushNotification(msg Message, icon string) PushNotificationPayload {
	return PushNotificationPayload{
		Type:  PayloadPushNotification,
		Title: msg.Username + " mentioned you",
		Body:  msg.Body,
		Icon:  icon,
		Data:  PushNotification{MessageID: msg.ID, From: msg.Username},
	}
}
