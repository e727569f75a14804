package models

import "time"

// DeletedPlaceholder replaces the body of a deleted message.
const DeletedPlaceholder = "This message was deleted"

// Format tells clients how to render a message body.
// The server never interprets it.
type Format string

const (
	FormatPlaintext Format = "plaintext"
	FormatMarkdown  Format = "markdown"
	FormatHTML      Format = "html"
)

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	switch f {
	case FormatPlaintext, FormatMarkdown, FormatHTML:
		return true
	}
	return false
}

// Message represents a chat message in the shared history window.
// Messages live in memory only and are evicted oldest-first.
type Message struct {
	// ID is the unique identifier for this message within the window
	ID string `json:"id"`

	// Username is the sender's name at the time of sending
	Username string `json:"username"`

	// Body is the message text (the filename for file messages)
	Body string `json:"message"`

	// Format is forwarded to clients as-is
	Format Format `json:"format,omitempty"`

	// ReplyTo references another message id; never validated
	ReplyTo string `json:"replyTo,omitempty"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`

	// Edited and EditedAt are set only by an edit
	Edited   bool       `json:"edited,omitempty"`
	EditedAt *time.Time `json:"editedAt,omitempty"`

	// Deleted marks a tombstone; the body holds DeletedPlaceholder
	Deleted bool `json:"deleted,omitempty"`

	// Mentions are the names found in the body at creation time
	Mentions []string `json:"mentions,omitempty"`

	// Reactions holds unique (username, emoji) pairs in application order
	Reactions []Reaction `json:"reactions"`

	// ReadBy holds every username that acknowledged the message
	ReadBy []string `json:"readBy"`

	// File is set for messages created by a file upload
	File *Attachment `json:"file,omitempty"`
}

// Reaction is an emoji tag a user attached to a message.
type Reaction struct {
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}

// Attachment carries an inline file and its mime-specific metadata.
type Attachment struct {
	Filename string `json:"filename"`

	// Content is the inline file; it is left out of history replays
	Content string `json:"content,omitempty"`
	Mime     string `json:"mime"`

	// Size is len(Content) in bytes; SizeText is its human-readable form
	Size     int    `json:"size"`
	SizeText string `json:"sizeText"`

	// image
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`

	// video and audio
	Poster   string   `json:"poster,omitempty"`
	Duration *float64 `json:"duration,omitempty"`

	// pdf
	PageCount *int `json:"pageCount,omitempty"`

	// text
	Snippet string `json:"snippet,omitempty"`
}

// Clone returns a deep copy safe to hand outside the hub.
func (m *Message) Clone() Message {
	c := *m
	if m.EditedAt != nil {
		t := *m.EditedAt
		c.EditedAt = &t
	}
	c.Mentions = cloneStrings(m.Mentions)
	c.Reactions = append([]Reaction{}, m.Reactions...)
	c.ReadBy = append([]string{}, m.ReadBy...)
	if m.File != nil {
		f := *m.File
		c.File = &f
	}
	return c
}

// WithoutContent returns a copy whose attachment keeps its metadata and
// previews but drops the inline content. History replay uses it so the
// window's size does not scale with uploaded files.
func (m *Message) WithoutContent() Message {
	c := m.Clone()
	if c.File != nil {
		c.File.Content = ""
	}
	return c
}

// WithoutContent applies Message.WithoutContent to every message.
func WithoutContent(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, msgs[i].WithoutContent())
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
