package models

import "time"

// Status is a client's self-reported presence.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline:
		return true
	}
	return false
}

// Profile is the public view of a joined client, republished in the roster.
type Profile struct {
	// Username is the display name chosen on join
	Username string `json:"username"`

	// Status is online, away or offline
	Status Status `json:"status"`

	// Avatar is an avatar identifier or URL
	Avatar string `json:"avatar,omitempty"`

	// AboutMe is free-form profile text
	AboutMe string `json:"aboutMe,omitempty"`

	// IsTyping is the last reported typing state
	IsTyping bool `json:"isTyping"`

	// LastSeen is updated on join and on disconnect
	LastSeen time.Time `json:"lastSeen"`
}

// ProfileUpdate is a partial profile change; nil fields are left unchanged.
type ProfileUpdate struct {
	Avatar  *string `json:"avatar,omitempty"`
	Status  *Status `json:"status,omitempty"`
	AboutMe *string `json:"aboutMe,omitempty"`
}

// GetMessagesResponse is the response for fetching the history window
type GetMessagesResponse struct {
	Messages []Message `json:"messages"`
}

// GetUsersResponse is the response for fetching the roster
type GetUsersResponse struct {
	Users []Profile `json:"users"`
}
