package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/chatrelay/relay/backend/internal/models"
)

var (
	// ErrUnknownClient is returned for connection ids that are not registered.
	ErrUnknownClient = errors.New("unknown client")
	// ErrAlreadyJoined is returned by a second join on the same connection.
	ErrAlreadyJoined = errors.New("client already joined")
	// ErrInvalidStatus is returned for a profile status outside online/away/offline.
	ErrInvalidStatus = errors.New("invalid status")
)

// ClientState is everything the relay knows about one connection.
type ClientState struct {
	ConnID               string
	Username             string
	Joined               bool
	Status               models.Status
	Avatar               string
	AboutMe              string
	IsTyping             bool
	LastSeen             time.Time
	NotificationsEnabled bool
}

// Profile returns the public part of the client state.
func (c ClientState) Profile() models.Profile {
	return models.Profile{
		Username: c.Username,
		Status:   c.Status,
		Avatar:   c.Avatar,
		AboutMe:  c.AboutMe,
		IsTyping: c.IsTyping,
		LastSeen: c.LastSeen,
	}
}

// Registry maps live connections to their client state, remembering
// registration order for the roster.
//
// Registry is not safe for concurrent use; the hub owns it.
type Registry struct {
	clients map[string]*ClientState
	order   []string
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*ClientState),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Len returns the number of registered connections, joined or not.
func (r *Registry) Len() int { return len(r.clients) }

// Register creates a blank record for a new connection. Registering a known
// id returns the existing record unchanged.
func (r *Registry) Register(connID string) ClientState {
	if c, ok := r.clients[connID]; ok {
		return *c
	}
	c := &ClientState{ConnID: connID}
	r.clients[connID] = c
	r.order = append(r.order, connID)
	return *c
}

// Get returns the record for a connection.
func (r *Registry) Get(connID string) (ClientState, bool) {
	c, ok := r.clients[connID]
	if !ok {
		return ClientState{}, false
	}
	return *c, true
}

// Join assigns the username of a connection. Usernames are not unique across
// connections.
func (r *Registry) Join(connID, username string) (ClientState, error) {
	c, ok := r.clients[connID]
	if !ok {
		return ClientState{}, ErrUnknownClient
	}
	if c.Joined {
		return *c, fmt.Errorf("%w as %q", ErrAlreadyJoined, c.Username)
	}
	c.Username = username
	c.Joined = true
	c.Status = models.StatusOnline
	c.LastSeen = r.now()
	return *c, nil
}

// UpdateProfile applies the fields present in upd and leaves the rest alone.
func (r *Registry) UpdateProfile(connID string, upd models.ProfileUpdate) (ClientState, error) {
	c, ok := r.clients[connID]
	if !ok {
		return ClientState{}, ErrUnknownClient
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return *c, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
	}
	if upd.Avatar != nil {
		c.Avatar = *upd.Avatar
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.AboutMe != nil {
		c.AboutMe = *upd.AboutMe
	}
	return *c, nil
}

// SetTyping records the last reported typing state.
func (r *Registry) SetTyping(connID string, isTyping bool) (ClientState, error) {
	c, ok := r.clients[connID]
	if !ok {
		return ClientState{}, ErrUnknownClient
	}
	c.IsTyping = isTyping
	return *c, nil
}

// SetNotificationPref toggles push-style mention alerts for a connection.
func (r *Registry) SetNotificationPref(connID string, enabled bool) (ClientState, error) {
	c, ok := r.clients[connID]
	if !ok {
		return ClientState{}, ErrUnknownClient
	}
	c.NotificationsEnabled = enabled
	return *c, nil
}

// Unregister removes a connection and returns its final state, marked offline.
// ok is false if the connection was never registered.
func (r *Registry) Unregister(connID string) (ClientState, bool) {
	c, ok := r.clients[connID]
	if !ok {
		return ClientState{}, false
	}
	c.Status = models.StatusOffline
	c.IsTyping = false
	c.LastSeen = r.now()
	delete(r.clients, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *c, true
}

// Snapshot returns the public profiles of joined clients in registration order.
func (r *Registry) Snapshot() []models.Profile {
	out := make([]models.Profile, 0, len(r.order))
	for _, id := range r.order {
		if c := r.clients[id]; c.Joined {
			out = append(out, c.Profile())
		}
	}
	return out
}

// Joined returns the joined clients in registration order.
func (r *Registry) Joined() []ClientState {
	out := make([]ClientState, 0, len(r.order))
	for _, id := range r.order {
		if c := r.clients[id]; c.Joined {
			out = append(out, *c)
		}
	}
	return out
}

// JoinedCount returns the number of joined clients.
func (r *Registry) JoinedCount() int {
	n := 0
	for _, c := range r.clients {
		if c.Joined {
			n++
		}
	}
	return n
}
