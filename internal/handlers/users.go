package handlers

import (
	"net/http"

	"github.com/chatrelay/relay/backend/internal/models"
)

// RosterSource is the read side of presence.
type RosterSource interface {
	Users() []models.Profile
}

// UserHandler serves the current roster over HTTP.
type UserHandler struct {
	roster RosterSource
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(roster RosterSource) *UserHandler {
	return &UserHandler{roster: roster}
}

// ListUsers handles GET /api/users
// Returns every joined client in join order.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := h.roster.Users()
	if users == nil {
		users = []models.Profile{}
	}
	writeJSON(w, http.StatusOK, models.GetUsersResponse{Users: users})
}
