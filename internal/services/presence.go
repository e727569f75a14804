package services

import "github.com/chatrelay/relay/backend/internal/models"

// Roster is the read side of the registry that presence needs.
type Roster interface {
	Snapshot() []models.Profile
}

// ActiveUsers projects the registry into a complete roster payload.
// It always carries the full list, never a diff.
func ActiveUsers(r Roster) models.UsersPayload {
	return models.NewUsers(r.Snapshot())
}
