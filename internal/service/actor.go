package service

import (
	"procurement/internal/apperror"
	"procurement/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated caller of a core operation. The HTTP layer
// resolves it from the access token and passes it in explicitly.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsPrivileged reports whether the actor may act on requests it does not own.
func (a Actor) IsPrivileged() bool {
	return model.IsPrivilegedRole(a.Role)
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

func (a Actor) validate() error {
	if a.ID == uuid.Nil {
		return apperror.Validation("actor is required")
	}
	return nil
}
