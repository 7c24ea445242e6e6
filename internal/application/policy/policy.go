// Package policy is the single authorization check for the API: an actor may
// perform an action on a resource.
package policy

import (
	"errors"

	"siglo-backend/internal/constants"
	roles "siglo-backend/internal/pkg/constants"
)

var (
	ErrUnauthenticated = errors.New("Unauthorized")
	ErrForbidden       = errors.New("User is Forbidden from performing this action")
	ErrUnknownAction   = errors.New("Permission configuration error")
)

// Actor is the authenticated caller.
type Actor struct {
	UserID uint
	Role   string
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == roles.Admin
}

// Resource scopes an action to something a client owns. A zero OwnerID means
// the action is not owner-scoped.
type Resource struct {
	OwnerID uint
}

// Authorize returns nil when actor may perform action on res. Administrators
// bypass owner scoping; clients only reach resources they own.
func Authorize(actor *Actor, action string, res *Resource) error {
	if actor == nil || actor.UserID == 0 {
		return ErrUnauthenticated
	}
	if !constants.Configured(action) {
		return ErrUnknownAction
	}
	if !constants.AllowedRole(action, actor.Role) {
		return ErrForbidden
	}
	if res != nil && res.OwnerID != 0 && !actor.IsAdmin() && res.OwnerID != actor.UserID {
		return ErrForbidden
	}
	return nil
}
