package models

import (
	"time"

	"github.com/google/uuid"
)

// Auth event types published after successful operations.
const (
	EventUserRegistered  = "user.registered"
	EventUserLoggedIn    = "user.logged_in"
	EventUserLoggedOut   = "user.logged_out"
	EventAccessRefreshed = "user.access_refreshed"
	EventResetRequested  = "password.reset_requested"
	EventPasswordReset   = "password.reset"
	EventPasswordChanged = "password.changed"
	EventUserUpdated     = "user.updated"
	EventUserRoleChanged = "user.role_changed"
	EventUserDeleted     = "user.deleted"
)

// AuthEvent is a record of an authentication state change.
type AuthEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Type       string    `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
