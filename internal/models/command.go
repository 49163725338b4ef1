package models

import (
	"time"

	"github.com/google/uuid"
)

// UserCommand describes a single intended write to the credential store.
// Services build commands, stores apply them atomically.
type UserCommand interface {
	userCommand()
}

// CreateUser inserts a new user record.
type CreateUser struct {
	User UserDB
}

// SetRefreshToken replaces the live refresh token of a user.
type SetRefreshToken struct {
	UserID uuid.UUID
	Token  string
}

// RevokeRefreshToken clears the refresh token on whichever record holds Token.
// Applying it when no record matches is not an error.
type RevokeRefreshToken struct {
	Token string
}

// SetResetToken stores a reset token hash and its expiry, replacing any previous one.
type SetResetToken struct {
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
}

// ClearResetToken removes the reset token hash and expiry.
type ClearResetToken struct {
	UserID uuid.UUID
}

// SetPassword replaces the password hash and clears the reset fields.
type SetPassword struct {
	UserID       uuid.UUID
	PasswordHash string
}

// UpdateProfile changes name and email.
type UpdateProfile struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// UpdateRole changes the role of a user.
type UpdateRole struct {
	UserID uuid.UUID
	Role   string
}

// DeleteUser removes a user record.
type DeleteUser struct {
	UserID uuid.UUID
}

func (CreateUser) userCommand()         {}
func (SetRefreshToken) userCommand()    {}
func (RevokeRefreshToken) userCommand() {}
func (SetResetToken) userCommand()      {}
func (ClearResetToken) userCommand()    {}
func (SetPassword) userCommand()        {}
func (UpdateProfile) userCommand()      {}
func (UpdateRole) userCommand()         {}
func (DeleteUser) userCommand()         {}
