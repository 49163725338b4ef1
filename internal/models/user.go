package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// UserDB represents a user record in the database
type UserDB struct {
	UserID                 uuid.UUID  `json:"id" db:"user_id"`                  // Primary key
	Username               string     `json:"username" db:"username"`           // Unique username
	Name                   string     `json:"name" db:"name"`                   // Display name
	Email                  string     `json:"email" db:"email"`                 // Unique email
	PasswordHash           string     `json:"-" db:"password_hash"`             // bcrypt hash
	Role                   string     `json:"role" db:"role"`                   // user or admin
	RefreshToken           *string    `json:"-" db:"refresh_token"`             // Live refresh token
	ResetPasswordTokenHash *string    `json:"-" db:"reset_password_token_hash"` // sha256 of reset token
	ResetPasswordExpiresAt *time.Time `json:"-" db:"reset_password_expires_at"` // Reset token expiry
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`       // Creation timestamp
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`       // Last update timestamp
}

// User is the client facing view of a user. It never carries credentials.
// swagger:model User
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter returns the client facing view of the record.
func (u *UserDB) Filter() *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:        u.UserID,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// DuplicateError is returned by stores when a unique field is already taken.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}
