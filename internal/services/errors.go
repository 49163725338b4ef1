package services

import (
	"errors"
	"net/http"
)

// Kind classifies errors returned by services into client facing categories.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindConflict
	KindNotFound
	KindDispatch
	KindTooManyRequests
)

// Status returns the HTTP status associated with the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a message safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client facing message of err. Dispatch errors keep
// their message but drop the wrapped cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Error variables
var (
	ErrMissingFields      = newError(KindValidation, "All fields are required")
	ErrInvalidEmail       = newError(KindValidation, "Invalid email")
	ErrInvalidUsername    = newError(KindValidation, "Username must be between 3 and 30 characters")
	ErrInvalidName        = newError(KindValidation, "Name must be between 3 and 30 characters")
	ErrPasswordTooShort   = newError(KindValidation, "Password must be at least 6 characters")
	ErrInvalidRole        = newError(KindValidation, "Invalid role")
	ErrSamePassword       = newError(KindValidation, "Cannot use same password")
	ErrEmailRequired      = newError(KindValidation, "Email is required")
	ErrPasswordRequired   = newError(KindValidation, "Password is required")
	ErrResetTokenRequired = newError(KindValidation, "Reset token is required")

	ErrInvalidCredentials = newError(KindAuth, "Incorrect credentials")
	ErrIncorrectPassword  = newError(KindAuth, "Incorrect password")
	ErrAlreadyLoggedOut   = newError(KindAuth, "You are already logged out")
	ErrUnauthorized       = newError(KindAuth, "Unauthorized")
	ErrAccessExpired      = newError(KindAuth, "Access expired")
	ErrNotAllowed         = newError(KindAuth, "Not allowed")

	ErrResetTokenExpired  = newError(KindForbidden, "Reset token has been expired")
	ErrAccessTokenExpired = newError(KindForbidden, "Expired access token")

	ErrAlreadyLoggedIn = newError(KindConflict, "Already logged in")
	ErrEmailRegistered = newError(KindConflict, "This email is already registered")
	ErrUsernameTaken   = newError(KindConflict, "Duplicated username entered")
	ErrEmailTaken      = newError(KindConflict, "Duplicated email entered")
	ErrNoUsers         = newError(KindNotFound, "No user was found")
	ErrTooManyRequests = newError(KindTooManyRequests, "Too many requests")
)
